package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// DetectDSNType classifies a DSN as "postgres" or "sqlite" so callers can
// pick the right backend from a single configuration value.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// scanDeliveries scans delivery records from sql.Rows.
func scanDeliveries(rows *sql.Rows) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	for rows.Next() {
		var d models.Delivery
		var detail sql.NullString
		if err := rows.Scan(&d.WorkKey, &d.SenderID, &d.Kind, &d.Outcome, &detail, &d.Time); err != nil {
			return nil, fmt.Errorf("scan delivery failed: %w", err)
		}
		d.Detail = detail.String
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery rows failed: %w", err)
	}
	return deliveries, nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
