package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// DefaultTextDedupWindow is the default time bucket for text work keys. The
// window trades duplicate suppression against legitimate repeat commands;
// it is configurable rather than resolved either way.
const DefaultTextDedupWindow = 5 * time.Minute

// WorkKeyFor derives the deterministic deduplication key for a unit.
//
// Audio units key on the platform media ID, which is globally unique per
// asset. Text units key on a hash of sender, normalized text, and the time
// bucket index so webhook retries collide while later repeats do not.
func WorkKeyFor(unit models.InboundUnit, bucketWidth time.Duration, now time.Time) string {
	if unit.Kind == models.MessageKindAudio && unit.AudioID != "" {
		return "audio:" + unit.AudioID
	}
	if bucketWidth <= 0 {
		bucketWidth = DefaultTextDedupWindow
	}
	// Nanosecond arithmetic: a sub-second width must not truncate the divisor
	// to zero.
	bucket := now.UnixNano() / int64(bucketWidth)
	normalized := strings.ToLower(strings.TrimSpace(unit.Text))
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", unit.SenderID, normalized, bucket))
	return "text:" + hex.EncodeToString(sum[:])
}
