package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/neshkoli/daily-halacha-translate/internal/cloudapi"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
	"github.com/neshkoli/daily-halacha-translate/internal/relay"
)

// rootHandler serves the platform webhook: GET is the verification
// handshake, POST is a delivery.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.verifyHandler(w, r)
	case http.MethodPost:
		s.webhookHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyHandler answers the hub.challenge handshake. Token mismatch is the
// one case where this surface returns a non-200.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && s.verifyToken != "" && token == s.verifyToken {
		slog.Info("Server.verifyHandler: webhook verified")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}
	slog.Warn("Server.verifyHandler: verification rejected", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// webhookHandler accepts one delivery. The response is always 200 for
// parseable requests regardless of internal outcome: a non-200 would
// trigger platform retry storms. Processing runs in a goroutine so a slow
// audio pipeline never stalls the acknowledgment.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var payload cloudapi.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	unit, ok := relay.Normalize(payload)
	if !ok {
		// Status updates and empty change sets: nothing to do.
		slog.Debug("Server.webhookHandler: payload carries no message")
		w.WriteHeader(http.StatusOK)
		return
	}

	go func() {
		d := s.relay.Process(context.Background(), unit)
		slog.Debug("Server.webhookHandler: processing finished", "work_key", d.WorkKey, "outcome", d.Outcome)
	}()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// deliveriesHandler returns recent dispatch outcomes, newest first.
func (s *Server) deliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deliveries == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]models.Delivery{}))
		return
	}
	deliveries, err := s.deliveries.RecentDeliveries(s.deliveryLimit)
	if err != nil {
		slog.Error("Server.deliveriesHandler: lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load deliveries"))
		return
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(deliveries))
}
