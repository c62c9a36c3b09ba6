package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/cloudapi"
	"github.com/neshkoli/daily-halacha-translate/internal/dedup"
	"github.com/neshkoli/daily-halacha-translate/internal/messaging"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
	"github.com/neshkoli/daily-halacha-translate/internal/relay"
	"github.com/neshkoli/daily-halacha-translate/internal/store"
)

type testHarness struct {
	server   *Server
	platform *cloudapi.MockClient
	repo     *store.InMemoryStore
}

func newTestHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	platform := cloudapi.NewMockClient()
	repo := store.NewInMemoryStore()
	dispatcher := relay.NewDispatcher(nil, nil)
	sender := relay.NewReplySender(messaging.NewCloudAPIService(platform))
	rel := relay.NewRelay(dedup.NewMemoryGate(), dispatcher, sender, relay.WithDeliveryRepo(repo))

	opts = append([]Option{WithVerifyToken("secret-token")}, opts...)
	return &testHarness{
		server:   NewServer(rel, repo, opts...),
		platform: platform,
		repo:     repo,
	}
}

// waitForDeliveries polls until the async webhook processing has recorded n
// delivery rows.
func (h *testHarness) waitForDeliveries(t *testing.T, n int) []models.Delivery {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		deliveries, err := h.repo.RecentDeliveries(0)
		if err != nil {
			t.Fatalf("RecentDeliveries failed: %v", err)
		}
		if len(deliveries) >= n {
			return deliveries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d deliveries", n)
	return nil
}

func textWebhookBody(t *testing.T, from, text string) []byte {
	t.Helper()
	payload := cloudapi.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []cloudapi.Entry{{
			Changes: []cloudapi.Change{{
				Field: "messages",
				Value: cloudapi.Value{Messages: []cloudapi.Message{{
					From: from,
					Type: "text",
					Text: &cloudapi.TextContent{Body: text},
				}}},
			}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	return body
}

func TestVerifyHandshake(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Errorf("expected challenge echo, got %q", w.Body.String())
	}
}

func TestVerifyHandshakeWrongToken(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestWebhookDeliveryProcessed(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(textWebhookBody(t, "972500000000", "/help")))
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	deliveries := h.waitForDeliveries(t, 1)
	if deliveries[0].Outcome != models.OutcomeReplied {
		t.Errorf("expected replied, got %v (%s)", deliveries[0].Outcome, deliveries[0].Detail)
	}
	if sent := h.platform.LastSent(); sent.Body != relay.HelpText {
		t.Errorf("expected help reply, got %+v", sent)
	}
}

func TestWebhookNoMessagesAcknowledged(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// No message means no dispatch and no dedup: nothing may be recorded.
	time.Sleep(20 * time.Millisecond)
	deliveries, _ := h.repo.RecentDeliveries(0)
	if len(deliveries) != 0 {
		t.Errorf("expected no deliveries, got %d", len(deliveries))
	}
	if h.platform.SentCount() != 0 {
		t.Errorf("expected no sends, got %d", h.platform.SentCount())
	}
}

func TestWebhookMalformedJSONAcknowledged(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 even for malformed JSON, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("unexpected status %q", resp.Status)
	}
}

func TestDeliveriesEndpoint(t *testing.T) {
	h := newTestHarness(t)
	if err := h.repo.AddDelivery(models.Delivery{WorkKey: "text:abc", SenderID: "s", Kind: models.MessageKindText, Outcome: models.OutcomeReplied}); err != nil {
		t.Fatalf("AddDelivery failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "text:abc") {
		t.Errorf("expected delivery row in body, got %s", w.Body.String())
	}
}

func TestDeliveriesEndpointLimit(t *testing.T) {
	h := newTestHarness(t, WithDeliveryLimit(1))
	for _, key := range []string{"text:old", "text:new"} {
		if err := h.repo.AddDelivery(models.Delivery{WorkKey: key, SenderID: "s", Kind: models.MessageKindText, Outcome: models.OutcomeReplied}); err != nil {
			t.Fatalf("AddDelivery failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "text:new") {
		t.Errorf("expected the newest delivery in body, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "text:old") {
		t.Errorf("expected the limit to drop the older delivery, got %s", w.Body.String())
	}
}

func TestMediaServing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "reply.ogg"), []byte("opus-bytes"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	h := newTestHarness(t, WithMediaDir(dir))

	req := httptest.NewRequest(http.MethodGet, "/media/reply.ogg", nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "opus-bytes" {
		t.Errorf("unexpected media body %q", w.Body.String())
	}
}
