package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
	"github.com/neshkoli/daily-halacha-translate/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio API.
type TwilioService struct {
	client  twiliowhatsapp.Sender
	mu      sync.RWMutex
	stopped bool
}

// Compile-time check that TwilioService implements Service.
var _ Service = (*TwilioService)(nil)

// NewTwilioService creates a new TwilioService wrapping the given sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhoneNumber(recipient)
}

// Start is a no-op for Twilio (no live connection).
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop marks the service stopped.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("TwilioService.Stop: service stopped")
	return nil
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// SendMessage sends a text message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendMessage: validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, "+"+canonicalTo, body)
}

// SendAudio sends an audio message via Twilio. Twilio fetches media by URL,
// so the payload must carry a public link; raw bytes cannot be delivered
// without hosting them first.
func (s *TwilioService) SendAudio(ctx context.Context, to string, audio models.AudioPayload) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendAudio: validation error", "error", err, "to", to)
		return err
	}
	if audio.Link == "" {
		slog.Error("TwilioService.SendAudio: payload has no public link", "to", canonicalTo)
		return models.ErrEmptyAudio
	}
	return s.client.SendAudioLink(ctx, "+"+canonicalTo, audio.Link)
}
