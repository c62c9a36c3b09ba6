package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
	"github.com/neshkoli/daily-halacha-translate/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client. Unlike the Cloud API backend it holds a live connection, so Stop
// matters.
type WhatsAppService struct {
	client  whatsapp.Sender
	mu      sync.RWMutex
	stopped bool
}

// Compile-time check that WhatsAppService implements Service.
var _ Service = (*WhatsAppService)(nil)

// NewWhatsAppService creates a new WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhoneNumber(recipient)
}

// Start is a no-op; the underlying client connects when constructed.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService.Start: client already connected")
	return nil
}

// Stop marks the service stopped.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("WhatsAppService.Stop: service stopped")
	return nil
}

func (s *WhatsAppService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// SendMessage sends a text message over the live WhatsApp connection.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService.SendMessage: validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService.SendMessage: send error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Info("WhatsAppService.SendMessage: message sent", "to", canonicalTo)
	return nil
}

// SendAudio sends an audio message over the live WhatsApp connection. The
// payload must carry raw bytes; media IDs and links belong to the Cloud API.
func (s *WhatsAppService) SendAudio(ctx context.Context, to string, audio models.AudioPayload) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService.SendAudio: validation error", "error", err, "to", to)
		return err
	}
	if len(audio.Data) == 0 {
		return models.ErrEmptyAudio
	}
	if err := s.client.SendAudio(ctx, canonicalTo, audio.Data, audio.MimeType); err != nil {
		slog.Error("WhatsAppService.SendAudio: send error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Info("WhatsAppService.SendAudio: audio sent", "to", canonicalTo)
	return nil
}
