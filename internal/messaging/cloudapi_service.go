package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neshkoli/daily-halacha-translate/internal/cloudapi"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// CloudAPIService implements Service using the WhatsApp Cloud API. This is
// the primary backend: inbound traffic arrives on the webhook, so the
// service has no background processing of its own.
type CloudAPIService struct {
	client  cloudapi.API
	mu      sync.RWMutex
	stopped bool
}

// Compile-time check that CloudAPIService implements Service.
var _ Service = (*CloudAPIService)(nil)

// NewCloudAPIService creates a CloudAPIService wrapping the given client.
func NewCloudAPIService(client cloudapi.API) *CloudAPIService {
	return &CloudAPIService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhoneNumber(recipient)
}

// Start is a no-op; inbound traffic arrives on the webhook.
func (s *CloudAPIService) Start(ctx context.Context) error {
	slog.Debug("CloudAPIService.Start: nothing to start, webhook driven")
	return nil
}

// Stop marks the service stopped.
func (s *CloudAPIService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("CloudAPIService.Stop: service stopped")
	return nil
}

func (s *CloudAPIService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// SendMessage sends a text message via the Cloud API.
func (s *CloudAPIService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudAPIService.SendMessage: validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendText(ctx, canonicalTo, body); err != nil {
		return err
	}
	slog.Info("CloudAPIService.SendMessage: message sent", "to", canonicalTo)
	return nil
}

// SendAudio sends an audio message via the Cloud API. A payload carrying a
// media ID is sent directly; raw bytes are uploaded first, falling back to
// the public link if the upload fails and a link is available.
func (s *CloudAPIService) SendAudio(ctx context.Context, to string, audio models.AudioPayload) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudAPIService.SendAudio: validation error", "error", err, "to", to)
		return err
	}
	if audio.Empty() {
		return models.ErrEmptyAudio
	}

	if audio.MediaID != "" {
		return s.client.SendAudioID(ctx, canonicalTo, audio.MediaID)
	}

	if len(audio.Data) > 0 {
		mediaID, uploadErr := s.client.UploadAudio(ctx, audio.Data, audio.MimeType)
		if uploadErr == nil {
			slog.Debug("CloudAPIService.SendAudio: audio uploaded", "to", canonicalTo, "media_id", mediaID)
			return s.client.SendAudioID(ctx, canonicalTo, mediaID)
		}
		if audio.Link == "" {
			return fmt.Errorf("uploading audio: %w", uploadErr)
		}
		slog.Warn("CloudAPIService.SendAudio: upload failed, falling back to link", "error", uploadErr, "to", canonicalTo)
	}

	if audio.Link != "" {
		return s.client.SendAudioLink(ctx, canonicalTo, audio.Link)
	}
	return models.ErrEmptyAudio
}
