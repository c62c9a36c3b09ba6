package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neshkoli/daily-halacha-translate/internal/messaging"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// ReplySender delivers the reply sequence for one unit of work. Each send is
// independent: a failed audio send never retracts or duplicates an
// already-sent text reply.
type ReplySender struct {
	svc messaging.Service
}

// NewReplySender creates a reply sender over the given messaging backend.
func NewReplySender(svc messaging.Service) *ReplySender {
	return &ReplySender{svc: svc}
}

// SendAll sends each reply in order, isolating failures per message. It
// returns the number of successful sends and the joined send errors.
//
// An audio reply whose delivery fails falls back to a text message carrying
// the persisted public link, when one exists.
func (s *ReplySender) SendAll(ctx context.Context, senderID string, replies []models.OutboundMessage) (int, error) {
	sent := 0
	var errs []error
	for i, reply := range replies {
		if err := s.sendOne(ctx, senderID, reply); err != nil {
			slog.Error("ReplySender.SendAll: send failed", "error", err, "to", senderID, "index", i)
			errs = append(errs, fmt.Errorf("reply %d: %w", i, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func (s *ReplySender) sendOne(ctx context.Context, senderID string, reply models.OutboundMessage) error {
	if err := reply.Validate(); err != nil {
		return err
	}
	if !reply.IsAudio() {
		return s.svc.SendMessage(ctx, senderID, reply.Text)
	}

	err := s.svc.SendAudio(ctx, senderID, *reply.Audio)
	if err == nil {
		return nil
	}
	if reply.Audio.Link == "" {
		return err
	}
	slog.Warn("ReplySender.sendOne: audio send failed, falling back to link text", "error", err, "to", senderID)
	return s.svc.SendMessage(ctx, senderID, "Audio version: "+reply.Audio.Link)
}
