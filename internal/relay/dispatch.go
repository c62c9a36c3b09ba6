package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/calendar"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// User-facing reply strings. The bot greets in English; calendar replies are
// Hebrew because their audience reads the shiur announcements in Hebrew.
const (
	HelpText = "Welcome to the Daily Halacha WhatsApp bot!\n" +
		"Send /help to see this message.\n" +
		"Send /daf for today's Daf Yomi.\n" +
		"Send /hebdate for today's Hebrew date."
	FallbackText = "Sorry, I didn't understand that. Send /help for options."

	dafYomiPrefix    = "הדף היומי להיום: "
	dafYomiNotFound  = "לא נמצא דף יומי להיום."
	dafYomiError     = "שגיאה בשליפת הדף היומי."
	hebrewDatePrefix = "התאריך העברי היום: "
	hebrewDateError  = "שגיאה בשליפת התאריך העברי."
)

// AudioHandler runs the voice note pipeline for one admitted audio unit.
type AudioHandler interface {
	Handle(ctx context.Context, unit models.InboundUnit) (models.HandlerResult, error)
}

// Dispatcher routes each admitted unit to exactly one handler.
type Dispatcher struct {
	audio    AudioHandler
	calendar calendar.Lookup
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. audio may be nil when no audio pipeline
// is configured, in which case audio units get the fallback reply.
func NewDispatcher(audio AudioHandler, cal calendar.Lookup) *Dispatcher {
	return &Dispatcher{audio: audio, calendar: cal, now: time.Now}
}

// Dispatch routes the unit and returns the reply sequence. Routing order:
// audio first, then exact command token match on the trimmed lowercased
// text, then the fallback reply. Unknown kinds produce no replies.
//
// A non-nil error means the handler failed; the replies still carry the
// user-facing error message for that failure. Command lookup failures are
// absorbed into fixed localized error replies and never reach the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, unit models.InboundUnit) (models.HandlerResult, error) {
	switch unit.Kind {
	case models.MessageKindAudio:
		if d.audio == nil {
			slog.Warn("Dispatcher.Dispatch: no audio handler configured", "sender", unit.SenderID)
			return models.HandlerResult{Replies: []models.OutboundMessage{models.TextMessage(FallbackText)}}, nil
		}
		return d.audio.Handle(ctx, unit)

	case models.MessageKindText:
		return d.dispatchText(ctx, unit), nil

	default:
		// Stickers, images, reactions: dropped without reply.
		slog.Debug("Dispatcher.Dispatch: unknown kind dropped", "sender", unit.SenderID)
		return models.HandlerResult{}, nil
	}
}

func (d *Dispatcher) dispatchText(ctx context.Context, unit models.InboundUnit) models.HandlerResult {
	command := strings.ToLower(strings.TrimSpace(unit.Text))
	slog.Debug("Dispatcher.dispatchText: routing command", "sender", unit.SenderID, "command", command)

	var reply string
	switch command {
	case "/help":
		reply = HelpText
	case "/daf":
		reply = d.dafYomiReply(ctx)
	case "/hebdate":
		reply = d.hebrewDateReply(ctx)
	default:
		reply = FallbackText
	}
	return models.HandlerResult{Replies: []models.OutboundMessage{models.TextMessage(reply)}}
}

func (d *Dispatcher) dafYomiReply(ctx context.Context) string {
	if d.calendar == nil {
		return dafYomiError
	}
	item, err := d.calendar.DafYomi(ctx)
	if errors.Is(err, models.ErrItemNotFound) {
		slog.Info("Dispatcher.dafYomiReply: no daf yomi entry today")
		return dafYomiNotFound
	}
	if err != nil {
		slog.Error("Dispatcher.dafYomiReply: lookup failed", "error", err)
		return dafYomiError
	}
	return dafYomiPrefix + item.DisplayText + "\n" + item.URL
}

func (d *Dispatcher) hebrewDateReply(ctx context.Context) string {
	if d.calendar == nil {
		return hebrewDateError
	}
	hebrew, err := d.calendar.HebrewDate(ctx, d.now())
	if err != nil {
		slog.Error("Dispatcher.hebrewDateReply: lookup failed", "error", err)
		return hebrewDateError
	}
	return hebrewDatePrefix + hebrew
}
