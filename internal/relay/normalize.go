// Package relay implements the dispatch and idempotency core: normalizing
// webhook deliveries into canonical inbound units, deduplicating them,
// routing each admitted unit to exactly one handler, and sending the reply
// sequence with per-message failure isolation.
package relay

import (
	"log/slog"

	"github.com/neshkoli/daily-halacha-translate/internal/cloudapi"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// Normalize extracts the canonical inbound unit from a webhook payload.
// Every level of the entry/changes/value/messages nesting may be absent;
// a payload without a message returns ok=false, which is not an error,
// just nothing to do.
func Normalize(payload cloudapi.WebhookPayload) (models.InboundUnit, bool) {
	if len(payload.Entry) == 0 {
		return models.InboundUnit{}, false
	}
	entry := payload.Entry[0]
	if len(entry.Changes) == 0 {
		return models.InboundUnit{}, false
	}
	value := entry.Changes[0].Value
	if len(value.Messages) == 0 {
		return models.InboundUnit{}, false
	}
	msg := value.Messages[0]
	if msg.From == "" {
		return models.InboundUnit{}, false
	}

	unit := models.InboundUnit{SenderID: msg.From}
	switch {
	case msg.Audio != nil && msg.Audio.ID != "":
		unit.Kind = models.MessageKindAudio
		unit.AudioID = msg.Audio.ID
	case msg.Text != nil && msg.Text.Body != "":
		unit.Kind = models.MessageKindText
		unit.Text = msg.Text.Body
	default:
		unit.Kind = models.MessageKindUnknown
	}

	slog.Debug("relay.Normalize: unit extracted", "sender", unit.SenderID, "kind", unit.Kind)
	return unit, true
}
