package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/dedup"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
	"github.com/neshkoli/daily-halacha-translate/internal/store"
)

// Relay ties the core together: dedup gate, dispatcher, reply sender, and
// the delivery ledger. One Process call covers one webhook delivery end to
// end.
type Relay struct {
	gate        dedup.Gate
	dispatcher  *Dispatcher
	sender      *ReplySender
	deliveries  store.DeliveryRepo
	bucketWidth time.Duration
	now         func() time.Time
}

// RelayOption configures the relay.
type RelayOption func(*Relay)

// WithTextDedupWindow sets the time bucket width for text work keys.
func WithTextDedupWindow(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.bucketWidth = d
		}
	}
}

// WithDeliveryRepo enables delivery records for the /deliveries endpoint.
func WithDeliveryRepo(repo store.DeliveryRepo) RelayOption {
	return func(r *Relay) { r.deliveries = repo }
}

// NewRelay creates the relay core.
func NewRelay(gate dedup.Gate, dispatcher *Dispatcher, sender *ReplySender, opts ...RelayOption) *Relay {
	r := &Relay{
		gate:        gate,
		dispatcher:  dispatcher,
		sender:      sender,
		bucketWidth: DefaultTextDedupWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process handles one normalized inbound unit: admit it through the dedup
// gate, dispatch to exactly one handler, send the reply sequence, and record
// the outcome. Gate insertion happens before any downstream call, so a
// webhook retry arriving mid-pipeline is a Duplicate, not a second reply.
//
// Process never returns an error: every internal failure terminates in a
// delivery record (and usually a user-facing reply), because the webhook
// endpoint acknowledges with 200 regardless.
func (r *Relay) Process(ctx context.Context, unit models.InboundUnit) models.Delivery {
	if unit.Kind == models.MessageKindUnknown {
		slog.Debug("Relay.Process: unit carries no dispatchable payload", "sender", unit.SenderID)
		return r.record(models.Delivery{
			SenderID: unit.SenderID,
			Kind:     unit.Kind,
			Outcome:  models.OutcomeNoWork,
		})
	}

	workKey := WorkKeyFor(unit, r.bucketWidth, r.now())

	result, err := r.gate.Admit(workKey, unit.SenderID)
	if err != nil {
		slog.Error("Relay.Process: gate admit failed", "error", err, "work_key", workKey)
		return r.record(models.Delivery{
			WorkKey:  workKey,
			SenderID: unit.SenderID,
			Kind:     unit.Kind,
			Outcome:  models.OutcomeFailed,
			Detail:   "dedup gate: " + err.Error(),
		})
	}
	if result == dedup.Duplicate {
		slog.Info("Relay.Process: duplicate delivery skipped", "work_key", workKey, "sender", unit.SenderID)
		return r.record(models.Delivery{
			WorkKey:  workKey,
			SenderID: unit.SenderID,
			Kind:     unit.Kind,
			Outcome:  models.OutcomeDuplicateSkipped,
		})
	}

	handlerResult, handlerErr := r.dispatcher.Dispatch(ctx, unit)

	if len(handlerResult.Replies) == 0 {
		return r.record(models.Delivery{
			WorkKey:  workKey,
			SenderID: unit.SenderID,
			Kind:     unit.Kind,
			Outcome:  models.OutcomeNoWork,
		})
	}

	sent, sendErr := r.sender.SendAll(ctx, unit.SenderID, handlerResult.Replies)

	delivery := models.Delivery{
		WorkKey:  workKey,
		SenderID: unit.SenderID,
		Kind:     unit.Kind,
		Outcome:  models.OutcomeReplied,
	}
	switch {
	case handlerErr != nil:
		delivery.Outcome = models.OutcomeFailed
		delivery.Detail = handlerErr.Error()
	case sent == 0 && sendErr != nil:
		delivery.Outcome = models.OutcomeFailed
		delivery.Detail = "all sends failed: " + sendErr.Error()
	case sendErr != nil:
		delivery.Detail = "partial send: " + sendErr.Error()
	}

	slog.Info("Relay.Process: delivery complete",
		"work_key", workKey,
		"sender", unit.SenderID,
		"kind", unit.Kind,
		"outcome", delivery.Outcome,
		"replies_sent", sent)
	return r.record(delivery)
}

// record stamps and persists the delivery, returning it for callers.
func (r *Relay) record(d models.Delivery) models.Delivery {
	d.Time = r.now().Unix()
	if r.deliveries != nil {
		if err := r.deliveries.AddDelivery(d); err != nil {
			slog.Warn("Relay.record: delivery record failed", "error", err, "work_key", d.WorkKey)
		}
	}
	return d
}
