package service

import (
	"context"
	"time"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/events"
	"dpp-certification/internal/metrics"

	"go.uber.org/zap"
)

// Notifier fans a committed change out to metrics and the event bus. It
// runs after commit, so failures are logged and never undo the change.
type Notifier struct {
	publisher events.Publisher
	recorder  metrics.Recorder
	logger    *zap.Logger
}

func NewNotifier(publisher events.Publisher, recorder metrics.Recorder, logger *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = events.NewNoop()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, recorder: recorder, logger: logger}
}

func (n *Notifier) Committed(ctx context.Context, entity string, event domain.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	n.recorder.RecordTransition(entity, event.From, event.To)

	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("Failed to publish lifecycle event",
			zap.String("type", event.Type),
			zap.String("entity_id", event.EntityID.String()),
			zap.Error(err),
		)
	}
}

func (n *Notifier) Refused(entity string, err error) {
	n.recorder.RecordRefusedTransition(entity, kindLabel(err))
}

func (n *Notifier) Upload(result string) {
	n.recorder.RecordUpload(result)
}
