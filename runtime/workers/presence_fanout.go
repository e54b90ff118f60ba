package workers

import (
	"context"
	"log/slog"
	"time"

	"you-chat/contract"
	"you-chat/domain/event"
)

// PresenceFanout broadcasts presence snapshots to every live connection.
//
// Connection lifecycle code pushes a full snapshot onto Events after each
// register and unregister; this worker fans it out to all sinks known to
// the registry at that moment. Best-effort only: a slow or dead sink is
// skipped after sinkTimeout, never retried.
type PresenceFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	Events      chan event.DomainEvent
	sinkTimeout time.Duration
}

func NewPresenceFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	events chan event.DomainEvent,
	sinkTimeout time.Duration,
) *PresenceFanout {
	return &PresenceFanout{
		log:         log,
		registry:    registry,
		Events:      events,
		sinkTimeout: sinkTimeout,
	}
}

func (w *PresenceFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.Events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence fanout")
			return nil
		}
	}
}

// Fanout delivers one event to every live sink, bounding each delivery
// with sinkTimeout so one stuck connection cannot starve the rest.
func (w *PresenceFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.registry.Sinks() {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Debug("Presence event lost for sink", "event", evt.Name(), "error", err)
		}
		cancel()
	}
}
