package workers

import (
	"context"
	"log/slog"

	"video2tool/contract"
	"video2tool/domain"
	"video2tool/domain/event"
	"video2tool/observability"
)

// NotifierWorker drains queued notifications and fans them out over the
// live connections. Delivery is best-effort: a notification for an
// identity without a connection is dropped, never retried or stored.
type NotifierWorker struct {
	log           *slog.Logger
	notifications <-chan domain.Notification
	broadcaster   contract.IBroadcaster
	monitor       *observability.Monitor
}

func NewNotifierWorker(
	log *slog.Logger,
	notifications <-chan domain.Notification,
	broadcaster contract.IBroadcaster,
	monitor *observability.Monitor,
) *NotifierWorker {
	return &NotifierWorker{
		log:           log,
		notifications: notifications,
		broadcaster:   broadcaster,
		monitor:       monitor,
	}
}

func (w *NotifierWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-w.notifications:
			if !ok {
				w.log.Debug("Notification queue closed")
				return nil
			}
			w.deliver(n)
		}
	}
}

func (w *NotifierWorker) deliver(n domain.Notification) {
	envelope := event.NewNotification(n)
	if n.Target != nil {
		w.broadcaster.ToIdentity(*n.Target, envelope)
	} else {
		w.broadcaster.ToAll(envelope)
	}
	if w.monitor != nil {
		w.monitor.IncrNotificationsSent()
	}
	w.log.Debug("Notification delivered", "level", n.Level, "broadcast", n.Target == nil)
}
