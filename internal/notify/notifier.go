package notify

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"livestt/internal/dispatch"
	"livestt/internal/domain"
	"livestt/internal/ports"
)

const DefaultDuration = 1200 * time.Millisecond

// Notifier shows one transient notification at a time and dismisses it after
// a fixed duration. A newer notification replaces the visible one.
type Notifier struct {
	queue    *dispatch.Queue
	sink     ports.NotificationSink
	duration time.Duration
	logger   *zap.Logger
	newID    func() string

	// queue-owned
	visible string
	timer   *time.Timer
}

func New(queue *dispatch.Queue, sink ports.NotificationSink, duration time.Duration, logger *zap.Logger) *Notifier {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		queue:    queue,
		sink:     sink,
		duration: duration,
		logger:   logger,
		newID:    func() string { return uuid.NewString() },
	}
}

// Notify schedules a notification on the dispatch queue and returns it.
func (n *Notifier) Notify(kind domain.NotificationKind, text string) domain.Notification {
	notification := domain.Notification{
		ID:              n.newID(),
		Kind:            kind,
		Text:            text,
		VisibleDuration: n.duration,
	}
	if !n.queue.Post(func() { n.show(notification) }) {
		n.logger.Debug("notification dropped after shutdown", zap.String("text", text))
	}
	return notification
}

func (n *Notifier) show(notification domain.Notification) {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.visible != "" {
		n.sink.DismissNotification(n.visible)
	}

	n.visible = notification.ID
	n.sink.ShowNotification(notification)

	id := notification.ID
	n.timer = time.AfterFunc(n.duration, func() {
		n.queue.Post(func() { n.expire(id) })
	})
}

func (n *Notifier) expire(id string) {
	if n.visible != id {
		return
	}
	n.visible = ""
	n.timer = nil
	n.sink.DismissNotification(id)
}
