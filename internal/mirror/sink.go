package mirror

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"livestt/internal/domain"
	"livestt/internal/ports"
)

// Publisher is the subset of *nats.Conn used by EventMirror.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type TranscriptMessage struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type SessionMessage struct {
	State     domain.SessionState       `json:"state"`
	Reason    domain.SessionStateReason `json:"reason"`
	Timestamp int64                     `json:"timestamp"`
}

type ErrorMessage struct {
	Code      domain.ErrorCode `json:"code"`
	Detail    string           `json:"detail"`
	Timestamp int64            `json:"timestamp"`
}

// EventMirror forwards every event to the wrapped sink and then publishes it.
// Publish failures are logged and never reach the session.
type EventMirror struct {
	next      ports.EventSink
	publisher Publisher
	prefix    string
	logger    *zap.Logger
	now       func() time.Time
}

func NewEventMirror(next ports.EventSink, publisher Publisher, prefix string, logger *zap.Logger) *EventMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "livestt"
	}
	return &EventMirror{
		next:      next,
		publisher: publisher,
		prefix:    prefix,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *EventMirror) TranscriptChanged(text string) {
	if m.next != nil {
		m.next.TranscriptChanged(text)
	}
	m.publish("transcript", TranscriptMessage{Text: text, Timestamp: m.now().UnixMilli()})
}

func (m *EventMirror) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if m.next != nil {
		m.next.SessionStateChanged(state, reason)
	}
	m.publish("session", SessionMessage{State: state, Reason: reason, Timestamp: m.now().UnixMilli()})
}

func (m *EventMirror) SessionError(code domain.ErrorCode, detail string) {
	if m.next != nil {
		m.next.SessionError(code, detail)
	}
	m.publish("error", ErrorMessage{Code: code, Detail: detail, Timestamp: m.now().UnixMilli()})
}

func (m *EventMirror) Subject(kind string) string {
	return m.prefix + "." + kind
}

func (m *EventMirror) publish(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("failed to encode mirror event", zap.String("kind", kind), zap.Error(err))
		return
	}
	subject := m.Subject(kind)
	if err := m.publisher.Publish(subject, data); err != nil {
		m.logger.Warn("failed to publish mirror event", zap.String("subject", subject), zap.Error(err))
	}
}
