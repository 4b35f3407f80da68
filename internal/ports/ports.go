package ports

import (
	"context"

	"livestt/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	InputFormat     string
	InputDevice     string
}

// ChunkBytes is the size of one PCM16 frame buffer.
func (c AudioConfig) ChunkBytes() int {
	channels := c.Channels
	if channels <= 0 {
		channels = 1
	}
	frames := c.FramesPerBuffer
	if frames <= 0 {
		frames = 1024
	}
	return frames * channels * 2
}

// AudioConsumer receives captured frames on the capture goroutine.
type AudioConsumer interface {
	OnFrame(frame []byte)
	OnError(err error)
}

// AudioStream is an acquired, configured microphone input. It accepts a
// single consumer. No frame delivery starts after Stop returns. Stop may wait
// for a delivery already in flight but not for the capture process to exit.
type AudioStream interface {
	Install(consumer AudioConsumer) error
	Remove()
	Start() error
	Stop() error
	Close() error
}

// Microphone configures capture-only audio input and acquires a stream.
type Microphone interface {
	Open(ctx context.Context, cfg AudioConfig) (AudioStream, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	Locale         string
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// RecognitionTask is one streaming recognition request. Events are delivered
// in order and the channel is closed after the terminal event.
type RecognitionTask interface {
	SendAudio(chunk []byte) error
	// CloseSend signals end of audio. Results may still follow.
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	// Close cancels the task and releases its resources.
	Close() error
}

// Recognizer opens streaming recognition tasks.
type Recognizer interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (RecognitionTask, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink receives session updates. Calls are serialized on the dispatch queue.
type EventSink interface {
	TranscriptChanged(text string)
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
}

// NotificationSink renders transient notifications. Calls are serialized on the dispatch queue.
type NotificationSink interface {
	ShowNotification(notification domain.Notification)
	DismissNotification(id string)
}

// Notifier publishes a transient notification.
type Notifier interface {
	Notify(kind domain.NotificationKind, text string) domain.Notification
}
