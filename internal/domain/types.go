package domain

import (
	"errors"
	"time"
)

// SessionState models the recognition session lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateStarting  SessionState = "starting"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
	SessionStateFinished  SessionState = "finished"
	SessionStateFailed    SessionState = "failed"
)

// Active reports whether the state holds audio and recognizer handles.
func (s SessionState) Active() bool {
	switch s {
	case SessionStateStarting, SessionStateRecording, SessionStateStopping:
		return true
	default:
		return false
	}
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady                 SessionStateReason = "ready"
	SessionReasonStarting              SessionStateReason = "starting"
	SessionReasonRecordingStarted      SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted    SessionStateReason = "recording_restarted"
	SessionReasonStopRequested         SessionStateReason = "stop_requested"
	SessionReasonFinalResult           SessionStateReason = "final_result"
	SessionReasonStreamEnded           SessionStateReason = "stream_ended"
	SessionReasonFinalizeTimeout       SessionStateReason = "finalize_timeout"
	SessionReasonRecordingDiscarded    SessionStateReason = "recording_discarded"
	SessionReasonSetupFailed           SessionStateReason = "setup_failed"
	SessionReasonRecognizerUnavailable SessionStateReason = "recognizer_unavailable"
	SessionReasonRecognitionFailed     SessionStateReason = "recognition_failed"
	SessionReasonAudioFailed           SessionStateReason = "audio_failed"
)

// ErrorCode identifies errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup               ErrorCode = "startup"
	ErrorCodeSetup                 ErrorCode = "setup"
	ErrorCodeRecognizerUnavailable ErrorCode = "recognizer_unavailable"
	ErrorCodeRecognition           ErrorCode = "recognition"
	ErrorCodeAudioStream           ErrorCode = "audio_stream"
	ErrorCodeClipboard             ErrorCode = "clipboard"
)

var (
	ErrSetup                 = errors.New("audio setup failed")
	ErrRecognizerUnavailable = errors.New("speech recognizer unavailable")
	ErrRecognition           = errors.New("recognition failed")
	ErrAudioStream           = errors.New("audio stream failed")
	ErrClipboard             = errors.New("clipboard write failed")
	ErrEmptyTranscript       = errors.New("transcript is empty")
	ErrNoActiveSession       = errors.New("no active recognition session")
)

// CodeFor maps a session error onto the code reported to the UI.
func CodeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrSetup):
		return ErrorCodeSetup
	case errors.Is(err, ErrRecognizerUnavailable):
		return ErrorCodeRecognizerUnavailable
	case errors.Is(err, ErrAudioStream):
		return ErrorCodeAudioStream
	case errors.Is(err, ErrClipboard):
		return ErrorCodeClipboard
	default:
		return ErrorCodeRecognition
	}
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is one ordered result from a recognition task. Text is the
// whole current hypothesis, not a delta. A non-nil Err terminates the task.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
	Err  error          `json:"-"`
}

// NotificationKind tags a transient notification.
type NotificationKind string

const (
	NotificationInfo       NotificationKind = "info"
	NotificationValidation NotificationKind = "validation"
	NotificationError      NotificationKind = "error"
)

// Notification is a short-lived message. It never affects session state.
type Notification struct {
	ID              string           `json:"id"`
	Kind            NotificationKind `json:"kind"`
	Text            string           `json:"text"`
	VisibleDuration time.Duration    `json:"visibleDuration"`
}

// Status summarizes the current runtime status.
type Status struct {
	State      SessionState `json:"state"`
	Active     bool         `json:"active"`
	SessionID  string       `json:"sessionId,omitempty"`
	Transcript string       `json:"transcript"`
	Message    string       `json:"message,omitempty"`
}
