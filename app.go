package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"livestt/internal/bootstrap"
	"livestt/internal/config"
	"livestt/internal/domain"
)

const (
	eventSession             = "livestt:session"
	eventTranscript          = "livestt:transcript"
	eventError               = "livestt:error"
	eventNotification        = "livestt:notification"
	eventNotificationDismiss = "livestt:notification-dismissed"
)

type emitFunc func(ctx context.Context, name string, data ...interface{})

// App is the Wails application root. It is the UI sink for session events
// and notifications, and exposes the recording controls as bindings.
type App struct {
	ctx  context.Context
	emit emitFunc

	services *bootstrap.Services
	cfg      config.Config
	bootErr  error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.services == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn("shutdown did not complete cleanly", zap.Error(err))
	}
}

// StartRecording begins a new recognition attempt, replacing any attempt in flight.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Session.Start(a.ctx); err != nil {
		return a.services.Session.Status(), err
	}
	return a.services.Session.Status(), nil
}

// StopRecording ends capture. The final result arrives as a transcript event.
func (a *App) StopRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Session.Stop(); err != nil {
		return a.services.Session.Status(), err
	}
	return a.services.Session.Status(), nil
}

// ToggleRecording is the record button.
func (a *App) ToggleRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	return a.services.Actions.Toggle(a.ctx)
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Session.Abort(); err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// CopyTranscript copies the transcript to the clipboard. Outcomes are
// reported as notifications.
func (a *App) CopyTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return quietUserError(a.services.Actions.Copy(a.ctx))
}

// ClearTranscript empties the transcript.
func (a *App) ClearTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return quietUserError(a.services.Actions.Clear())
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.services.Session.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"provider":         a.cfg.Recognizer.Provider,
		"locale":           a.cfg.Recognizer.Locale,
		"audioBackend":     a.cfg.Audio.Backend,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
	if a.cfg.Recognizer.Provider == config.ProviderDeepgram {
		info["model"] = a.cfg.Deepgram.Model
	}
	if a.cfg.Mirror.Enabled {
		info["mirrorSubject"] = a.cfg.Mirror.SubjectPrefix
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// quietUserError drops errors the user was already told about through a
// validation notification.
func quietUserError(err error) error {
	if errors.Is(err, domain.ErrEmptyTranscript) {
		return nil
	}
	return err
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.send(eventSession, map[string]any{
		"state":   string(state),
		"reason":  string(reason),
		"active":  state.Active(),
		"message": sessionReasonMessage(reason),
	})
}

// TranscriptChanged emits the whole current transcript.
func (a *App) TranscriptChanged(text string) {
	a.send(eventTranscript, map[string]string{"text": text})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) ShowNotification(notification domain.Notification) {
	a.send(eventNotification, map[string]any{
		"id":         notification.ID,
		"kind":       string(notification.Kind),
		"text":       notification.Text,
		"durationMs": notification.VisibleDuration.Milliseconds(),
	})
}

func (a *App) DismissNotification(id string) {
	a.send(eventNotificationDismiss, map[string]string{"id": id})
}

func (a *App) send(name string, payload any) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonStarting:
		return "Starting microphone..."
	case domain.SessionReasonRecordingStarted:
		return "Listening"
	case domain.SessionReasonRecordingRestarted:
		return "Listening; previous recording discarded"
	case domain.SessionReasonStopRequested:
		return "Stopping. Waiting for final result..."
	case domain.SessionReasonFinalResult:
		return "Transcript ready"
	case domain.SessionReasonStreamEnded:
		return "Recognition ended"
	case domain.SessionReasonFinalizeTimeout:
		return "Final result timed out; keeping last transcript"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonSetupFailed:
		return "Microphone setup failed"
	case domain.SessionReasonRecognizerUnavailable:
		return "Speech recognizer unavailable"
	case domain.SessionReasonRecognitionFailed:
		return "Recognition failed"
	case domain.SessionReasonAudioFailed:
		return "Microphone stream failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeSetup:
		return "Audio setup failed"
	case domain.ErrorCodeRecognizerUnavailable:
		return "Speech recognizer unavailable"
	case domain.ErrorCodeRecognition:
		return "Recognition error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
