package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"livestt/internal/domain"
	"livestt/internal/ports"
)

const (
	MessageCopied       = "Text copied to clipboard"
	MessageCopyFailed   = "Could not copy text to clipboard"
	MessageNothingCopy  = "Nothing to copy yet"
	MessageCleared      = "Transcript cleared"
	MessageNothingClear = "Nothing to clear"
)

type transcriptSession interface {
	Start(ctx context.Context) error
	Stop() error
	Clear() (bool, error)
	Status() domain.Status
}

// TranscriptActions implements the user-facing copy, clear and record toggle.
type TranscriptActions struct {
	session   transcriptSession
	clipboard ports.Clipboard
	notifier  ports.Notifier
	logger    *zap.Logger
}

func NewTranscriptActions(session transcriptSession, clipboard ports.Clipboard, notifier ports.Notifier, logger *zap.Logger) *TranscriptActions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptActions{session: session, clipboard: clipboard, notifier: notifier, logger: logger}
}

// Copy writes the current transcript to the clipboard verbatim.
func (a *TranscriptActions) Copy(ctx context.Context) error {
	text := a.session.Status().Transcript
	if text == "" {
		a.notifier.Notify(domain.NotificationValidation, MessageNothingCopy)
		return domain.ErrEmptyTranscript
	}

	if err := a.clipboard.SetText(ctx, text); err != nil {
		a.logger.Warn("clipboard write failed", zap.Error(err))
		a.notifier.Notify(domain.NotificationError, MessageCopyFailed)
		return fmt.Errorf("%w: %w", domain.ErrClipboard, err)
	}

	a.notifier.Notify(domain.NotificationInfo, MessageCopied)
	return nil
}

// Clear resets the transcript.
func (a *TranscriptActions) Clear() error {
	cleared, err := a.session.Clear()
	if err != nil {
		return err
	}
	if !cleared {
		a.notifier.Notify(domain.NotificationValidation, MessageNothingClear)
		return domain.ErrEmptyTranscript
	}
	a.notifier.Notify(domain.NotificationInfo, MessageCleared)
	return nil
}

// Toggle starts recording when idle and stops it otherwise.
func (a *TranscriptActions) Toggle(ctx context.Context) (domain.Status, error) {
	if a.session.Status().Active {
		if err := a.session.Stop(); err != nil {
			return a.session.Status(), err
		}
		return a.session.Status(), nil
	}
	if err := a.session.Start(ctx); err != nil {
		return a.session.Status(), err
	}
	return a.session.Status(), nil
}
