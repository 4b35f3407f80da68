package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"

	"livestt/internal/domain"
)

type notifyFunc func(title, message, icon string) error

// terminal renders session events and notifications as text.
type terminal struct {
	mu     sync.Mutex
	out    io.Writer
	notify notifyFunc
}

func newTerminal(out io.Writer, desktop bool) *terminal {
	t := &terminal{out: out}
	if desktop {
		t.notify = func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		}
	}
	return t
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) TranscriptChanged(text string) {
	t.printf("> %s\n", text)
}

func (t *terminal) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	t.printf("[%s] %s\n", state, reason)
}

func (t *terminal) SessionError(code domain.ErrorCode, detail string) {
	t.printf("! %s: %s\n", code, detail)
}

func (t *terminal) ShowNotification(notification domain.Notification) {
	t.printf("* %s\n", notification.Text)
	if t.notify == nil {
		return
	}
	if err := t.notify("livestt", notification.Text, ""); err != nil {
		t.printf("! desktop notification failed: %v\n", err)
	}
}

// DismissNotification is a no-op; terminal lines and desktop toasts expire on their own.
func (t *terminal) DismissNotification(string) {}

func (t *terminal) printStatus(status domain.Status) {
	t.printf("state=%s active=%t session=%s\n", status.State, status.Active, status.SessionID)
	if status.Transcript != "" {
		t.printf("transcript: %s\n", status.Transcript)
	}
}

func (t *terminal) printHelp() {
	t.printf("commands: r=record/stop  s=stop  a=abort  c=copy  x=clear  p=status  h=help  q=quit\n")
}

type systemClipboard struct{}

func (systemClipboard) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return clipboard.WriteAll(text)
}
