package usecase

import (
	"time"

	"livestt/internal/ports"
)

// attempt holds the handles of one Start call. Fields are only touched on the
// dispatch queue, except for the frame forwarder which has its own guard.
type attempt struct {
	id     string
	cancel func()

	audio     ports.AudioStream
	task      ports.RecognitionTask
	forwarder *frameForwarder

	stopRequested bool
	finalizeTimer *time.Timer
}

func (a *attempt) release() {
	if a.finalizeTimer != nil {
		a.finalizeTimer.Stop()
		a.finalizeTimer = nil
	}
	if a.forwarder != nil {
		a.forwarder.detach()
	}
	// Task before audio: audio.Stop may wait on a frame blocked in SendAudio.
	if a.task != nil {
		_ = a.task.Close()
		a.task = nil
	}
	if a.audio != nil {
		_ = a.audio.Stop()
		a.audio.Remove()
		_ = a.audio.Close()
		a.audio = nil
	}
	if a.cancel != nil {
		a.cancel()
	}
}
