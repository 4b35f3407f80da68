package usecase

import (
	"fmt"
	"sync/atomic"

	"livestt/internal/domain"
	"livestt/internal/ports"
)

// frameForwarder is the single consumer installed on an attempt's audio
// stream. It runs on the capture goroutine and feeds frames straight into the
// recognition task; failures are reported once through onFailure. No lock is
// held across SendAudio, so detach never waits on a slow recognizer.
type frameForwarder struct {
	task      ports.RecognitionTask
	onFailure func(error)

	detached atomic.Bool
	failed   atomic.Bool
}

func newFrameForwarder(task ports.RecognitionTask, onFailure func(error)) *frameForwarder {
	return &frameForwarder{task: task, onFailure: onFailure}
}

func (f *frameForwarder) OnFrame(frame []byte) {
	if len(frame) == 0 || !f.live() {
		return
	}
	if err := f.task.SendAudio(frame); err != nil {
		f.report(fmt.Errorf("%w: failed to stream audio: %w", domain.ErrRecognition, err))
	}
}

func (f *frameForwarder) OnError(err error) {
	if !f.live() {
		return
	}
	f.report(fmt.Errorf("%w: %w", domain.ErrAudioStream, err))
}

func (f *frameForwarder) live() bool {
	return !f.detached.Load() && !f.failed.Load()
}

// report delivers the first failure seen while attached. A send that fails
// because the attempt was stopped meanwhile is not a failure.
func (f *frameForwarder) report(err error) {
	if f.detached.Load() || !f.failed.CompareAndSwap(false, true) {
		return
	}
	if f.onFailure != nil {
		f.onFailure(err)
	}
}

func (f *frameForwarder) detach() {
	f.detached.Store(true)
}

// forwardTranscriptEvents moves task events onto the dispatch queue in arrival
// order, then reports the end of the channel.
func forwardTranscriptEvents(
	events <-chan domain.TranscriptEvent,
	deliver func(domain.TranscriptEvent),
	closed func(),
) {
	for event := range events {
		deliver(event)
	}
	closed()
}
