package usecase

import (
	"errors"
	"testing"

	"livestt/internal/domain"
)

func TestFrameForwarderReportsFirstFailureOnly(t *testing.T) {
	t.Parallel()

	task := newFakeTask("task", nil)
	task.sendErr = errors.New("write: broken pipe")
	var reported []error
	forwarder := newFrameForwarder(task, func(err error) { reported = append(reported, err) })

	forwarder.OnFrame([]byte("a"))
	forwarder.OnFrame([]byte("b"))
	forwarder.OnError(errors.New("device unplugged"))

	if len(reported) != 1 || !errors.Is(reported[0], domain.ErrRecognition) {
		t.Fatalf("expected one recognition failure, got %v", reported)
	}
}

func TestFrameForwarderDetachSilencesFailures(t *testing.T) {
	t.Parallel()

	task := newFakeTask("task", nil)
	var reported []error
	forwarder := newFrameForwarder(task, func(err error) { reported = append(reported, err) })

	forwarder.OnFrame([]byte("a"))
	forwarder.detach()
	forwarder.OnFrame([]byte("b"))
	forwarder.OnError(errors.New("device unplugged"))
	forwarder.report(errors.New("send closed"))

	if len(reported) != 0 {
		t.Fatalf("detached forwarder must not report, got %v", reported)
	}
	if sent, _, _ := task.snapshot(); len(sent) != 1 || string(sent[0]) != "a" {
		t.Fatalf("expected only the attached frame forwarded, got %q", sent)
	}
}
