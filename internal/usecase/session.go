package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"livestt/internal/dispatch"
	"livestt/internal/domain"
	"livestt/internal/ports"
)

var errStreamEnded = errors.New("recognition stream ended without a final result")

// Config controls recognition session behavior.
type Config struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	// FinalizeTimeout bounds the wait for a final result after Stop. Zero waits forever.
	FinalizeTimeout time.Duration
}

// RecognitionSession owns the microphone stream and the recognition task of
// the current attempt and reconciles recognizer results into UI state.
//
// All state changes and sink calls happen on the dispatch queue. Snapshot
// readers (Status, Transcript) may run on any goroutine.
type RecognitionSession struct {
	mic        ports.Microphone
	recognizer ports.Recognizer
	events     ports.EventSink
	queue      *dispatch.Queue
	logger     *zap.Logger
	cfg        Config
	newID      func() string

	// queue-owned
	current *attempt

	mu         sync.RWMutex
	state      domain.SessionState
	transcript string
	sessionID  string
}

func NewRecognitionSession(
	mic ports.Microphone,
	recognizer ports.Recognizer,
	events ports.EventSink,
	queue *dispatch.Queue,
	logger *zap.Logger,
	cfg Config,
) *RecognitionSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecognitionSession{
		mic:        mic,
		recognizer: recognizer,
		events:     events,
		queue:      queue,
		logger:     logger,
		cfg:        cfg,
		newID:      func() string { return uuid.NewString() },
		state:      domain.SessionStateIdle,
	}
}

// Start begins a new attempt, force-releasing any attempt still in flight.
func (s *RecognitionSession) Start(ctx context.Context) error {
	var startErr error
	if err := s.queue.Do(func() { startErr = s.start(ctx) }); err != nil {
		return err
	}
	return startErr
}

// Stop ends audio capture and signals end of input. The recognition task is
// left running so that its final result is still applied. Stop is a no-op
// without an active attempt.
func (s *RecognitionSession) Stop() error {
	return s.queue.Do(s.stop)
}

// Abort cancels the active attempt without waiting for a final result.
func (s *RecognitionSession) Abort() error {
	var abortErr error
	if err := s.queue.Do(func() {
		active := s.current
		if active == nil {
			abortErr = domain.ErrNoActiveSession
			return
		}
		s.logger.Info("aborting recognition attempt", zap.String("session_id", active.id))
		s.teardown(active, domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	}); err != nil {
		return err
	}
	return abortErr
}

// Clear resets the transcript and reports whether there was anything to
// clear. The check and the reset happen in the same queue turn.
func (s *RecognitionSession) Clear() (bool, error) {
	cleared := false
	err := s.queue.Do(func() {
		if s.transcript == "" {
			return
		}
		s.setTranscript("")
		cleared = true
	})
	return cleared, err
}

// Close releases an active attempt. Used on shutdown.
func (s *RecognitionSession) Close() error {
	err := s.Abort()
	if errors.Is(err, domain.ErrNoActiveSession) {
		return nil
	}
	return err
}

// Status returns a consistent snapshot of the session.
func (s *RecognitionSession) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Status{
		State:      s.state,
		Active:     s.state.Active(),
		SessionID:  s.sessionID,
		Transcript: s.transcript,
	}
}

func (s *RecognitionSession) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript
}

func (s *RecognitionSession) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *RecognitionSession) start(ctx context.Context) error {
	restarted := false
	if previous := s.current; previous != nil {
		s.logger.Info("releasing previous attempt before restart", zap.String("session_id", previous.id))
		previous.release()
		s.current = nil
		restarted = true
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	active := &attempt{id: s.newID(), cancel: cancel}
	s.current = active
	s.setSessionID(active.id)
	s.setState(domain.SessionStateStarting, domain.SessionReasonStarting)

	log := s.logger.With(zap.String("session_id", active.id))

	stream, err := s.mic.Open(attemptCtx, s.cfg.Audio)
	if err != nil {
		return s.abortStart(active, fmt.Errorf("%w: %w", domain.ErrSetup, err), domain.SessionReasonSetupFailed)
	}
	active.audio = stream

	task, err := s.recognizer.StartStreaming(attemptCtx, s.cfg.Streaming)
	if err != nil {
		return s.abortStart(active, fmt.Errorf("%w: %w", domain.ErrRecognizerUnavailable, err), domain.SessionReasonRecognizerUnavailable)
	}
	active.task = task

	active.forwarder = newFrameForwarder(task, func(err error) {
		s.queue.Post(func() { s.fail(active, err) })
	})
	if err := stream.Install(active.forwarder); err != nil {
		return s.abortStart(active, fmt.Errorf("%w: %w", domain.ErrSetup, err), domain.SessionReasonSetupFailed)
	}

	go forwardTranscriptEvents(
		task.Events(),
		func(event domain.TranscriptEvent) {
			s.queue.Post(func() { s.handleEvent(active, event) })
		},
		func() {
			s.queue.Post(func() { s.handleEventsClosed(active) })
		},
	)

	if err := stream.Start(); err != nil {
		return s.abortStart(active, fmt.Errorf("%w: %w", domain.ErrSetup, err), domain.SessionReasonSetupFailed)
	}

	reason := domain.SessionReasonRecordingStarted
	if restarted {
		reason = domain.SessionReasonRecordingRestarted
	}
	log.Info("recording started", zap.String("locale", s.cfg.Streaming.Locale))
	s.setState(domain.SessionStateRecording, reason)
	return nil
}

func (s *RecognitionSession) abortStart(active *attempt, err error, reason domain.SessionStateReason) error {
	s.logger.Warn("recognition attempt failed to start",
		zap.String("session_id", active.id),
		zap.Error(err),
	)
	s.events.SessionError(domain.CodeFor(err), err.Error())
	s.teardown(active, domain.SessionStateFailed, reason)
	return err
}

func (s *RecognitionSession) stop() {
	active := s.current
	if active == nil || active.stopRequested {
		return
	}
	active.stopRequested = true

	log := s.logger.With(zap.String("session_id", active.id))

	// CloseSend precedes audio.Stop, which may wait on a frame blocked in SendAudio.
	active.forwarder.detach()
	if err := active.task.CloseSend(); err != nil {
		log.Warn("failed to signal end of audio", zap.Error(err))
	}
	if err := active.audio.Stop(); err != nil {
		log.Warn("failed to stop audio capture cleanly", zap.Error(err))
	}
	active.audio.Remove()

	s.setState(domain.SessionStateStopping, domain.SessionReasonStopRequested)

	if s.cfg.FinalizeTimeout > 0 {
		active.finalizeTimer = time.AfterFunc(s.cfg.FinalizeTimeout, func() {
			s.queue.Post(func() { s.finalizeTimedOut(active) })
		})
	}
}

func (s *RecognitionSession) handleEvent(active *attempt, event domain.TranscriptEvent) {
	if s.current != active {
		return
	}

	if event.Err != nil {
		s.fail(active, fmt.Errorf("%w: %w", domain.ErrRecognition, event.Err))
		return
	}

	if strings.TrimSpace(event.Text) != "" {
		s.setTranscript(event.Text)
	}

	if event.Kind == domain.TranscriptKindFinal {
		s.teardown(active, domain.SessionStateFinished, domain.SessionReasonFinalResult)
	}
}

func (s *RecognitionSession) handleEventsClosed(active *attempt) {
	if s.current != active {
		return
	}
	if active.stopRequested {
		s.teardown(active, domain.SessionStateFinished, domain.SessionReasonStreamEnded)
		return
	}
	s.fail(active, fmt.Errorf("%w: %w", domain.ErrRecognition, errStreamEnded))
}

func (s *RecognitionSession) finalizeTimedOut(active *attempt) {
	if s.current != active {
		return
	}
	s.logger.Warn("final result did not arrive in time",
		zap.String("session_id", active.id),
		zap.Duration("timeout", s.cfg.FinalizeTimeout),
	)
	s.teardown(active, domain.SessionStateFinished, domain.SessionReasonFinalizeTimeout)
}

func (s *RecognitionSession) fail(active *attempt, err error) {
	if s.current != active {
		return
	}

	reason := domain.SessionReasonRecognitionFailed
	if errors.Is(err, domain.ErrAudioStream) {
		reason = domain.SessionReasonAudioFailed
	}
	s.logger.Warn("recognition attempt failed", zap.String("session_id", active.id), zap.Error(err))
	s.events.SessionError(domain.CodeFor(err), err.Error())
	s.teardown(active, domain.SessionStateFailed, reason)
}

func (s *RecognitionSession) teardown(active *attempt, state domain.SessionState, reason domain.SessionStateReason) {
	active.release()
	if s.current == active {
		s.current = nil
	}
	s.setState(state, reason)
}

func (s *RecognitionSession) setState(state domain.SessionState, reason domain.SessionStateReason) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.events.SessionStateChanged(state, reason)
}

func (s *RecognitionSession) setTranscript(text string) {
	s.mu.Lock()
	s.transcript = text
	s.mu.Unlock()
	s.events.TranscriptChanged(text)
}

func (s *RecognitionSession) setSessionID(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}
