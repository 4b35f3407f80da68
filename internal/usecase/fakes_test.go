package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"livestt/internal/dispatch"
	"livestt/internal/domain"
	"livestt/internal/ports"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) index(entry string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, e := range j.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeMicrophone struct {
	mu      sync.Mutex
	streams []*fakeAudioStream
	err     error
	calls   int
	log     *journal
}

func (f *fakeMicrophone) Open(_ context.Context, _ ports.AudioConfig) (ports.AudioStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.log.add("mic.open#%d", f.calls)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls > len(f.streams) {
		return nil, errors.New("no audio stream configured")
	}
	return f.streams[f.calls-1], nil
}

type fakeAudioStream struct {
	name string
	log  *journal

	mu         sync.Mutex
	consumer   ports.AudioConsumer
	installErr error
	startErr   error
	started    int
	stopped    int
	removed    int
	closed     int

	inflight sync.WaitGroup
}

func (f *fakeAudioStream) Install(consumer ports.AudioConsumer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.installErr != nil {
		return f.installErr
	}
	f.consumer = consumer
	return nil
}

func (f *fakeAudioStream) Remove() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	f.consumer = nil
}

func (f *fakeAudioStream) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	return nil
}

// Stop waits for a delivery already in flight, like a real capture loop.
func (f *fakeAudioStream) Stop() error {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
	f.inflight.Wait()
	return nil
}

func (f *fakeAudioStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.log.add("%s.close", f.name)
	return nil
}

// emit delivers a frame the way a capture goroutine would.
func (f *fakeAudioStream) emit(frame []byte) {
	f.mu.Lock()
	consumer := f.consumer
	running := f.started > f.stopped
	if consumer != nil && running {
		f.inflight.Add(1)
	}
	f.mu.Unlock()
	if consumer != nil && running {
		defer f.inflight.Done()
		consumer.OnFrame(frame)
	}
}

func (f *fakeAudioStream) fail(err error) {
	f.mu.Lock()
	consumer := f.consumer
	f.mu.Unlock()
	if consumer != nil {
		consumer.OnError(err)
	}
}

func (f *fakeAudioStream) counts() (started, stopped, removed, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped, f.removed, f.closed
}

func (f *fakeAudioStream) hasConsumer() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumer != nil
}

type fakeRecognizer struct {
	mu      sync.Mutex
	tasks   []*fakeTask
	err     error
	calls   int
	lastCfg ports.StreamingConfig
	log     *journal
}

func (f *fakeRecognizer) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.RecognitionTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastCfg = cfg
	f.log.add("recognizer.start#%d", f.calls)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls > len(f.tasks) {
		return nil, errors.New("no recognition task configured")
	}
	return f.tasks[f.calls-1], nil
}

type fakeTask struct {
	name string
	log  *journal

	events             chan domain.TranscriptEvent
	closeEventsOnClose bool

	mu         sync.Mutex
	sent       [][]byte
	sendErr    error
	closeSend  int
	closeCalls int
	ended      bool

	// Set by blockSends: SendAudio parks until CloseSend or Close.
	entered     chan struct{}
	unblock     chan struct{}
	unblockOnce sync.Once
}

func newFakeTask(name string, log *journal) *fakeTask {
	return &fakeTask{
		name:               name,
		log:                log,
		events:             make(chan domain.TranscriptEvent, 16),
		closeEventsOnClose: true,
	}
}

// blockSends makes SendAudio stall the way a peer that stopped reading does.
func (f *fakeTask) blockSends() {
	f.entered = make(chan struct{}, 1)
	f.unblock = make(chan struct{})
}

func (f *fakeTask) SendAudio(chunk []byte) error {
	if f.unblock != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.unblock
		return errors.New("send closed")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeTask) releaseSends() {
	if f.unblock != nil {
		f.unblockOnce.Do(func() { close(f.unblock) })
	}
}

func (f *fakeTask) CloseSend() error {
	f.mu.Lock()
	f.closeSend++
	f.mu.Unlock()
	f.releaseSends()
	return nil
}

func (f *fakeTask) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeTask) Close() error {
	f.mu.Lock()
	f.closeCalls++
	closeEvents := f.closeEventsOnClose
	f.mu.Unlock()
	f.releaseSends()
	f.log.add("%s.close", f.name)
	if closeEvents {
		f.end()
	}
	return nil
}

func (f *fakeTask) push(event domain.TranscriptEvent) {
	f.events <- event
}

func (f *fakeTask) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ended {
		close(f.events)
		f.ended = true
	}
}

func (f *fakeTask) snapshot() (sent [][]byte, closeSend, closeCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out, f.closeSend, f.closeCalls
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	transcripts []string
	errors      []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) TranscriptChanged(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, text)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotTranscripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.transcripts))
	copy(out, f.transcripts)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) lastState() stateEvent {
	states := f.snapshotStates()
	if len(states) == 0 {
		return stateEvent{}
	}
	return states[len(states)-1]
}

type fakeClipboard struct {
	mu       sync.Mutex
	lastText string
	calls    int
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.lastText = text
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	shown []domain.Notification
}

func (f *fakeNotifier) Notify(kind domain.NotificationKind, text string) domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := domain.Notification{ID: fmt.Sprintf("n%d", len(f.shown)+1), Kind: kind, Text: text}
	f.shown = append(f.shown, n)
	return n
}

func (f *fakeNotifier) snapshot() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notification, len(f.shown))
	copy(out, f.shown)
	return out
}

type sessionHarness struct {
	session *RecognitionSession
	queue   *dispatch.Queue
	mic     *fakeMicrophone
	rec     *fakeRecognizer
	sink    *fakeEventSink
	log     *journal
	streams []*fakeAudioStream
	tasks   []*fakeTask
}

func newSessionHarness(t *testing.T, attempts int, cfg Config) *sessionHarness {
	t.Helper()

	log := &journal{}
	h := &sessionHarness{
		queue: dispatch.NewQueue(),
		sink:  &fakeEventSink{},
		log:   log,
	}
	for i := 1; i <= attempts; i++ {
		h.streams = append(h.streams, &fakeAudioStream{name: fmt.Sprintf("stream#%d", i), log: log})
		h.tasks = append(h.tasks, newFakeTask(fmt.Sprintf("task#%d", i), log))
	}
	h.mic = &fakeMicrophone{streams: h.streams, log: log}
	h.rec = &fakeRecognizer{tasks: h.tasks, log: log}
	h.session = NewRecognitionSession(h.mic, h.rec, h.sink, h.queue, nil, cfg)

	next := 0
	h.session.newID = func() string {
		next++
		return fmt.Sprintf("attempt-%d", next)
	}

	t.Cleanup(h.queue.Close)
	return h
}

func (h *sessionHarness) flush(t *testing.T) {
	t.Helper()
	if err := h.queue.Do(func() {}); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
