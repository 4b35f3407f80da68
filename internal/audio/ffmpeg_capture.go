package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"livestt/internal/ports"
)

// FFMPEGCapture captures microphone PCM audio through an ffmpeg subprocess.
type FFMPEGCapture struct {
	command string
	logger  *zap.Logger
}

func NewFFMPEGCapture(command string, logger *zap.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFMPEGCapture{command: command, logger: logger}
}

// Open resolves the recorder and prepares a capture-only stream. The process
// is not launched until Start.
func (c *FFMPEGCapture) Open(ctx context.Context, cfg ports.AudioConfig) (ports.AudioStream, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 1024
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	path, err := exec.LookPath(c.command)
	if err != nil {
		return nil, fmt.Errorf("audio recorder %q is not available: %w", c.command, err)
	}

	return &ffmpegStream{
		ctx:     ctx,
		path:    path,
		args:    recorderArgs(cfg),
		chunk:   cfg.ChunkBytes(),
		logger:  c.logger,
		started: make(chan struct{}),
		reaped:  make(chan struct{}),
	}, nil
}

func recorderArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type ffmpegStream struct {
	tap

	ctx    context.Context
	path   string
	args   []string
	chunk  int
	logger *zap.Logger

	startOnce sync.Once
	started   chan struct{}
	stdout    io.ReadCloser
	stderr    *bytes.Buffer
	process   *os.Process
	waitErr   <-chan error
	pumpDone  chan struct{}
	stopping  atomic.Bool
	deliverMu sync.Mutex

	stopOnce sync.Once
	reaped   chan struct{}
}

func (s *ffmpegStream) Install(consumer ports.AudioConsumer) error { return s.install(consumer) }

func (s *ffmpegStream) Remove() { s.remove() }

func (s *ffmpegStream) Start() error {
	if !s.installed() {
		return ErrNoConsumer
	}

	var startErr error
	launched := false
	s.startOnce.Do(func() {
		launched = true
		startErr = s.launch()
		close(s.started)
	})
	if !launched {
		return errors.New("audio stream already started")
	}
	return startErr
}

func (s *ffmpegStream) launch() error {
	cmd := exec.CommandContext(s.ctx, s.path, s.args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stringsTrimSpaceSafe(stderr.String()))
		}
		return errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	s.stdout = stdout
	s.stderr = &stderr
	s.process = cmd.Process
	s.waitErr = waitErr
	s.pumpDone = make(chan struct{})

	go s.pump()
	return nil
}

// pump reads fixed-size frames until the recorder stops.
func (s *ffmpegStream) pump() {
	defer close(s.pumpDone)

	for {
		buf := make([]byte, s.chunk)
		n, err := io.ReadFull(s.stdout, buf)
		if n > 0 {
			s.deliver(buf[:n])
		}
		if err == nil {
			continue
		}
		if s.stopping.Load() {
			return
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
			err = errors.New("audio recorder exited unexpectedly")
		}
		s.logger.Warn("audio capture failed", zap.Error(err))
		s.fail(fmt.Errorf("audio capture error: %w", err))
		return
	}
}

func (s *ffmpegStream) deliver(frame []byte) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.stopping.Load() {
		s.frame(frame)
	}
}

// Stop interrupts the recorder and returns without waiting for it to exit.
// No frame delivery starts afterwards, but one already in flight is waited
// for. The process is reaped in the background.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		// Waits out a delivery already in flight.
		s.deliverMu.Lock()
		s.deliverMu.Unlock()
		s.startOnce.Do(func() { close(s.started) })
		<-s.started
		if s.process == nil {
			close(s.reaped)
			return
		}
		_ = s.process.Signal(os.Interrupt)
		go s.reap()
	})
	return nil
}

// reap waits for the recorder, killing it if it ignores the interrupt.
func (s *ffmpegStream) reap() {
	defer close(s.reaped)

	var err error
	select {
	case err = <-s.waitErr:
	case <-time.After(1200 * time.Millisecond):
		_ = s.process.Kill()
		err = <-s.waitErr
	}
	err = normalizeStopErr(err)

	if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
		err = closeErr
	}
	<-s.pumpDone

	if err != nil {
		s.logger.Warn("audio recorder did not stop cleanly",
			zap.Error(err),
			zap.String("stderr", stringsTrimSpaceSafe(s.stderr.String())),
		)
	}
}

func (s *ffmpegStream) Close() error {
	err := s.Stop()
	s.remove()
	return err
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
