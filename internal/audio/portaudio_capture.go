//go:build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"livestt/internal/ports"
)

// PortAudioCapture captures microphone audio in-process through PortAudio.
type PortAudioCapture struct {
	logger *zap.Logger
}

func NewPortAudioCapture(logger *zap.Logger) *PortAudioCapture {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortAudioCapture{logger: logger}
}

func (c *PortAudioCapture) Open(_ context.Context, cfg ports.AudioConfig) (ports.AudioStream, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 1024
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	device, err := inputDevice(cfg.InputDevice)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	if device.MaxInputChannels < cfg.Channels {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("input device %q supports %d channels, need %d", device.Name, device.MaxInputChannels, cfg.Channels)
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = cfg.Channels
	params.Output.Channels = 0
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FramesPerBuffer

	s := &portAudioStream{logger: c.logger.With(zap.String("device", device.Name))}
	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

func inputDevice(name string) (*portaudio.DeviceInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "default" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}
	for _, device := range devices {
		if device.MaxInputChannels > 0 && device.Name == name {
			return device, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", name)
}

type portAudioStream struct {
	tap

	stream *portaudio.Stream
	logger *zap.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	closed   bool
	stopping atomic.Bool
}

// callback runs on the PortAudio thread.
func (s *portAudioStream) callback(in []int16) {
	if s.stopping.Load() {
		return
	}
	frame := make([]byte, len(in)*2)
	for i, sample := range in {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(sample))
	}
	s.frame(frame)
}

func (s *portAudioStream) Install(consumer ports.AudioConsumer) error { return s.install(consumer) }

func (s *portAudioStream) Remove() { s.remove() }

func (s *portAudioStream) Start() error {
	if !s.installed() {
		return ErrNoConsumer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stopped {
		return fmt.Errorf("audio stream is closed")
	}
	if s.started {
		return fmt.Errorf("audio stream already started")
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	s.started = true
	return nil
}

// Stop returns once PortAudio has finished its last callback.
func (s *portAudioStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping.Store(true)
	if !s.started || s.stopped {
		s.stopped = true
		return nil
	}
	s.stopped = true
	if err := s.stream.Stop(); err != nil {
		s.logger.Warn("failed to stop input stream", zap.Error(err))
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

func (s *portAudioStream) Close() error {
	stopErr := s.Stop()
	s.remove()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stopErr
	}
	s.closed = true
	if err := s.stream.Close(); err != nil && stopErr == nil {
		stopErr = fmt.Errorf("failed to close input stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && stopErr == nil {
		stopErr = fmt.Errorf("failed to terminate portaudio: %w", err)
	}
	return stopErr
}
