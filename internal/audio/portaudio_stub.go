//go:build !portaudio

package audio

import (
	"context"

	"go.uber.org/zap"

	"livestt/internal/ports"
)

// PortAudioCapture is unavailable without -tags portaudio.
type PortAudioCapture struct {
	logger *zap.Logger
}

func NewPortAudioCapture(logger *zap.Logger) *PortAudioCapture {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortAudioCapture{logger: logger}
}

func (c *PortAudioCapture) Open(_ context.Context, _ ports.AudioConfig) (ports.AudioStream, error) {
	return nil, ErrPortAudioUnavailable
}
