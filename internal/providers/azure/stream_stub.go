//go:build !azurespeech

package azure

import (
	"context"

	"livestt/internal/ports"
)

func (r *Recognizer) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.RecognitionTask, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	return nil, ErrSDKUnavailable
}
