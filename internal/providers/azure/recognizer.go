// Package azure streams microphone audio to Azure Cognitive Services Speech.
// The SDK needs cgo and the native Speech SDK, so the streaming implementation
// is only compiled with -tags azurespeech.
package azure

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

var ErrSDKUnavailable = errors.New("azure speech support requires building with -tags azurespeech")

// Config holds Azure Speech credentials.
type Config struct {
	SubscriptionKey string
	Region          string
	Language        string
}

// Recognizer implements ports.Recognizer for Azure Speech.
type Recognizer struct {
	cfg    Config
	logger *zap.Logger
}

func NewRecognizer(cfg Config, logger *zap.Logger) *Recognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recognizer{cfg: cfg, logger: logger}
}

func (r *Recognizer) validate() error {
	if strings.TrimSpace(r.cfg.SubscriptionKey) == "" || strings.TrimSpace(r.cfg.Region) == "" {
		return errors.New("azure recognizer requires AZURE_SPEECH_KEY and AZURE_SPEECH_REGION")
	}
	return nil
}

func (r *Recognizer) language(locale string) string {
	if trimmed := strings.TrimSpace(locale); trimmed != "" {
		return trimmed
	}
	if trimmed := strings.TrimSpace(r.cfg.Language); trimmed != "" {
		return trimmed
	}
	return "es-ES"
}
