//go:build !azurespeech

package azure

import (
	"context"
	"errors"
	"testing"

	"livestt/internal/ports"
)

func TestStartStreamingRequiresCredentials(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{Region: "westeurope"}, nil)
	_, err := r.StartStreaming(context.Background(), ports.StreamingConfig{})
	if err == nil || errors.Is(err, ErrSDKUnavailable) {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestStartStreamingWithoutSDK(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{SubscriptionKey: "key", Region: "westeurope"}, nil)
	_, err := r.StartStreaming(context.Background(), ports.StreamingConfig{})
	if !errors.Is(err, ErrSDKUnavailable) {
		t.Fatalf("expected ErrSDKUnavailable, got %v", err)
	}
}

func TestLanguagePrecedence(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{Language: "en-US"}, nil)
	if got := r.language("fr-FR"); got != "fr-FR" {
		t.Fatalf("expected locale to win, got %q", got)
	}
	if got := r.language(" "); got != "en-US" {
		t.Fatalf("expected configured language, got %q", got)
	}
	if got := NewRecognizer(Config{}, nil).language(""); got != "es-ES" {
		t.Fatalf("expected default locale, got %q", got)
	}
}
