package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LIVESTT_CONFIG", "")
	t.Setenv("LIVESTT_ENV_FILE", filepath.Join(dir, "missing.env"))
	for _, key := range []string{
		"LIVESTT_PROVIDER", "LIVESTT_LOCALE", "DEEPGRAM_API_KEY", "DEEPGRAM_API_BASE", "DEEPGRAM_MODEL",
		"AZURE_SPEECH_KEY", "AZURE_SPEECH_REGION", "LIVESTT_AUDIO_BACKEND", "LIVESTT_AUDIO_INPUT_DEVICE",
		"PULSE_SOURCE", "LIVESTT_SAMPLE_RATE", "LIVESTT_FRAMES_PER_BUFFER", "LIVESTT_NOTIFICATION_MS",
		"LIVESTT_FINALIZE_TIMEOUT_MS", "LIVESTT_NATS_ENABLED", "NATS_URL", "LIVESTT_NATS_SUBJECT_PREFIX",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recognizer.Provider != ProviderDeepgram {
		t.Fatalf("unexpected provider: %q", cfg.Recognizer.Provider)
	}
	if cfg.Recognizer.Locale != "es-ES" {
		t.Fatalf("unexpected locale: %q", cfg.Recognizer.Locale)
	}
	if cfg.Audio.FramesPerBuffer != 1024 || cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Notifications.Duration() != 1200*time.Millisecond {
		t.Fatalf("unexpected notification duration: %s", cfg.Notifications.Duration())
	}
	if cfg.Session.FinalizeTimeout() != 4*time.Second {
		t.Fatalf("unexpected finalize timeout: %s", cfg.Session.FinalizeTimeout())
	}
	if cfg.Mirror.Enabled {
		t.Fatalf("mirror must be disabled by default")
	}
}

func TestLoadYAMLThenEnvironmentPrecedence(t *testing.T) {
	dir := isolateEnv(t)

	path := filepath.Join(dir, "livestt.yaml")
	writeFile(t, path, strings.Join([]string{
		"recognizer:",
		"  provider: azure",
		"  locale: en-GB",
		"azure:",
		"  subscription_key: yaml-key",
		"  region: westeurope",
		"audio:",
		"  backend: portaudio",
		"  frames_per_buffer: 512",
		"session:",
		"  finalize_timeout_ms: 2500",
		"",
	}, "\n"))

	t.Setenv("LIVESTT_CONFIG", path)
	t.Setenv("LIVESTT_LOCALE", "fr-FR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recognizer.Provider != ProviderAzure {
		t.Fatalf("expected provider from yaml, got %q", cfg.Recognizer.Provider)
	}
	if cfg.Recognizer.Locale != "fr-FR" {
		t.Fatalf("expected env locale to win, got %q", cfg.Recognizer.Locale)
	}
	if cfg.Azure.SubscriptionKey != "yaml-key" || cfg.Azure.Region != "westeurope" {
		t.Fatalf("unexpected azure config: %+v", cfg.Azure)
	}
	if cfg.Audio.Backend != BackendPortAudio || cfg.Audio.FramesPerBuffer != 512 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected untouched defaults to survive yaml, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Session.FinalizeTimeout() != 2500*time.Millisecond {
		t.Fatalf("unexpected finalize timeout: %s", cfg.Session.FinalizeTimeout())
	}
}

func TestLoadDotenvIsLowerPrecedenceThanProcessEnv(t *testing.T) {
	dir := isolateEnv(t)

	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "DEEPGRAM_API_KEY=from-dotenv\nDEEPGRAM_MODEL=nova-3\n")
	t.Setenv("LIVESTT_ENV_FILE", envFile)
	t.Setenv("DEEPGRAM_MODEL", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Deepgram.APIKey != "from-dotenv" {
		t.Fatalf("expected dotenv api key, got %q", cfg.Deepgram.APIKey)
	}
	if cfg.Deepgram.Model != "from-env" {
		t.Fatalf("expected process env model, got %q", cfg.Deepgram.Model)
	}
	if os.Getenv("DEEPGRAM_API_KEY") != "" {
		t.Fatalf("dotenv must not mutate the process environment")
	}
}

func TestLoadClampsAndFallsBack(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LIVESTT_NOTIFICATION_MS", "5000")
	t.Setenv("LIVESTT_FRAMES_PER_BUFFER", "8")
	t.Setenv("LIVESTT_SAMPLE_RATE", "not-a-number")
	t.Setenv("LIVESTT_FINALIZE_TIMEOUT_MS", "-5")
	t.Setenv("PULSE_SOURCE", "alsa_input.usb")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Notifications.DurationMS != maxNotificationMS {
		t.Fatalf("expected clamped duration, got %d", cfg.Notifications.DurationMS)
	}
	if cfg.Audio.FramesPerBuffer != 1024 {
		t.Fatalf("expected frames fallback, got %d", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected sample rate fallback, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Session.FinalizeTimeoutMS != 4000 {
		t.Fatalf("expected finalize timeout fallback, got %d", cfg.Session.FinalizeTimeoutMS)
	}
	if cfg.Audio.InputDevice != "alsa_input.usb" {
		t.Fatalf("expected pulse source fallback, got %q", cfg.Audio.InputDevice)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"provider": {"LIVESTT_PROVIDER": "whisper"},
		"backend":  {"LIVESTT_AUDIO_BACKEND": "alsa"},
		"mirror":   {"LIVESTT_NATS_ENABLED": "true", "LIVESTT_NATS_SUBJECT_PREFIX": "..."},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			isolateEnv(t)
			for key, value := range env {
				t.Setenv(key, value)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	dir := isolateEnv(t)
	t.Setenv("LIVESTT_CONFIG", filepath.Join(dir, "nope.yaml"))

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}

func TestSourceBoolOr(t *testing.T) {
	src := source{dotenv: map[string]string{"A": "yes", "B": "off", "C": "maybe"}}
	t.Setenv("A", "")
	t.Setenv("B", "")
	t.Setenv("C", "")

	if !src.boolOr("A", false) {
		t.Fatalf("expected true")
	}
	if src.boolOr("B", true) {
		t.Fatalf("expected false")
	}
	if !src.boolOr("C", true) {
		t.Fatalf("expected fallback")
	}
}
