package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderDeepgram = "deepgram"
	ProviderAzure    = "azure"

	BackendFFMPEG    = "ffmpeg"
	BackendPortAudio = "portaudio"

	minNotificationMS = 1000
	maxNotificationMS = 1500
)

// Config stores runtime configuration.
type Config struct {
	Recognizer    RecognizerConfig   `yaml:"recognizer"`
	Deepgram      DeepgramConfig     `yaml:"deepgram"`
	Azure         AzureConfig        `yaml:"azure"`
	Audio         AudioConfig        `yaml:"audio"`
	Session       SessionConfig      `yaml:"session"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Mirror        MirrorConfig       `yaml:"mirror"`
}

type RecognizerConfig struct {
	Provider string `yaml:"provider"`
	Locale   string `yaml:"locale"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base_url"`
	Model       string `yaml:"model"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AzureConfig struct {
	SubscriptionKey string `yaml:"subscription_key"`
	Region          string `yaml:"region"`
}

type AudioConfig struct {
	Backend         string `yaml:"backend"`
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
}

type SessionConfig struct {
	FinalizeTimeoutMS int `yaml:"finalize_timeout_ms"`
}

func (c SessionConfig) FinalizeTimeout() time.Duration {
	return time.Duration(c.FinalizeTimeoutMS) * time.Millisecond
}

type NotificationConfig struct {
	DurationMS int `yaml:"duration_ms"`
}

func (c NotificationConfig) Duration() time.Duration {
	return time.Duration(c.DurationMS) * time.Millisecond
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MirrorConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	ClientName    string `yaml:"client_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Recognizer: RecognizerConfig{
			Provider: ProviderDeepgram,
			Locale:   "es-ES",
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Audio: AudioConfig{
			Backend:         BackendFFMPEG,
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
			FramesPerBuffer: 1024,
		},
		Session: SessionConfig{
			FinalizeTimeoutMS: 4000,
		},
		Notifications: NotificationConfig{
			DurationMS: 1200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Mirror: MirrorConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "livestt",
			ClientName:    "livestt",
		},
	}
}

// Load resolves configuration from defaults, an optional YAML file
// (LIVESTT_CONFIG), an optional dotenv file (LIVESTT_ENV_FILE, default .env)
// and environment variables, in increasing order of precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("LIVESTT_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	src, err := newSource(envOrDefault("LIVESTT_ENV_FILE", ".env"))
	if err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg, src)
	normalize(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %w", err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, src source) {
	cfg.Recognizer.Provider = strings.ToLower(src.stringOr("LIVESTT_PROVIDER", cfg.Recognizer.Provider))
	cfg.Recognizer.Locale = src.stringOr("LIVESTT_LOCALE", cfg.Recognizer.Locale)

	cfg.Deepgram.APIKey = src.stringOr("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = src.stringOr("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = src.stringOr("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.SmartFormat = src.boolOr("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)

	cfg.Azure.SubscriptionKey = src.stringOr("AZURE_SPEECH_KEY", cfg.Azure.SubscriptionKey)
	cfg.Azure.Region = src.stringOr("AZURE_SPEECH_REGION", cfg.Azure.Region)

	cfg.Audio.Backend = strings.ToLower(src.stringOr("LIVESTT_AUDIO_BACKEND", cfg.Audio.Backend))
	cfg.Audio.RecorderCommand = src.stringOr("LIVESTT_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = src.stringOr("LIVESTT_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		src.get("LIVESTT_AUDIO_INPUT_DEVICE"),
		src.get("PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = src.intOr("LIVESTT_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = src.intOr("LIVESTT_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.FramesPerBuffer = src.intOr("LIVESTT_FRAMES_PER_BUFFER", cfg.Audio.FramesPerBuffer)

	cfg.Session.FinalizeTimeoutMS = src.nonNegativeIntOr("LIVESTT_FINALIZE_TIMEOUT_MS", cfg.Session.FinalizeTimeoutMS)
	cfg.Notifications.DurationMS = src.intOr("LIVESTT_NOTIFICATION_MS", cfg.Notifications.DurationMS)

	cfg.Logging.Level = src.stringOr("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = src.stringOr("LOG_FORMAT", cfg.Logging.Format)

	cfg.Mirror.Enabled = src.boolOr("LIVESTT_NATS_ENABLED", cfg.Mirror.Enabled)
	cfg.Mirror.URL = src.stringOr("NATS_URL", cfg.Mirror.URL)
	cfg.Mirror.SubjectPrefix = src.stringOr("LIVESTT_NATS_SUBJECT_PREFIX", cfg.Mirror.SubjectPrefix)
}

func normalize(cfg *Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.FramesPerBuffer < 64 {
		cfg.Audio.FramesPerBuffer = 1024
	}
	if cfg.Notifications.DurationMS < minNotificationMS {
		cfg.Notifications.DurationMS = minNotificationMS
	}
	if cfg.Notifications.DurationMS > maxNotificationMS {
		cfg.Notifications.DurationMS = maxNotificationMS
	}
	if cfg.Session.FinalizeTimeoutMS < 0 {
		cfg.Session.FinalizeTimeoutMS = 0
	}
	cfg.Mirror.SubjectPrefix = strings.Trim(strings.TrimSpace(cfg.Mirror.SubjectPrefix), ".")
}

func validate(cfg Config) error {
	switch cfg.Recognizer.Provider {
	case ProviderDeepgram, ProviderAzure:
	default:
		return fmt.Errorf("recognizer.provider must be one of %s|%s, got %q", ProviderDeepgram, ProviderAzure, cfg.Recognizer.Provider)
	}
	if strings.TrimSpace(cfg.Recognizer.Locale) == "" {
		return errors.New("recognizer.locale must not be empty")
	}
	switch cfg.Audio.Backend {
	case BackendFFMPEG, BackendPortAudio:
	default:
		return fmt.Errorf("audio.backend must be one of %s|%s, got %q", BackendFFMPEG, BackendPortAudio, cfg.Audio.Backend)
	}
	if cfg.Audio.Backend == BackendFFMPEG && strings.TrimSpace(cfg.Audio.RecorderCommand) == "" {
		return errors.New("audio.recorder_command must not be empty for the ffmpeg backend")
	}
	if cfg.Mirror.Enabled {
		if strings.TrimSpace(cfg.Mirror.URL) == "" {
			return errors.New("mirror.url must not be empty when the mirror is enabled")
		}
		if cfg.Mirror.SubjectPrefix == "" {
			return errors.New("mirror.subject_prefix must not be empty when the mirror is enabled")
		}
	}
	return nil
}

// source resolves keys from the process environment first, then from the
// dotenv file. The dotenv file never mutates the process environment.
type source struct {
	dotenv map[string]string
}

func newSource(envFile string) (source, error) {
	if envFile == "" {
		return source{}, nil
	}
	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return source{}, nil
		}
		return source{}, fmt.Errorf("failed to stat env file: %w", err)
	}
	values, err := godotenv.Read(envFile)
	if err != nil {
		return source{}, fmt.Errorf("failed to parse env file: %w", err)
	}
	return source{dotenv: values}, nil
}

func (s source) get(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(s.dotenv[key])
}

func (s source) stringOr(key string, fallback string) string {
	if value := s.get(key); value != "" {
		return value
	}
	return fallback
}

func (s source) intOr(key string, fallback int) int {
	value := s.get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) nonNegativeIntOr(key string, fallback int) int {
	parsed := s.intOr(key, fallback)
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func (s source) boolOr(key string, fallback bool) bool {
	switch strings.ToLower(s.get(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
