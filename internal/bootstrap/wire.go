package bootstrap

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"livestt/internal/audio"
	"livestt/internal/config"
	"livestt/internal/dispatch"
	"livestt/internal/logging"
	"livestt/internal/mirror"
	"livestt/internal/notify"
	"livestt/internal/ports"
	"livestt/internal/providers/azure"
	"livestt/internal/providers/deepgram"
	"livestt/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config   config.Config
	Logger   *zap.Logger
	Queue    *dispatch.Queue
	Session  *usecase.RecognitionSession
	Actions  *usecase.TranscriptActions
	Notifier *notify.Notifier

	conn *nats.Conn
}

// Build loads configuration and wires all backend dependencies for the
// current runtime.
func Build(events ports.EventSink, notices ports.NotificationSink, clipboard ports.Clipboard) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return BuildWithConfig(cfg, events, notices, clipboard)
}

func BuildWithConfig(cfg config.Config, events ports.EventSink, notices ports.NotificationSink, clipboard ports.Clipboard) (*Services, error) {
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	mic, err := newMicrophone(cfg, logger)
	if err != nil {
		return nil, err
	}
	recognizer, err := newRecognizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	services := &Services{Config: cfg, Logger: logger}

	if cfg.Mirror.Enabled {
		mirrorLogger := logging.Component(logger, "mirror")
		conn, err := mirror.Connect(mirror.Config{
			URL:           cfg.Mirror.URL,
			SubjectPrefix: cfg.Mirror.SubjectPrefix,
			ClientName:    cfg.Mirror.ClientName,
		}, mirrorLogger)
		if err != nil {
			logger.Warn("session mirror disabled", zap.Error(err))
		} else {
			services.conn = conn
			events = mirror.NewEventMirror(events, conn, cfg.Mirror.SubjectPrefix, mirrorLogger)
		}
	}

	services.Queue = dispatch.NewQueue()
	services.Notifier = notify.New(services.Queue, notices, cfg.Notifications.Duration(), logging.Component(logger, "notify"))
	services.Session = usecase.NewRecognitionSession(
		mic,
		recognizer,
		events,
		services.Queue,
		logging.Component(logger, "session"),
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:      cfg.Audio.SampleRate,
				Channels:        cfg.Audio.Channels,
				FramesPerBuffer: cfg.Audio.FramesPerBuffer,
				InputFormat:     cfg.Audio.InputFormat,
				InputDevice:     cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				Locale:         cfg.Recognizer.Locale,
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			FinalizeTimeout: cfg.Session.FinalizeTimeout(),
		},
	)
	services.Actions = usecase.NewTranscriptActions(services.Session, clipboard, services.Notifier, logging.Component(logger, "actions"))

	logger.Info("services ready",
		zap.String("provider", cfg.Recognizer.Provider),
		zap.String("locale", cfg.Recognizer.Locale),
		zap.String("audio_backend", cfg.Audio.Backend),
		zap.Bool("mirror", services.conn != nil),
	)
	return services, nil
}

// Close releases any active attempt, stops the dispatch queue and closes
// the mirror connection.
func (s *Services) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Session != nil {
		if err := s.Session.Close(); err != nil && !errors.Is(err, dispatch.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.Queue != nil {
		s.Queue.Close()
	}
	if s.conn != nil {
		if err := s.conn.Drain(); err != nil {
			s.conn.Close()
		}
	}
	logging.Sync(s.Logger)
	return errors.Join(errs...)
}

func newMicrophone(cfg config.Config, logger *zap.Logger) (ports.Microphone, error) {
	audioLogger := logging.Component(logger, "audio")
	switch cfg.Audio.Backend {
	case config.BackendFFMPEG:
		return audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, audioLogger), nil
	case config.BackendPortAudio:
		return audio.NewPortAudioCapture(audioLogger), nil
	default:
		return nil, fmt.Errorf("unsupported audio backend %q", cfg.Audio.Backend)
	}
}

func newRecognizer(cfg config.Config, logger *zap.Logger) (ports.Recognizer, error) {
	switch cfg.Recognizer.Provider {
	case config.ProviderDeepgram:
		return deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Recognizer.Locale,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}, logging.Component(logger, "deepgram")), nil
	case config.ProviderAzure:
		return azure.NewRecognizer(azure.Config{
			SubscriptionKey: cfg.Azure.SubscriptionKey,
			Region:          cfg.Azure.Region,
			Language:        cfg.Recognizer.Locale,
		}, logging.Component(logger, "azure")), nil
	default:
		return nil, fmt.Errorf("unsupported recognizer provider %q", cfg.Recognizer.Provider)
	}
}
