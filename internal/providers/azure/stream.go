//go:build azurespeech

package azure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"go.uber.org/zap"

	"livestt/internal/domain"
	"livestt/internal/ports"
	"livestt/internal/providers/transcript"
)

func (r *Recognizer) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.RecognitionTask, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	language := r.language(cfg.Locale)

	speechConfig, err := speech.NewSpeechConfigFromSubscription(r.cfg.SubscriptionKey, r.cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("could not create speech config: %w", err)
	}
	if err := speechConfig.SetSpeechRecognitionLanguage(language); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("could not set recognition language %q: %w", language, err)
	}

	format, err := audio.GetWaveFormatPCM(uint32(sampleRate), 16, uint8(channels))
	if err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("could not create audio format: %w", err)
	}

	pushStream, err := audio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		format.Close()
		speechConfig.Close()
		return nil, fmt.Errorf("could not create push stream: %w", err)
	}

	audioConfig, err := audio.NewAudioConfigFromStreamInput(pushStream)
	if err != nil {
		pushStream.Close()
		format.Close()
		speechConfig.Close()
		return nil, fmt.Errorf("could not create audio config: %w", err)
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(speechConfig, audioConfig)
	if err != nil {
		audioConfig.Close()
		pushStream.Close()
		format.Close()
		speechConfig.Close()
		return nil, fmt.Errorf("could not create speech recognizer: %w", err)
	}

	task := &streamingTask{
		speechConfig: speechConfig,
		format:       format,
		pushStream:   pushStream,
		audioConfig:  audioConfig,
		recognizer:   recognizer,
		builder:      transcript.NewBuilder(),
		logger:       r.logger.With(zap.String("locale", language)),
		events:       make(chan domain.TranscriptEvent, 64),
		cancelled:    make(chan struct{}),
	}
	task.bind()

	if err := <-recognizer.StartContinuousRecognitionAsync(); err != nil {
		task.release()
		return nil, fmt.Errorf("could not start continuous recognition: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = task.Close()
		case <-task.cancelled:
		}
	}()

	return task, nil
}

type streamingTask struct {
	speechConfig *speech.SpeechConfig
	format       *audio.AudioStreamFormat
	pushStream   *audio.PushAudioInputStream
	audioConfig  *audio.AudioConfig
	recognizer   *speech.SpeechRecognizer

	builder *transcript.Builder
	logger  *zap.Logger

	events    chan domain.TranscriptEvent
	cancelled chan struct{}

	mu          sync.Mutex
	sendClosed  bool
	terminated  bool
	closeOnce   sync.Once
	releaseOnce sync.Once
}

func (s *streamingTask) bind() {
	s.recognizer.Recognizing(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		s.emitHypothesis(s.builder.Interim(e.Result.Text))
	})

	s.recognizer.Recognized(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		s.emitHypothesis(s.builder.Commit(e.Result.Text))
	})

	s.recognizer.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		defer e.Close()
		if e.Reason == common.EndOfStream {
			s.terminate(nil)
			return
		}
		details := strings.TrimSpace(e.ErrorDetails)
		if details == "" {
			details = "azure recognition canceled"
		}
		s.terminate(errors.New(details))
	})

	s.recognizer.SessionStopped(func(e speech.SessionEventArgs) {
		defer e.Close()
		s.terminate(nil)
	})
}

func (s *streamingTask) emitHypothesis(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.send(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: text})
}

// terminate emits the terminal event once and closes the channel. A clean
// stop before end of audio is reported as an error.
func (s *streamingTask) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.terminated = true

	if !s.isCancelled() {
		switch {
		case err != nil:
			s.send(domain.TranscriptEvent{Err: err})
		case !s.sendClosed:
			s.send(domain.TranscriptEvent{Err: errors.New("azure session stopped before end of audio")})
		default:
			s.send(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: s.builder.Text()})
		}
	}
	close(s.events)
}

func (s *streamingTask) send(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	case <-s.cancelled:
	}
}

func (s *streamingTask) isCancelled() bool {
	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

func (s *streamingTask) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	s.mu.Lock()
	closed := s.sendClosed || s.terminated
	s.mu.Unlock()
	if closed {
		return errors.New("audio stream is already closed")
	}
	return s.pushStream.Write(chunk)
}

func (s *streamingTask) CloseSend() error {
	s.mu.Lock()
	if s.sendClosed {
		s.mu.Unlock()
		return nil
	}
	s.sendClosed = true
	s.mu.Unlock()

	s.pushStream.CloseStream()
	return nil
}

func (s *streamingTask) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingTask) Close() error {
	var stopErr error
	s.closeOnce.Do(func() {
		close(s.cancelled)
		stopErr = <-s.recognizer.StopContinuousRecognitionAsync()
		s.terminate(nil)
		s.release()
	})
	return stopErr
}

func (s *streamingTask) release() {
	s.releaseOnce.Do(func() {
		s.recognizer.Close()
		s.audioConfig.Close()
		s.pushStream.Close()
		s.format.Close()
		s.speechConfig.Close()
	})
}
