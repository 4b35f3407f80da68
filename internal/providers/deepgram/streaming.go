package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"livestt/internal/domain"
	"livestt/internal/ports"
	"livestt/internal/providers/transcript"
)

var (
	errProviderClosed = errors.New("deepgram closed the stream before end of audio")
	errSendClosed     = errors.New("audio stream is already closed")
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.Recognizer for Deepgram live streaming.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer, logger: logger}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.RecognitionTask, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	p.logger.Debug("deepgram stream opened", zap.String("model", p.cfg.Model), zap.String("locale", cfg.Locale))
	return newStreamingTask(ctx, conn, p.logger), nil
}

type streamingTask struct {
	ctx     context.Context
	conn    *websocket.Conn
	builder *transcript.Builder
	logger  *zap.Logger

	events    chan domain.TranscriptEvent
	audio     chan []byte
	sendDone  chan struct{}
	cancelled chan struct{}
	done      chan struct{}

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func newStreamingTask(ctx context.Context, conn *websocket.Conn, logger *zap.Logger) *streamingTask {
	task := &streamingTask{
		ctx:       ctx,
		conn:      conn,
		builder:   transcript.NewBuilder(),
		logger:    logger,
		events:    make(chan domain.TranscriptEvent, 64),
		audio:     make(chan []byte, 32),
		sendDone:  make(chan struct{}),
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(task.readLoop)
	group.Go(func() error { return task.writeLoop(groupCtx) })

	// A failed loop must unblock the other one's pending read.
	go func() {
		<-groupCtx.Done()
		_ = conn.Close()
	}()

	go func() {
		task.setErr(group.Wait())
		task.finish()
		close(task.events)
		close(task.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = task.Close()
		case <-task.done:
		}
	}()

	return task
}

func (s *streamingTask) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	if s.isSendClosed() {
		return errSendClosed
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.sendDone:
		return errSendClosed
	case <-s.cancelled:
		return errSendClosed
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingTask) CloseSend() error {
	s.closeSendOnce.Do(func() { close(s.sendDone) })
	return nil
}

func (s *streamingTask) Events() <-chan domain.TranscriptEvent {
	return s.events
}

// Close cancels the task. No terminal event is emitted after Close.
func (s *streamingTask) Close() error {
	s.closeOnce.Do(func() {
		close(s.cancelled)
		// Unblocks a write stuck on a peer that stopped reading.
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingTask) isCancelled() bool {
	select {
	case <-s.cancelled:
		return true
	default:
		return s.ctx.Err() != nil
	}
}

func (s *streamingTask) isSendClosed() bool {
	select {
	case <-s.sendDone:
		return true
	default:
		return false
	}
}

// finish emits the terminal event: an error, or the final hypothesis once the
// provider has drained after end of audio.
func (s *streamingTask) finish() {
	if s.isCancelled() {
		return
	}
	if err := s.waitErr(); err != nil {
		s.emit(domain.TranscriptEvent{Err: err})
		return
	}
	s.emit(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: s.builder.Text()})
}

func (s *streamingTask) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingTask) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingTask) writeLoop(ctx context.Context) error {
	for {
		select {
		case chunk := <-s.audio:
			if err := s.writeAudio(chunk); err != nil {
				return err
			}
		case <-s.sendDone:
			return s.closeStream()
		case <-s.cancelled:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// closeStream flushes audio queued before CloseSend, then asks Deepgram to
// finalize.
func (s *streamingTask) closeStream() error {
	for drained := false; !drained; {
		select {
		case chunk := <-s.audio:
			if err := s.writeAudio(chunk); err != nil {
				return err
			}
		default:
			drained = true
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil && !s.isCancelled() {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

func (s *streamingTask) writeAudio(chunk []byte) error {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		if s.isCancelled() {
			return nil
		}
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func (s *streamingTask) readLoop() error {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.isCancelled() {
				return nil
			}
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				if s.isSendClosed() {
					return nil
				}
				return errProviderClosed
			}
			if s.isSendClosed() && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
				return nil
			}
			return fmt.Errorf("failed to read provider event: %w", err)
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			s.logger.Debug("ignoring undecodable provider message", zap.Error(err))
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			return errors.New(message)
		}

		if response.Type != "" && !strings.EqualFold(response.Type, "Results") {
			continue
		}

		segment := extractTranscript(response)
		previous := s.builder.Text()
		var text string
		if response.IsFinal || response.SpeechFinal {
			text = s.builder.Commit(segment)
		} else {
			text = s.builder.Interim(segment)
		}
		if text == "" || text == previous {
			continue
		}
		s.emit(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: text})
	}
}

func (s *streamingTask) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	case <-s.cancelled:
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if language := firstNonEmpty(streamCfg.Locale, providerCfg.Language); language != "" {
		query.Set("language", language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
