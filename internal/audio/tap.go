package audio

import (
	"errors"
	"sync"

	"livestt/internal/ports"
)

var (
	ErrConsumerInstalled = errors.New("audio stream already has a consumer")
	ErrNoConsumer        = errors.New("audio stream has no consumer installed")

	ErrPortAudioUnavailable = errors.New("portaudio capture requires building with -tags portaudio")
)

// tap is the single-consumer slot shared by capture backends.
type tap struct {
	mu       sync.RWMutex
	consumer ports.AudioConsumer
}

func (t *tap) install(consumer ports.AudioConsumer) error {
	if consumer == nil {
		return errors.New("audio consumer must not be nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consumer != nil {
		return ErrConsumerInstalled
	}
	t.consumer = consumer
	return nil
}

func (t *tap) remove() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumer = nil
}

func (t *tap) installed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.consumer != nil
}

func (t *tap) frame(frame []byte) {
	t.mu.RLock()
	consumer := t.consumer
	t.mu.RUnlock()
	if consumer != nil {
		consumer.OnFrame(frame)
	}
}

func (t *tap) fail(err error) {
	t.mu.RLock()
	consumer := t.consumer
	t.mu.RUnlock()
	if consumer != nil {
		consumer.OnError(err)
	}
}
