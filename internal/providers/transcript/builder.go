// Package transcript turns segment-oriented provider output into the whole
// current hypothesis, so that every emitted event can replace the previous one.
package transcript

import (
	"strings"
	"sync"
)

type Builder struct {
	mu        sync.Mutex
	committed []string
	interim   string
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Interim replaces the uncommitted tail and returns the full hypothesis.
func (b *Builder) Interim(segment string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.interim = strings.TrimSpace(segment)
	return b.textLocked()
}

// Commit appends a finalized segment, drops the interim tail and returns the
// full hypothesis.
func (b *Builder) Commit(segment string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if text := strings.TrimSpace(segment); text != "" {
		b.committed = append(b.committed, text)
	}
	b.interim = ""
	return b.textLocked()
}

func (b *Builder) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.textLocked()
}

func (b *Builder) textLocked() string {
	joined := strings.Join(b.committed, " ")
	if b.interim == "" {
		return joined
	}
	if joined == "" {
		return b.interim
	}
	return joined + " " + b.interim
}
