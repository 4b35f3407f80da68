package transcript

import "testing"

func TestBuilderInterimReplacesTail(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	if got := b.Interim("hola"); got != "hola" {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := b.Interim("hola qué"); got != "hola qué" {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := b.Commit("hola qué tal"); got != "hola qué tal" {
		t.Fatalf("unexpected committed text: %q", got)
	}
	if got := b.Interim(" cómo "); got != "hola qué tal cómo" {
		t.Fatalf("unexpected text after commit: %q", got)
	}
	if got := b.Commit("cómo estás"); got != "hola qué tal cómo estás" {
		t.Fatalf("unexpected final text: %q", got)
	}
}

func TestBuilderEmptyCommitClearsInterim(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.Commit("uno")
	b.Interim("dos")
	if got := b.Commit("   "); got != "uno" {
		t.Fatalf("expected interim to be dropped, got %q", got)
	}
	if got := b.Text(); got != "uno" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestBuilderEmpty(t *testing.T) {
	t.Parallel()

	if got := NewBuilder().Text(); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
