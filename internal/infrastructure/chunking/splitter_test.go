package chunking

import (
	"strings"
	"testing"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

func TestSplitNoHeadingsProducesDocumentSection(t *testing.T) {
	s := NewSplitter(100, 10)
	chunks := s.Split(domain.Document{DocID: "a.txt", Source: "a.txt", Text: "plain body text"})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Title != "Document" {
		t.Fatalf("expected Document title, got %q", chunks[0].Title)
	}
	if chunks[0].ChunkID != "a.txt::c0000" {
		t.Fatalf("unexpected chunk id %q", chunks[0].ChunkID)
	}
}

func TestSplitSectionsByHeadings(t *testing.T) {
	text := "# Install\nrun make\n## Usage\ncall the binary\n#   \nafter empty heading"
	s := NewSplitter(200, 20)
	chunks := s.Split(domain.Document{DocID: "readme.md", Source: "readme.md", Text: text})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Title != "Install" || chunks[1].Title != "Usage" {
		t.Fatalf("unexpected titles: %q, %q", chunks[0].Title, chunks[1].Title)
	}
	if chunks[2].Title != "Section" {
		t.Fatalf("expected Section fallback title, got %q", chunks[2].Title)
	}
}

func TestSplitWhitespaceOnlyYieldsNothing(t *testing.T) {
	s := NewSplitter(100, 10)
	chunks := s.Split(domain.Document{DocID: "w.txt", Text: " \n\t  \n"})
	if len(chunks) != 0 {
		t.Fatalf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestSplitRespectsSizeBoundAndOverlapCoverage(t *testing.T) {
	body := strings.Repeat("abcde ", 100) // 600 chars collapsed
	s := NewSplitter(120, 20)
	chunks := s.Split(domain.Document{DocID: "big.txt", Text: body})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive passages must overlap (no gaps) and together span the
	// whole collapsed body. Passages are trimmed after slicing, so allow
	// one character of slack at the window edges.
	collapsed := strings.Join(strings.Fields(body), " ")
	prevEnd := 0
	for i, c := range chunks {
		idx := strings.Index(collapsed, c.Text)
		if idx < 0 {
			t.Fatalf("chunk %d is not a substring of the collapsed body", i)
		}
		if idx > prevEnd {
			t.Fatalf("gap before chunk %d: starts at %d, previous ended at %d", i, idx, prevEnd)
		}
		if end := idx + len(c.Text); end > prevEnd {
			prevEnd = end
		}
	}
	if prevEnd < len(collapsed)-1 {
		t.Fatalf("chunks cover %d of %d chars", prevEnd, len(collapsed))
	}

	for i, c := range chunks {
		if len([]rune(c.Text)) > s.MaxChars {
			t.Fatalf("chunk %d exceeds max chars: %d > %d", i, len([]rune(c.Text)), s.MaxChars)
		}
	}
}

func TestSplitShortSectionSinglePassage(t *testing.T) {
	s := NewSplitter(500, 50)
	chunks := s.Split(domain.Document{DocID: "s.md", Text: "# T\nshort body"})
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one passage, got %d", len(chunks))
	}
}
