package chunking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

var (
	headingRe    = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Splitter cuts a document into heading-titled sections and slices each
// section into overlapping passages of at most MaxChars characters.
type Splitter struct {
	MaxChars int
	Overlap  int
}

func NewSplitter(maxChars, overlap int) *Splitter {
	if maxChars <= 0 {
		maxChars = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}
	return &Splitter{
		MaxChars: maxChars,
		Overlap:  overlap,
	}
}

type section struct {
	title string
	body  string
}

func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	out := make([]domain.Chunk, 0, 8)
	local := 0
	for _, sec := range splitByHeadings(doc.Text) {
		for _, passage := range s.slicePassages(sec.body) {
			out = append(out, domain.Chunk{
				DocID:   doc.DocID,
				Source:  doc.Source,
				ChunkID: fmt.Sprintf("%s::c%04d", doc.DocID, local),
				Title:   sec.title,
				Text:    passage,
			})
			local++
		}
	}
	return out
}

// splitByHeadings segments text at markdown heading lines. Each section runs
// from its heading to the next one; text without headings is a single
// "Document" section.
func splitByHeadings(text string) []section {
	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []section{{title: "Document", body: strings.TrimSpace(text)}}
	}

	out := make([]section, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		title := strings.TrimSpace(text[m[4]:m[5]])
		if title == "" {
			title = "Section"
		}
		out = append(out, section{title: title, body: strings.TrimSpace(text[start:end])})
	}
	return out
}

// slicePassages collapses whitespace and slices the section into rune windows
// of at most MaxChars, the next window starting at max(0, end-Overlap) so no
// content is lost at a boundary.
func (s *Splitter) slicePassages(body string) []string {
	body = strings.TrimSpace(whitespaceRe.ReplaceAllString(body, " "))
	if body == "" {
		return nil
	}

	runes := []rune(body)
	n := len(runes)
	out := make([]string, 0, n/s.MaxChars+1)
	i := 0
	for i < n {
		j := i + s.MaxChars
		if j > n {
			j = n
		}
		piece := strings.TrimSpace(string(runes[i:j]))
		if piece != "" {
			out = append(out, piece)
		}
		if j == n {
			break
		}
		i = j - s.Overlap
		if i < 0 {
			i = 0
		}
	}
	return out
}
