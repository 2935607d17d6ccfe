// Package chunker splits extracted document text into overlapping,
// size-bounded segments suitable for embedding. Splitting is hierarchical:
// paragraph boundaries are preferred over line breaks, line breaks over
// sentence punctuation, sentences over word boundaries, and only as a last
// resort is text cut mid-word. The same input and parameters always produce
// the same chunk sequence.
package chunker

import (
	"errors"
	"strings"
)

// ErrEmptyInput is returned when the input text is empty or whitespace-only.
// Callers must treat this as a validation failure, not a transient error.
var ErrEmptyInput = errors.New("chunker: input text is empty")

// Default chunking parameters, matching the ingestion pipeline defaults.
const (
	// DefaultMaxSize is the maximum number of characters per chunk.
	DefaultMaxSize = 1000

	// DefaultOverlap is the number of characters shared between adjacent chunks.
	DefaultOverlap = 200
)

// separators lists the split boundaries in priority order. A larger unit is
// only broken at the next boundary down when it still exceeds MaxSize. The
// final empty separator stands for a raw character cut.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// Splitter holds the chunking parameters. The zero value is not usable;
// construct with New.
type Splitter struct {
	// maxSize is the maximum chunk length in characters.
	maxSize int

	// overlap is the number of trailing characters of one chunk repeated at
	// the start of the next, so meaning is not lost at a cut boundary.
	overlap int
}

// New constructs a Splitter. Non-positive maxSize falls back to
// DefaultMaxSize; a negative overlap becomes 0 and an overlap that reaches
// maxSize is clamped to a tenth of it.
func New(maxSize, overlap int) *Splitter {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 10
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}
}

// Split divides text into trimmed, non-empty chunks of roughly maxSize
// characters with overlap characters of shared context between neighbours.
// Returns ErrEmptyInput when the text is empty or whitespace-only.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	raw := s.split(text, separators)

	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// split breaks text at the highest-priority separator that actually divides
// it, recursing with lower-priority separators for any piece that is still
// too large, then merges the resulting units back into overlapping chunks.
func (s *Splitter) split(text string, seps []string) []string {
	if len(text) <= s.maxSize {
		return []string{text}
	}
	if len(seps) == 0 || seps[0] == "" {
		return s.hardCut(text)
	}

	parts := splitAfter(text, seps[0])
	if len(parts) == 1 {
		return s.split(text, seps[1:])
	}

	units := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) > s.maxSize {
			units = append(units, s.split(p, seps[1:])...)
		} else {
			units = append(units, p)
		}
	}
	return s.merge(units)
}

// merge greedily packs units into chunks of roughly maxSize characters,
// seeding each new chunk with the overlap tail of the previous one. A chunk
// holding only its seed is never flushed on its own, so a seed followed by a
// full-size unit may overrun maxSize by up to overlap characters.
func (s *Splitter) merge(units []string) []string {
	var chunks []string
	var cur strings.Builder
	seeded := 0 // length of the overlap seed currently in cur

	for _, u := range units {
		if cur.Len() > seeded && cur.Len()+len(u) > s.maxSize {
			chunk := cur.String()
			chunks = append(chunks, chunk)
			cur.Reset()
			tail := overlapTail(chunk, s.overlap)
			cur.WriteString(tail)
			seeded = len(tail)
		}
		cur.WriteString(u)
	}
	if cur.Len() > seeded {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// hardCut slices text into fixed-size windows advancing by maxSize-overlap,
// the last-resort split when no separator boundary exists. Windows are
// measured in runes so a cut never lands inside a multibyte character.
func (s *Splitter) hardCut(text string) []string {
	stride := s.maxSize - s.overlap
	if stride <= 0 {
		stride = s.maxSize
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.maxSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitAfter splits text on sep, keeping the separator attached to the
// preceding piece so no character is lost.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	// SplitAfter can yield a trailing empty piece when text ends in sep.
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// overlapTail returns the last n runes of chunk, or the whole chunk when it
// is shorter than n. Counting runes keeps the seed from starting inside a
// multibyte character.
func overlapTail(chunk string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(chunk) <= n {
		return chunk
	}
	runes := []rune(chunk)
	if len(runes) <= n {
		return chunk
	}
	return string(runes[len(runes)-n:])
}
