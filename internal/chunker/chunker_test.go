package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_EmptyInput(t *testing.T) {
	t.Parallel()

	s := New(100, 20)
	for _, in := range []string{"", "   ", "\n\n\t "} {
		if _, err := s.Split(in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Split(%q): expected ErrEmptyInput, got %v", in, err)
		}
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	t.Parallel()

	s := New(1000, 200)
	chunks, err := s.Split("just one short paragraph")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "just one short paragraph" {
		t.Errorf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	t.Parallel()

	para1 := strings.Repeat("alpha ", 12) // ~72 chars
	para2 := strings.Repeat("beta ", 12)
	text := para1 + "\n\n" + para2

	s := New(80, 10)
	chunks, err := s.Split(text)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected a split at the paragraph boundary, got %d chunks", len(chunks))
	}
	if !strings.Contains(chunks[0], "alpha") {
		t.Errorf("first chunk should carry the first paragraph: %q", chunks[0])
	}
	last := chunks[len(chunks)-1]
	if !strings.Contains(last, "beta") {
		t.Errorf("last chunk should carry the second paragraph: %q", last)
	}
}

func TestSplit_CoversAllContent(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Sentence number ")
		sb.WriteString(strings.Repeat("x", i%7+1))
		sb.WriteString(". ")
	}
	text := sb.String()

	s := New(120, 30)
	chunks, err := s.Split(text)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	// Every sentence must land in at least one chunk.
	joined := strings.Join(chunks, " ")
	for _, want := range []string{"Sentence number x.", "Sentence number xxxxxxx."} {
		if !strings.Contains(joined, want) {
			t.Errorf("content %q missing from chunks", want)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	s := New(200, 40)

	first, err := s.Split(text)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	second, err := s.Split(text)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_OverlapCarriesContext(t *testing.T) {
	t.Parallel()

	// Distinct 100-char runs with no separators force the hard-cut path,
	// where each chunk must begin with the tail of its predecessor.
	var sb strings.Builder
	for r := 'a'; r <= 'z'; r++ {
		sb.WriteString(strings.Repeat(string(r), 100))
	}
	text := sb.String() // 2600 chars

	s := New(500, 100)
	chunks, err := s.Split(text)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		if len(prev) < 500 {
			continue // final short window has no full successor
		}
		tail := prev[len(prev)-100:]
		if !strings.HasPrefix(chunks[i], tail) {
			t.Errorf("chunk %d does not begin with the 100-char tail of chunk %d", i, i-1)
		}
	}
}

func TestSplit_HardCutWithoutSeparators(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 2500) // no separators at all
	s := New(1000, 200)

	chunks, err := s.Split(text)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for 2500 chars at stride 800, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d exceeds max size: %d chars", i, len(c))
		}
	}
	if !strings.HasSuffix(chunks[len(chunks)-1], "a") {
		t.Errorf("final chunk should end with input content")
	}
}

func TestSplit_MultibyteTextStaysValidUTF8(t *testing.T) {
	t.Parallel()

	s := New(1000, 200)

	// Sentence-separated CJK text exercises the merge path, where each chunk
	// after the first is seeded with the overlap tail of its predecessor.
	sentences := strings.Repeat(strings.Repeat("字", 60)+". ", 40)
	chunks, err := s.Split(sentences)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("merge path: chunk %d is not valid UTF-8", i)
		}
	}

	// An unbroken CJK run forces the hard-cut path, where windows must land
	// on rune boundaries.
	solid := strings.Repeat("字", 2000)
	chunks, err = s.Split(solid)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("hard-cut path: chunk %d is not valid UTF-8", i)
		}
	}
	joined := strings.Join(chunks, "")
	if strings.Count(joined, "字") < 2000 {
		t.Errorf("hard-cut chunks lost content: %d of 2000 runes survive", strings.Count(joined, "字"))
	}
}

func TestNew_ClampsParameters(t *testing.T) {
	t.Parallel()

	s := New(0, -5)
	if s.maxSize != DefaultMaxSize {
		t.Errorf("maxSize: got %d, want %d", s.maxSize, DefaultMaxSize)
	}
	if s.overlap != 0 {
		t.Errorf("overlap: got %d, want 0", s.overlap)
	}

	s = New(100, 100)
	if s.overlap != 10 {
		t.Errorf("oversized overlap should clamp to maxSize/10, got %d", s.overlap)
	}
}
