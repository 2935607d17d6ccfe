// Package composer turns retrieval results into a single bounded context
// string, formatted for injection into a chat prompt. Retrieval is scoped
// either to the files of one conversation or to a whole workspace; either
// way the output is a sequence of per-file blocks truncated to a character
// budget.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/notely-ai/contextd/internal/catalog"
	"github.com/notely-ai/contextd/internal/embedder"
	"github.com/notely-ai/contextd/internal/index"
)

const (
	// DefaultTopK is how many chunks are retrieved per file in
	// conversation-scoped assembly.
	DefaultTopK = 3

	// DefaultMaxFiles caps how many conversation files are searched.
	DefaultMaxFiles = 50

	// DefaultMaxChars is the character budget for the assembled context.
	DefaultMaxChars = 10000

	// blockSeparator joins per-file blocks.
	blockSeparator = "\n\n===========================\n\n"

	// chunkSeparator joins chunks within a file block.
	chunkSeparator = "\n---\n"

	// truncationMarker is appended when the assembled context was cut to
	// fit the character budget.
	truncationMarker = "\n\n[... context truncated ...]"
)

// Config holds the assembly parameters.
type Config struct {
	// TopK is the number of chunks retrieved per file (conversation scope)
	// or in total (workspace scope). Defaults to DefaultTopK.
	TopK int

	// MaxFiles caps how many conversation files are searched.
	// Defaults to DefaultMaxFiles.
	MaxFiles int

	// MaxChars is the character budget for the assembled context.
	// Defaults to DefaultMaxChars.
	MaxChars int
}

// Composer assembles retrieval context strings.
type Composer struct {
	// idx is the vector index queried for similar chunks.
	idx index.VectorIndex

	// embed turns the query text into a vector, once per request.
	embed embedder.Embedder

	// files supplies the candidate file set for conversation scope.
	files catalog.FileCatalog

	// cfg holds the resolved assembly parameters.
	cfg *Config

	// log is the structured logger.
	log *slog.Logger
}

// New constructs a Composer. files may be nil when only workspace-scoped
// assembly is used.
func New(idx index.VectorIndex, embed embedder.Embedder, files catalog.FileCatalog, cfg *Config, log *slog.Logger) (*Composer, error) {
	if idx == nil {
		return nil, fmt.Errorf("composer: index must not be nil")
	}
	if embed == nil {
		return nil, fmt.Errorf("composer: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if log == nil {
		log = slog.Default()
	}
	return &Composer{idx: idx, embed: embed, files: files, cfg: cfg, log: log}, nil
}

// ForConversation assembles context for a query against the files attached
// to one conversation. The query is embedded once, then each file is
// searched independently so no single large file crowds the others out.
// Files with no matching chunks are skipped. An empty candidate set yields
// an empty string, not an error.
func (c *Composer) ForConversation(ctx context.Context, workspaceID, conversationID int64, query string) (string, error) {
	if c.files == nil {
		return "", fmt.Errorf("composer: no file catalog configured for conversation scope")
	}

	candidates, err := c.files.ListByConversation(ctx, conversationID, c.cfg.MaxFiles)
	if err != nil {
		return "", fmt.Errorf("composer: list conversation files: %w", err)
	}
	if len(candidates) == 0 {
		return "", nil
	}

	vector, err := c.embedQuery(ctx, query)
	if err != nil {
		return "", err
	}

	var blocks []string
	for _, f := range candidates {
		results, err := c.idx.Query(ctx, vector, c.cfg.TopK, index.ByFile(workspaceID, f.ID))
		if err != nil {
			return "", fmt.Errorf("composer: query file %d: %w", f.ID, err)
		}
		if len(results) == 0 {
			continue
		}
		blocks = append(blocks, formatBlock(f.Name, results))
	}

	return c.join(blocks), nil
}

// ForWorkspace assembles context for a query against everything indexed in a
// workspace. A single filtered search runs, and the matches are grouped into
// per-file blocks by their stored file name.
func (c *Composer) ForWorkspace(ctx context.Context, workspaceID int64, query string) (string, error) {
	vector, err := c.embedQuery(ctx, query)
	if err != nil {
		return "", err
	}

	results, err := c.idx.Query(ctx, vector, c.cfg.TopK*c.cfg.MaxFiles, index.ByWorkspace(workspaceID))
	if err != nil {
		return "", fmt.Errorf("composer: query workspace %d: %w", workspaceID, err)
	}
	if len(results) == 0 {
		return "", nil
	}

	// Group by file, preserving the ranked order of first appearance.
	grouped := make(map[string][]index.Result)
	var order []string
	for _, r := range results {
		name := r.Meta.FileName
		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], r)
	}

	blocks := make([]string, 0, len(order))
	for _, name := range order {
		rs := grouped[name]
		if len(rs) > c.cfg.TopK {
			rs = rs[:c.cfg.TopK]
		}
		blocks = append(blocks, formatBlock(name, rs))
	}

	return c.join(blocks), nil
}

// embedQuery embeds the query text once per assembly request.
func (c *Composer) embedQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("composer: query must not be empty")
	}
	vectors, err := c.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("composer: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("composer: expected 1 query vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

// formatBlock renders one file's matches as a header plus separated chunks,
// ordered by their position in the source document so the text reads in
// sequence rather than by similarity rank.
func formatBlock(fileName string, results []index.Result) string {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Meta.ChunkIndex < results[j].Meta.ChunkIndex
	})
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return "📄 File: " + fileName + "\n" + strings.Join(texts, chunkSeparator)
}

// join concatenates blocks and enforces the character budget. When the joined
// context exceeds the budget it is cut so that content plus the truncation
// marker fits within MaxChars.
func (c *Composer) join(blocks []string) string {
	if len(blocks) == 0 {
		return ""
	}
	out := strings.Join(blocks, blockSeparator)
	if len(out) <= c.cfg.MaxChars {
		return out
	}

	cut := c.cfg.MaxChars - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(out[cut]) {
		cut-- // never split a rune mid-sequence
	}
	c.log.Debug("composer: context truncated",
		slog.Int("chars", len(out)),
		slog.Int("budget", c.cfg.MaxChars),
	)
	return out[:cut] + truncationMarker
}
