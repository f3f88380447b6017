// Package chunking splits unified diffs into token-bounded chunks using a
// tiered strategy: whole files first, then hunk groups, then token-bounded
// line accumulation with overlap.
package chunking

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/diffsum/diffsum/domain/diff"
)

// Default chunking parameters, measured in tokens.
const (
	DefaultMaxTokens     = 2048
	DefaultOverlapTokens = 150
)

// fileSeparator marks the start of a per-file section in a unified diff.
const fileSeparator = "diff --git"

var filePathPattern = regexp.MustCompile(`^diff --git a/(.+?) b/`)

// TokenCounter measures text size in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// Params configures the chunker.
type Params struct {
	// MaxTokens is the per-chunk token budget.
	MaxTokens int

	// OverlapTokens is the budget for trailing content carried from one
	// token-bounded piece into the next.
	OverlapTokens int
}

// DefaultParams returns the default chunking parameters.
func DefaultParams() Params {
	return Params{MaxTokens: DefaultMaxTokens, OverlapTokens: DefaultOverlapTokens}
}

// SmartChunker splits diffs preferring semantic boundaries over size-based
// ones. It never fails: malformed input degrades to token-bounded splitting,
// and in the worst case to single-line chunks.
type SmartChunker struct {
	counter TokenCounter
	params  Params
	log     *slog.Logger
}

// NewSmartChunker creates a SmartChunker with the given token counter.
func NewSmartChunker(counter TokenCounter, params Params, logger *slog.Logger) *SmartChunker {
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	if params.OverlapTokens < 0 {
		params.OverlapTokens = 0
	}
	if params.OverlapTokens >= params.MaxTokens {
		params.OverlapTokens = params.MaxTokens / 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SmartChunker{counter: counter, params: params, log: logger}
}

// Chunk splits diffText into an ordered batch. Chunk order matches
// first-appearance order in the input, and re-running with the same
// parameters yields an identical batch.
func (c *SmartChunker) Chunk(diffText string) diff.Batch {
	if diffText == "" {
		return diff.NewBatch(nil)
	}

	var chunks []diff.Chunk

	for _, section := range splitByFiles(diffText) {
		if c.counter.Count(section.content) <= c.params.MaxTokens {
			chunks = append(chunks, diff.NewChunk(section.content, section.path, diff.StrategyFile, true))
			continue
		}

		hunkChunks, ok := c.splitByHunks(section)
		if !ok {
			// No hunk markers: not proper unified diff structure for this
			// section, fall back to token-bounded splitting.
			chunks = append(chunks, c.splitByTokens(section.content, section.path, diff.StrategyToken)...)
			continue
		}

		for _, hc := range hunkChunks {
			if c.counter.Count(hc.Content()) <= c.params.MaxTokens {
				chunks = append(chunks, hc)
			} else {
				chunks = append(chunks, c.splitByTokens(hc.Content(), hc.FilePath(), diff.StrategyHybrid)...)
			}
		}
	}

	batch := diff.NewBatch(chunks)
	stats := batch.ComputeStats()
	c.log.Debug("diff chunked",
		slog.Int("chunks", stats.TotalChunks),
		slog.Int("file_chunks", stats.FileChunks),
		slog.Int("hunk_chunks", stats.HunkChunks),
		slog.Int("token_chunks", stats.TokenChunks),
		slog.Int("hybrid_chunks", stats.HybridChunks),
	)
	return batch
}

// fileSection is one per-file slice of the diff. Leading content before the
// first separator becomes a headerless section with an empty path.
type fileSection struct {
	path    string
	content string
}

// splitByFiles splits the diff at file-separator lines.
func splitByFiles(diffText string) []fileSection {
	lines := strings.Split(diffText, "\n")

	var sections []fileSection
	var current []string
	path := ""

	for _, line := range lines {
		if strings.HasPrefix(line, fileSeparator) {
			if len(current) > 0 {
				sections = append(sections, fileSection{path: path, content: strings.Join(current, "\n")})
			}
			current = []string{line}
			path = extractFilePath(line)
			continue
		}
		current = append(current, line)
	}

	if len(current) > 0 {
		sections = append(sections, fileSection{path: path, content: strings.Join(current, "\n")})
	}

	return sections
}

// extractFilePath pulls the a-side path out of a file-separator line.
func extractFilePath(line string) string {
	m := filePathPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// splitByHunks splits one oversized file section at hunk boundaries,
// greedily packing consecutive hunks while the running token count fits the
// budget. The file header is re-prefixed onto every chunk so each remains
// independently interpretable. Returns ok=false when the section has no
// hunk markers at all.
func (c *SmartChunker) splitByHunks(section fileSection) ([]diff.Chunk, bool) {
	lines := strings.Split(section.content, "\n")

	headerEnd := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "@@") {
			headerEnd = i
			break
		}
	}
	if headerEnd == -1 {
		return nil, false
	}

	headerLines := lines[:headerEnd]
	header := strings.Join(headerLines, "\n")
	headerTokens := c.counter.Count(header)

	var hunks []string
	var current []string
	for _, line := range lines[headerEnd:] {
		if strings.HasPrefix(line, "@@") && len(current) > 0 {
			hunks = append(hunks, strings.Join(current, "\n"))
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		hunks = append(hunks, strings.Join(current, "\n"))
	}

	var chunks []diff.Chunk
	chunkLines := append([]string{}, headerLines...)
	chunkTokens := headerTokens

	flush := func() {
		if len(chunkLines) > len(headerLines) {
			chunks = append(chunks, diff.NewChunk(strings.Join(chunkLines, "\n"), section.path, diff.StrategyHunk, false))
		}
	}

	for _, hunk := range hunks {
		hunkTokens := c.counter.Count(hunk)
		if chunkTokens+hunkTokens <= c.params.MaxTokens {
			chunkLines = append(chunkLines, strings.Split(hunk, "\n")...)
			chunkTokens += hunkTokens
			continue
		}
		flush()
		chunkLines = append(append([]string{}, headerLines...), strings.Split(hunk, "\n")...)
		chunkTokens = headerTokens + hunkTokens
	}
	flush()

	return chunks, true
}

// splitByTokens accumulates lines into pieces bounded by the token budget,
// seeding each piece after the first with a token-bounded trailing slice of
// the previous piece. A single line that alone exceeds the budget is emitted
// as its own over-budget chunk rather than dropped or looped on.
func (c *SmartChunker) splitByTokens(content, path string, strategy diff.Strategy) []diff.Chunk {
	lines := strings.Split(content, "\n")

	var chunks []diff.Chunk
	var current []string
	currentTokens := 0

	emit := func(pieceLines []string) {
		chunks = append(chunks, diff.NewChunk(strings.Join(pieceLines, "\n"), path, strategy, false))
	}

	for _, line := range lines {
		lineTokens := c.counter.Count(line) + 1 // account for the newline

		// An indivisible over-budget line always gets a chunk of its own,
		// never combined with accumulated or overlap lines.
		if lineTokens > c.params.MaxTokens {
			if len(current) > 0 {
				emit(current)
				current = nil
				currentTokens = 0
			}
			emit([]string{line})
			continue
		}

		if currentTokens+lineTokens > c.params.MaxTokens && len(current) > 0 {
			emit(current)

			overlap := c.overlapLines(current)
			current = append(overlap, line)
			currentTokens = lineTokens
			for _, l := range overlap {
				currentTokens += c.counter.Count(l) + 1
			}
			continue
		}

		current = append(current, line)
		currentTokens += lineTokens
	}

	if len(current) > 0 {
		emit(current)
	}

	return chunks
}

// overlapLines walks backward through the emitted piece and returns the
// trailing lines whose total token count fits within the overlap budget.
// Pieces with a single line contribute no overlap.
func (c *SmartChunker) overlapLines(lines []string) []string {
	if c.params.OverlapTokens == 0 || len(lines) <= 1 {
		return nil
	}

	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		t := c.counter.Count(lines[i]) + 1
		if total+t > c.params.OverlapTokens {
			break
		}
		total += t
		start = i
	}
	if start == len(lines) {
		return nil
	}

	carried := make([]string, len(lines)-start)
	copy(carried, lines[start:])
	return carried
}
