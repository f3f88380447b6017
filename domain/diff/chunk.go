// Package diff provides value types for diff chunking and summarization.
package diff

// Strategy identifies which splitting tier produced a chunk.
type Strategy string

// Strategy values, in priority order of the chunker.
const (
	// StrategyFile means the chunk holds a complete file diff.
	StrategyFile Strategy = "file"

	// StrategyHunk means the chunk holds one or more whole hunks of a file,
	// prefixed with the file header.
	StrategyHunk Strategy = "hunk"

	// StrategyToken means the chunk came from token-bounded line splitting
	// with no usable file or hunk structure.
	StrategyToken Strategy = "token"

	// StrategyHybrid means an oversized hunk chunk was further split by
	// token-bounded line accumulation.
	StrategyHybrid Strategy = "hybrid"
)

// Chunk is one bounded, independently summarizable slice of a diff.
// Chunks are immutable once produced by the chunker.
type Chunk struct {
	content        string
	filePath       string
	strategy       Strategy
	size           int
	isCompleteFile bool
}

// NewChunk creates a new Chunk. The size is the character length of content.
func NewChunk(content, filePath string, strategy Strategy, isCompleteFile bool) Chunk {
	return Chunk{
		content:        content,
		filePath:       filePath,
		strategy:       strategy,
		size:           len(content),
		isCompleteFile: isCompleteFile,
	}
}

// Content returns the chunk text.
func (c Chunk) Content() string { return c.content }

// FilePath returns the originating file path. It is empty when the chunk
// came from a fallback split with no identifiable file boundary.
func (c Chunk) FilePath() string { return c.filePath }

// Strategy returns the splitting tier that produced this chunk.
func (c Chunk) Strategy() Strategy { return c.strategy }

// Size returns the character length of the chunk content.
func (c Chunk) Size() int { return c.size }

// IsCompleteFile reports whether the chunk holds an entire unmodified file diff.
func (c Chunk) IsCompleteFile() bool { return c.isCompleteFile }

// Batch is an ordered sequence of chunks. Order matches first-appearance
// order in the source diff and determines the order per-chunk summaries are
// concatenated for the reduce step.
type Batch struct {
	chunks []Chunk
}

// NewBatch creates a Batch from the given chunks.
func NewBatch(chunks []Chunk) Batch {
	cs := make([]Chunk, len(chunks))
	copy(cs, chunks)
	return Batch{chunks: cs}
}

// All returns the chunks in order.
func (b Batch) All() []Chunk {
	cs := make([]Chunk, len(b.chunks))
	copy(cs, b.chunks)
	return cs
}

// Len returns the number of chunks.
func (b Batch) Len() int { return len(b.chunks) }

// At returns the chunk at index i.
func (b Batch) At(i int) Chunk { return b.chunks[i] }

// Stats summarizes how a batch was produced.
type Stats struct {
	TotalChunks   int
	TotalSize     int
	FileChunks    int
	HunkChunks    int
	TokenChunks   int
	HybridChunks  int
	CompleteFiles int
	AverageSize   int
}

// ComputeStats aggregates per-strategy counts over the batch.
func (b Batch) ComputeStats() Stats {
	s := Stats{TotalChunks: len(b.chunks)}
	for _, c := range b.chunks {
		s.TotalSize += c.Size()
		switch c.Strategy() {
		case StrategyFile:
			s.FileChunks++
		case StrategyHunk:
			s.HunkChunks++
		case StrategyToken:
			s.TokenChunks++
		case StrategyHybrid:
			s.HybridChunks++
		}
		if c.IsCompleteFile() {
			s.CompleteFiles++
		}
	}
	if s.TotalChunks > 0 {
		s.AverageSize = s.TotalSize / s.TotalChunks
	}
	return s
}
