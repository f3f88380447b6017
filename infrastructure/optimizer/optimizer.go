// Package optimizer compresses unified diff text to reduce token usage
// before chunking or prompting, while preserving diff structure.
package optimizer

import (
	"fmt"
	"strings"
)

// DefaultMaxContextLines is the default number of context lines preserved on
// each side of an elided run.
const DefaultMaxContextLines = 3

// Stats reports the effect of one optimization pass.
type Stats struct {
	OriginalSize     int
	OptimizedSize    int
	CompressionRatio float64
	FilesProcessed   int
	LinesRemoved     int
}

// Optimizer lossily compresses diffs. File-separator and hunk-header lines
// are always preserved verbatim; in aggressive mode long context runs are
// elided and whitespace-only changes are collapsed to markers.
type Optimizer struct {
	maxContextLines int
}

// New creates an Optimizer keeping maxContextLines of context on each side
// of an elision. Non-positive values fall back to the default.
func New(maxContextLines int) *Optimizer {
	if maxContextLines <= 0 {
		maxContextLines = DefaultMaxContextLines
	}
	return &Optimizer{maxContextLines: maxContextLines}
}

// MaxContextLines returns the configured context window.
func (o *Optimizer) MaxContextLines() int { return o.maxContextLines }

// Optimize compresses diff text. Non-aggressive mode keeps every line except
// that it never elides; aggressive mode additionally drops index/mode lines,
// strips a/b path prefixes, elides long context runs, and collapses
// whitespace-only changes. An empty diff yields an empty result with ratio 1.
func (o *Optimizer) Optimize(diffText string, aggressive bool) (string, Stats) {
	stats := Stats{OriginalSize: len(diffText), CompressionRatio: 1.0}
	if diffText == "" {
		return "", stats
	}

	lines := strings.Split(diffText, "\n")
	optimized := make([]string, 0, len(lines))

	i := 0
	for i < len(lines) {
		line := lines[i]

		switch {
		case strings.HasPrefix(line, "diff --git"):
			stats.FilesProcessed++
			optimized = append(optimized, line)
			i++

		case strings.HasPrefix(line, "index ") ||
			strings.HasPrefix(line, "new file mode") ||
			strings.HasPrefix(line, "deleted file mode"):
			if aggressive {
				stats.LinesRemoved++
			} else {
				optimized = append(optimized, line)
			}
			i++

		case strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ "):
			if aggressive {
				optimized = append(optimized, stripPathPrefix(line))
			} else {
				optimized = append(optimized, line)
			}
			i++

		case strings.HasPrefix(line, "@@"):
			optimized = append(optimized, line)
			i++
			body, removed := o.processHunk(lines[i:], aggressive)
			optimized = append(optimized, body...)
			stats.LinesRemoved += removed
			i += hunkLength(lines[i:])

		default:
			optimized = append(optimized, line)
			i++
		}
	}

	out := strings.Join(optimized, "\n")
	stats.OptimizedSize = len(out)
	if stats.OriginalSize > 0 {
		stats.CompressionRatio = float64(stats.OptimizedSize) / float64(stats.OriginalSize)
	}
	return out, stats
}

// hunkLength returns the number of lines belonging to the hunk starting at
// lines[0], stopping before the next hunk header or file separator.
func hunkLength(lines []string) int {
	for i, line := range lines {
		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "diff --git") {
			return i
		}
	}
	return len(lines)
}

// processHunk rewrites the body of one hunk, buffering context runs so long
// ones can be elided in aggressive mode. Returns the rewritten lines and the
// count of lines removed.
func (o *Optimizer) processHunk(lines []string, aggressive bool) ([]string, int) {
	var result []string
	removed := 0
	var contextBuf []string

	flush := func(trailing bool) {
		if len(contextBuf) == 0 {
			return
		}
		keep := o.maxContextLines
		threshold := keep * 2
		if trailing {
			threshold = keep
		}
		if aggressive && len(contextBuf) > threshold {
			result = append(result, contextBuf[:keep]...)
			if trailing {
				omitted := len(contextBuf) - keep
				result = append(result, fmt.Sprintf(" ... (%d trailing context lines omitted)", omitted))
				removed += omitted
			} else {
				omitted := len(contextBuf) - 2*keep
				result = append(result, fmt.Sprintf(" ... (%d context lines omitted)", omitted))
				result = append(result, contextBuf[len(contextBuf)-keep:]...)
				removed += omitted
			}
		} else {
			result = append(result, contextBuf...)
		}
		contextBuf = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "diff --git") {
			break
		}

		if strings.HasPrefix(line, " ") {
			contextBuf = append(contextBuf, line)
			continue
		}

		flush(false)

		if aggressive && isWhitespaceOnlyChange(line) {
			result = append(result, line[:1]+" (whitespace change)")
			removed++
		} else {
			result = append(result, line)
		}
	}

	flush(true)
	return result, removed
}

// SmartTruncate trims a diff to roughly maxTokens tokens (using the
// four-characters-per-token heuristic), preferring to keep structural and
// change lines over context. A marker line notes the truncation.
func (o *Optimizer) SmartTruncate(diffText string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(diffText) <= maxChars {
		return diffText
	}

	var important, regular []string
	for _, line := range strings.Split(diffText, "\n") {
		if isImportantLine(line) {
			important = append(important, line)
		} else {
			regular = append(regular, line)
		}
	}

	result := important
	size := 0
	for _, line := range result {
		size += len(line) + 1
	}

	for _, line := range regular {
		if size+len(line)+1 > maxChars {
			result = append(result, "... (diff truncated to fit token limit)")
			break
		}
		result = append(result, line)
		size += len(line) + 1
	}

	return strings.Join(result, "\n")
}

// isImportantLine reports whether a line must survive smart truncation.
func isImportantLine(line string) bool {
	return strings.HasPrefix(line, "diff --git") ||
		strings.HasPrefix(line, "+++") ||
		strings.HasPrefix(line, "---") ||
		strings.HasPrefix(line, "@@") ||
		(strings.HasPrefix(line, "+") && !isWhitespaceOnlyChange(line)) ||
		(strings.HasPrefix(line, "-") && !isWhitespaceOnlyChange(line))
}

// stripPathPrefix removes the a/ or b/ prefix from "--- a/path" and
// "+++ b/path" lines.
func stripPathPrefix(line string) string {
	for _, marker := range []string{"--- a/", "--- b/", "+++ a/", "+++ b/"} {
		if strings.HasPrefix(line, marker) {
			return line[:4] + line[len(marker):]
		}
	}
	return line
}

// isWhitespaceOnlyChange reports whether an added or removed line carries
// only whitespace after its +/- prefix.
func isWhitespaceOnlyChange(line string) bool {
	if len(line) < 2 {
		return false
	}
	if line[0] != '+' && line[0] != '-' {
		return false
	}
	return strings.TrimSpace(line[1:]) == ""
}
