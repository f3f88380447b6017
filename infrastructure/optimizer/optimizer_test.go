package optimizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDiff() string {
	return strings.Join([]string{
		"diff --git a/pkg/server.go b/pkg/server.go",
		"index 1111111..2222222 100644",
		"--- a/pkg/server.go",
		"+++ b/pkg/server.go",
		"@@ -1,5 +1,6 @@",
		" package server",
		" ",
		"-func Start() {",
		"+func Start(addr string) {",
		"+	listen(addr)",
		" }",
	}, "\n")
}

func TestOptimizeEmptyDiff(t *testing.T) {
	o := New(3)

	out, stats := o.Optimize("", false)

	assert.Empty(t, out)
	assert.Equal(t, 0, stats.OriginalSize)
	assert.Equal(t, 1.0, stats.CompressionRatio)
}

func TestOptimizeNonAggressivePreservesContent(t *testing.T) {
	o := New(3)
	in := sampleDiff()

	out, stats := o.Optimize(in, false)

	assert.Equal(t, in, out)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Equal(t, 0, stats.LinesRemoved)
	assert.Equal(t, 1.0, stats.CompressionRatio)
}

func TestOptimizeAggressiveDropsMetadataLines(t *testing.T) {
	o := New(3)

	out, stats := o.Optimize(sampleDiff(), true)

	assert.NotContains(t, out, "index 1111111")
	assert.Contains(t, out, "--- pkg/server.go")
	assert.Contains(t, out, "+++ pkg/server.go")
	assert.Contains(t, out, "diff --git a/pkg/server.go b/pkg/server.go")
	assert.Contains(t, out, "+func Start(addr string) {")
	assert.Contains(t, out, "-func Start() {")
	assert.Greater(t, stats.LinesRemoved, 0)
	assert.Less(t, stats.CompressionRatio, 1.0)
}

func TestOptimizeAggressiveElidesLongContextRuns(t *testing.T) {
	var lines []string
	lines = append(lines,
		"diff --git a/a.go b/a.go",
		"--- a/a.go",
		"+++ b/a.go",
		"@@ -1,20 +1,21 @@",
	)
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf(" context line %d", i))
	}
	lines = append(lines, "+added line")
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf(" trailing context %d", i))
	}
	in := strings.Join(lines, "\n")

	o := New(3)
	out, stats := o.Optimize(in, true)

	// Interior run keeps three lines on each side around a count marker.
	assert.Contains(t, out, " context line 0")
	assert.Contains(t, out, " context line 2")
	assert.Contains(t, out, " ... (4 context lines omitted)")
	assert.Contains(t, out, " context line 7")
	assert.Contains(t, out, " context line 9")
	assert.NotContains(t, out, " context line 5")

	// Trailing run keeps only the leading three lines.
	assert.Contains(t, out, " trailing context 2")
	assert.Contains(t, out, " ... (7 trailing context lines omitted)")
	assert.NotContains(t, out, " trailing context 9")

	assert.Contains(t, out, "+added line")
	assert.Equal(t, 11, stats.LinesRemoved)
}

func TestOptimizeShortContextRunsUntouched(t *testing.T) {
	in := strings.Join([]string{
		"@@ -1,4 +1,5 @@",
		" one",
		" two",
		" three",
		"+added",
		" four",
	}, "\n")

	o := New(3)
	out, _ := o.Optimize(in, true)

	assert.Equal(t, in, out)
}

func TestOptimizeAggressiveCollapsesWhitespaceChanges(t *testing.T) {
	in := strings.Join([]string{
		"@@ -1,3 +1,3 @@",
		"-	",
		"+  ",
		"+real change",
	}, "\n")

	o := New(3)
	out, stats := o.Optimize(in, true)

	assert.Contains(t, out, "- (whitespace change)")
	assert.Contains(t, out, "+ (whitespace change)")
	assert.Contains(t, out, "+real change")
	assert.Equal(t, 2, stats.LinesRemoved)
}

func TestOptimizeCountsFiles(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "diff --git a/f%d.go b/f%d.go\n", i, i)
		fmt.Fprintf(&b, "@@ -1,1 +1,1 @@\n")
		fmt.Fprintf(&b, "+line in file %d\n", i)
	}

	o := New(3)
	_, stats := o.Optimize(b.String(), false)

	assert.Equal(t, 3, stats.FilesProcessed)
}

func TestSmartTruncateBelowLimitUnchanged(t *testing.T) {
	o := New(3)
	in := sampleDiff()

	assert.Equal(t, in, o.SmartTruncate(in, 10_000))
}

func TestSmartTruncateKeepsImportantLines(t *testing.T) {
	var lines []string
	lines = append(lines,
		"diff --git a/a.go b/a.go",
		"--- a/a.go",
		"+++ b/a.go",
		"@@ -1,100 +1,101 @@",
		"+the one real change",
	)
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf(" padding context line number %03d", i))
	}
	in := strings.Join(lines, "\n")

	o := New(3)
	out := o.SmartTruncate(in, 100)

	assert.Less(t, len(out), len(in))
	assert.Contains(t, out, "diff --git a/a.go b/a.go")
	assert.Contains(t, out, "@@ -1,100 +1,101 @@")
	assert.Contains(t, out, "+the one real change")
	assert.Contains(t, out, "... (diff truncated to fit token limit)")
}

func TestNewClampsContextLines(t *testing.T) {
	assert.Equal(t, DefaultMaxContextLines, New(0).MaxContextLines())
	assert.Equal(t, DefaultMaxContextLines, New(-5).MaxContextLines())
	assert.Equal(t, 5, New(5).MaxContextLines())
}

func TestStripPathPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"--- a/pkg/x.go", "--- pkg/x.go"},
		{"+++ b/pkg/x.go", "+++ pkg/x.go"},
		{"--- /dev/null", "--- /dev/null"},
		{"+++ weird", "+++ weird"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripPathPrefix(tt.in), tt.in)
	}
}

func TestIsWhitespaceOnlyChange(t *testing.T) {
	assert.True(t, isWhitespaceOnlyChange("+   "))
	assert.True(t, isWhitespaceOnlyChange("-\t"))
	assert.False(t, isWhitespaceOnlyChange("+code"))
	assert.False(t, isWhitespaceOnlyChange(" context"))
	assert.False(t, isWhitespaceOnlyChange("+"))
}

func TestOptimizeRatioReflectsSizes(t *testing.T) {
	o := New(3)
	in := sampleDiff()

	out, stats := o.Optimize(in, true)

	require.Equal(t, len(in), stats.OriginalSize)
	require.Equal(t, len(out), stats.OptimizedSize)
	assert.InDelta(t, float64(len(out))/float64(len(in)), stats.CompressionRatio, 1e-9)
}
