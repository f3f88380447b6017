package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// consoleHandler formats records for a human watching stderr while the
// generated message streams to stdout. Colour is suppressed when NO_COLOR
// is set. The run_id attribute is shortened to eight characters here; the
// JSON handler keeps the full value.
//
// Output format:
//
//	15:04:05.000 INF summarizing diff run_id=1a2b3c4d chunks=6
type consoleHandler struct {
	writer io.Writer
	level  slog.Leveler
	color  bool
	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	var level slog.Leveler
	if opts != nil && opts.Level != nil {
		level = opts.Level
	} else {
		level = slog.LevelInfo
	}
	_, noColor := os.LookupEnv("NO_COLOR")
	return &consoleHandler{
		writer: w,
		level:  level,
		color:  !noColor,
		mu:     &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats a record and writes it as a single line.
func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.Grow(256)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.styled(&buf, ansiDim, ts.Format("15:04:05.000"))
	buf.WriteByte(' ')

	color, label := levelLabel(r.Level)
	h.styled(&buf, color, label)
	buf.WriteByte(' ')

	h.styled(&buf, ansiBold, r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, a, h.groups)
	}

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, a, h.groups)
		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// WithAttrs returns a new handler whose attributes consist of both the
// existing attributes and attrs.
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	merged = append(merged, attrs...)
	clone := *h
	clone.attrs = merged
	return &clone
}

// WithGroup returns a new handler with the given group name prepended to
// subsequent attribute keys.
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	extended := make([]string, len(h.groups)+1)
	copy(extended, h.groups)
	extended[len(h.groups)] = name
	clone := *h
	clone.groups = extended
	return &clone
}

func (h *consoleHandler) styled(buf *bytes.Buffer, code, text string) {
	if h.color {
		buf.WriteString(code)
		buf.WriteString(text)
		buf.WriteString(ansiReset)
		return
	}
	buf.WriteString(text)
}

func levelLabel(level slog.Level) (string, string) {
	switch {
	case level < slog.LevelInfo:
		return ansiCyan, "DBG"
	case level < slog.LevelWarn:
		return ansiGreen, "INF"
	case level < slog.LevelError:
		return ansiYellow, "WRN"
	default:
		return ansiRed, "ERR"
	}
}

func (h *consoleHandler) writeAttr(buf *bytes.Buffer, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		var prefix []string
		if a.Key != "" {
			prefix = make([]string, len(groups)+1)
			copy(prefix, groups)
			prefix[len(groups)] = a.Key
		} else {
			prefix = groups
		}
		for _, ga := range attrs {
			h.writeAttr(buf, ga, prefix)
		}
		return
	}

	buf.WriteByte(' ')
	var key strings.Builder
	for _, g := range groups {
		key.WriteString(g)
		key.WriteByte('.')
	}
	key.WriteString(a.Key)
	key.WriteByte('=')
	h.styled(buf, ansiDim, key.String())
	buf.WriteString(h.attrValue(a, len(groups) == 0))
}

func (h *consoleHandler) attrValue(a slog.Attr, topLevel bool) string {
	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if topLevel && a.Key == string(RunIDKey) && len(s) > 8 {
			s = s[:8]
		}
		if strings.ContainsAny(s, " \t\n\"\\") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return a.Value.String()
}
