// Package tokenizer provides model-aware token counting, truncation, and
// token-bounded splitting for prompt budgeting.
package tokenizer

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the heuristic used when no encoding is available.
// One token approximates four characters of English text.
const charsPerToken = 4

// DefaultEncoding is used when a model has no known encoding.
const DefaultEncoding = "cl100k_base"

// modelEncodings maps model identifiers to tiktoken encoding names.
// Anthropic models use the OpenAI encoding as an approximation.
var modelEncodings = map[string]string{
	"gpt-4":                  "cl100k_base",
	"gpt-4-turbo":            "cl100k_base",
	"gpt-4o":                 "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"claude-3-sonnet":        "cl100k_base",
	"claude-3-haiku":         "cl100k_base",
	"claude-3-opus":          "cl100k_base",
	"claude-3.5-sonnet":      "cl100k_base",
}

// Counter counts tokens for a specific model's vocabulary. When the encoding
// cannot be initialized it degrades to a character heuristic, and
// Approximate reports true so callers can widen their safety margins.
type Counter struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	log      *slog.Logger
}

// NewCounter creates a Counter for the given model. Encoding initialization
// failure is recoverable: the returned Counter falls back to the heuristic.
func NewCounter(model string, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}

	name := encodingFor(model)
	c := &Counter{model: model, encoding: name, log: logger}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		c.encoding = DefaultEncoding
	}
	if err != nil {
		logger.Warn("tokenizer unavailable, using character heuristic",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		c.enc = nil
		return c
	}

	c.enc = enc
	return c
}

// encodingFor resolves the encoding name for a model, trying an exact match
// first and then substring matches in either direction.
func encodingFor(model string) string {
	if name, ok := modelEncodings[model]; ok {
		return name
	}

	lower := strings.ToLower(model)
	for key, name := range modelEncodings {
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			return name
		}
	}

	return DefaultEncoding
}

// Model returns the model identifier this counter was built for.
func (c *Counter) Model() string { return c.model }

// Encoding returns the encoding name in use.
func (c *Counter) Encoding() string { return c.encoding }

// Approximate reports whether counts come from the character heuristic
// rather than a real tokenizer.
func (c *Counter) Approximate() bool { return c.enc == nil }

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc == nil {
		n := len(text) / charsPerToken
		if n < 1 {
			n = 1
		}
		return n
	}
	// Allow special tokens so input containing sequences like
	// "<|endoftext|>" counts as tokens instead of panicking.
	return len(c.enc.Encode(text, []string{"all"}, nil))
}

// Truncate returns text unchanged if it fits within maxTokens, otherwise the
// longest token-aligned prefix that fits.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if text == "" || maxTokens <= 0 {
		return ""
	}

	if c.enc == nil {
		maxChars := maxTokens * charsPerToken
		if len(text) <= maxChars {
			return text
		}
		// The byte cut may land inside a multi-byte rune; back up to the
		// nearest rune boundary.
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut]
	}

	tokens := c.enc.Encode(text, []string{"all"}, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.enc.Decode(tokens[:maxTokens])
}

// Split splits text into pieces of at most maxTokens tokens. Each piece
// after the first starts with the trailing overlapTokens tokens of the
// previous piece.
func (c *Counter) Split(text string, maxTokens, overlapTokens int) []string {
	if text == "" {
		return nil
	}
	if maxTokens <= 0 {
		return []string{text}
	}
	if overlapTokens >= maxTokens {
		overlapTokens = maxTokens - 1
	}

	if c.enc == nil {
		return splitByLength(text, maxTokens*charsPerToken, overlapTokens*charsPerToken)
	}

	tokens := c.enc.Encode(text, []string{"all"}, nil)
	if len(tokens) <= maxTokens {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(tokens) {
		end := min(start+maxTokens, len(tokens))
		pieces = append(pieces, c.enc.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
		start = end - overlapTokens
	}
	return pieces
}

// splitByLength is the heuristic fallback for Split.
func splitByLength(text string, maxChars, overlapChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars - 1
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := min(start+maxChars, len(text))
		pieces = append(pieces, text[start:end])
		if end == len(text) {
			break
		}
		start = end - overlapChars
	}
	return pieces
}

// Within reports whether text fits in maxTokens tokens.
func (c *Counter) Within(text string, maxTokens int) bool {
	return c.Count(text) <= maxTokens
}
