// Package jira extracts issue-tracker context for commit messages: ticket
// IDs from branch names and work-log durations in Jira's notation.
package jira

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Jira work-log calendar: 8 hour days, 5 day weeks.
const (
	minutesPerHour = 60
	minutesPerDay  = 8 * minutesPerHour
	minutesPerWeek = 5 * minutesPerDay
)

// ErrInvalidWorkTime indicates a work time string that cannot be parsed.
var ErrInvalidWorkTime = errors.New("invalid work time")

// ticketFormat is the canonical shape of a complete ticket ID.
var ticketFormat = regexp.MustCompile(`^[A-Z]+-\d+$`)

// workTimeToken matches one duration component, e.g. "2h" or "30m".
var workTimeToken = regexp.MustCompile(`^(\d+)([wdhm])$`)

// Extractor pulls ticket IDs out of branch names.
type Extractor struct {
	pattern *regexp.Regexp
}

// NewExtractor compiles the configured ticket pattern.
func NewExtractor(pattern string) (*Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile ticket pattern %q: %w", pattern, err)
	}
	return &Extractor{pattern: re}, nil
}

// FromBranch returns the first ticket ID found in the branch name, upper
// cased, or empty when none matches.
func (e *Extractor) FromBranch(branch string) string {
	m := e.pattern.FindString(strings.ToUpper(branch))
	if m == "" {
		return ""
	}
	if !ticketFormat.MatchString(m) {
		return ""
	}
	return m
}

// ValidTicket reports whether s is a complete ticket ID like "PROJ-123".
func ValidTicket(s string) bool {
	return ticketFormat.MatchString(strings.ToUpper(s))
}

// NormalizeWorkTime parses a duration like "90m", "2h 30m", or "1d 2h" and
// renders it in Jira's canonical "Nw Nd Nh Nm" form with larger units
// carried, e.g. "90m" becomes "1h 30m".
func NormalizeWorkTime(s string) (string, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty", ErrInvalidWorkTime)
	}

	total := 0
	for _, f := range fields {
		m := workTimeToken.FindStringSubmatch(f)
		if m == nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidWorkTime, f)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidWorkTime, f)
		}
		switch m[2] {
		case "w":
			total += n * minutesPerWeek
		case "d":
			total += n * minutesPerDay
		case "h":
			total += n * minutesPerHour
		case "m":
			total += n
		}
	}

	if total == 0 {
		return "", fmt.Errorf("%w: zero duration", ErrInvalidWorkTime)
	}

	weeks := total / minutesPerWeek
	total %= minutesPerWeek
	days := total / minutesPerDay
	total %= minutesPerDay
	hours := total / minutesPerHour
	minutes := total % minutesPerHour

	var parts []string
	if weeks > 0 {
		parts = append(parts, fmt.Sprintf("%dw", weeks))
	}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}

	return strings.Join(parts, " "), nil
}

// Context carries the issue-tracker annotations for one commit.
type Context struct {
	ticket   string
	workTime string
}

// NewContext creates a Context. Both fields may be empty.
func NewContext(ticket, workTime string) Context {
	return Context{ticket: ticket, workTime: workTime}
}

// Ticket returns the ticket ID, or empty.
func (c Context) Ticket() string { return c.ticket }

// WorkTime returns the normalized work time, or empty.
func (c Context) WorkTime() string { return c.workTime }

// Empty reports whether the context carries nothing.
func (c Context) Empty() bool { return c.ticket == "" && c.workTime == "" }
