package jira

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultPattern = `[A-Z]+-\d+`

func TestNormalizeWorkTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"30m", "30m"},
		{"90m", "1h 30m"},
		{"2h 30m", "2h 30m"},
		{"10h", "1d 2h"},
		{"6d", "1w 1d"},
		{"1w 2d 3h 4m", "1w 2d 3h 4m"},
		{"480m", "1d"},
		{"  2H 15M  ", "2h 15m"},
		{"60m 60m", "2h"},
	}
	for _, tt := range tests {
		got, err := NormalizeWorkTime(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeWorkTimeInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "2hours", "h", "-2h", "2h30m", "0m", "1.5h"} {
		_, err := NormalizeWorkTime(in)
		assert.ErrorIs(t, err, ErrInvalidWorkTime, in)
	}
}

func TestFromBranch(t *testing.T) {
	e, err := NewExtractor(defaultPattern)
	require.NoError(t, err)

	tests := []struct {
		branch string
		want   string
	}{
		{"feature/proj-123-fix-login", "PROJ-123"},
		{"PROJ-42", "PROJ-42"},
		{"bugfix/ABC-7", "ABC-7"},
		{"main", ""},
		{"feature/no-ticket-here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.FromBranch(tt.branch), tt.branch)
	}
}

func TestNewExtractorBadPattern(t *testing.T) {
	_, err := NewExtractor("[unclosed")
	assert.Error(t, err)
}

func TestValidTicket(t *testing.T) {
	assert.True(t, ValidTicket("PROJ-123"))
	assert.True(t, ValidTicket("proj-123"))
	assert.False(t, ValidTicket("PROJ123"))
	assert.False(t, ValidTicket("PROJ-"))
	assert.False(t, ValidTicket("-123"))
	assert.False(t, ValidTicket("PROJ-123-extra"))
	assert.False(t, ValidTicket(""))
}

func TestContext(t *testing.T) {
	assert.True(t, NewContext("", "").Empty())

	c := NewContext("PROJ-9", "2h")
	assert.False(t, c.Empty())
	assert.Equal(t, "PROJ-9", c.Ticket())
	assert.Equal(t, "2h", c.WorkTime())
}
