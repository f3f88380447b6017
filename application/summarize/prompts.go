package summarize

import (
	"fmt"
	"strings"

	"github.com/diffsum/diffsum/infrastructure/jira"
)

// chunkFailurePrefix labels the placeholder a failed chunk leaves behind in
// the combine input.
const chunkFailurePrefix = "error processing chunk"

const commitSystemPrompt = `You are an expert software engineer who writes clear, conventional commit messages. You analyze diffs precisely and never invent changes that are not in the input.`

const changelogSystemPrompt = `You are an expert release manager who writes clear, well-organized changelogs from commit histories.`

// commitPrompt asks for a commit message over a complete diff.
func commitPrompt(diff, language string) string {
	var b strings.Builder
	b.WriteString("Write a commit message for the following staged changes.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Use the conventional commit format: type(scope): subject\n")
	b.WriteString("- Subject line at most 72 characters, imperative mood\n")
	b.WriteString("- After a blank line, add a short body with bullet points describing the key changes\n")
	b.WriteString("- Describe only what the diff shows\n")
	fmt.Fprintf(&b, "- Write the message in language: %s\n", language)
	b.WriteString("- Output only the commit message, no markdown fences or commentary\n\n")
	b.WriteString("Diff:\n")
	b.WriteString(diff)
	return b.String()
}

// mapPrompt asks for a summary of one chunk of a larger diff.
func mapPrompt(chunk, filePath, language string) string {
	var b strings.Builder
	b.WriteString("The following is one part of a larger diff. Summarize the changes in this part as concise bullet points.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- One bullet per logical change\n")
	b.WriteString("- Mention file and function names where visible\n")
	b.WriteString("- Describe only what this part shows; other parts are summarized separately\n")
	fmt.Fprintf(&b, "- Write in language: %s\n\n", language)
	if filePath != "" {
		fmt.Fprintf(&b, "File: %s\n\n", filePath)
	}
	b.WriteString("Diff part:\n")
	b.WriteString(chunk)
	return b.String()
}

// combinePrompt asks for a single commit message over the per-chunk
// summaries, labeled by their original position.
func combinePrompt(summaries []string, language string, tctx jira.Context) string {
	var b strings.Builder
	b.WriteString("The following are summaries of consecutive parts of one diff. Combine them into a single commit message.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Use the conventional commit format: type(scope): subject\n")
	b.WriteString("- Subject line at most 72 characters, imperative mood\n")
	b.WriteString("- After a blank line, add a short body with bullet points covering the most important changes across all parts\n")
	b.WriteString("- A part reading \"" + chunkFailurePrefix + "\" could not be summarized; ignore it rather than guessing its content\n")
	fmt.Fprintf(&b, "- Write the message in language: %s\n", language)
	writeTicketRequirements(&b, tctx)
	b.WriteString("- Output only the commit message, no markdown fences or commentary\n\n")

	for i, s := range summaries {
		fmt.Fprintf(&b, "Part %d:\n%s\n\n", i+1, s)
	}
	return b.String()
}

// writeTicketRequirements appends the issue-tracker formatting rules.
func writeTicketRequirements(b *strings.Builder, tctx jira.Context) {
	if tctx.Ticket() != "" {
		fmt.Fprintf(b, "- Prefix the subject line with the ticket ID %q followed by a space\n", tctx.Ticket())
	}
	if tctx.WorkTime() != "" {
		fmt.Fprintf(b, "- End the message with a line containing exactly: #time %s\n", tctx.WorkTime())
	}
}

// decorateDirect appends the ticket requirements to a direct commit prompt.
func decorateDirect(prompt string, tctx jira.Context) string {
	if tctx.Empty() {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nAdditional requirements:\n")
	writeTicketRequirements(&b, tctx)
	return b.String()
}

// changelogPrompt asks for a grouped changelog over commit messages.
func changelogPrompt(messages []string, language string) string {
	var b strings.Builder
	b.WriteString("Write a changelog from the following commit messages, newest first.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Group entries under headings: Features, Fixes, Changes, Other\n")
	b.WriteString("- One bullet per commit, rewritten as a user-facing sentence\n")
	b.WriteString("- Drop merge commits and trivial housekeeping entries\n")
	fmt.Fprintf(&b, "- Write in language: %s\n", language)
	b.WriteString("- Output markdown\n\n")
	b.WriteString("Commit messages:\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "- %s\n", firstLine(m))
	}
	return b.String()
}

// firstLine returns the subject line of a commit message.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
