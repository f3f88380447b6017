package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// StagedDiff returns the unified diff of the index against HEAD. The git CLI
// is used because its diff output (rename detection, binary markers, context
// formatting) is the format the rest of the pipeline is built around.
func (r *Repository) StagedDiff(ctx context.Context) (string, error) {
	out, err := r.runGit(ctx, "diff", "--cached")
	if err != nil {
		return "", fmt.Errorf("read staged diff: %w", err)
	}

	diff := strings.TrimRight(out, "\n")
	if diff == "" {
		return "", ErrNoStagedChanges
	}
	return diff, nil
}

// StagedFiles returns the paths staged in the index.
func (r *Repository) StagedFiles(ctx context.Context) ([]string, error) {
	out, err := r.runGit(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, fmt.Errorf("list staged files: %w", err)
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// Commit creates a commit with the given message. The git CLI is used so
// hooks, signing, and the user's identity configuration all apply.
func (r *Repository) Commit(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("commit message is empty")
	}
	if _, err := r.runGit(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("create commit: %w", err)
	}
	return nil
}

// EditMessage opens the user's editor on the proposed message and returns
// the edited result with comment lines stripped. Editor resolution follows
// git: GIT_EDITOR, then core.editor, then VISUAL, then EDITOR, then vi.
func (r *Repository) EditMessage(ctx context.Context, message string) (string, error) {
	dir, err := os.MkdirTemp("", "diffsum-commit-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "COMMIT_EDITMSG")
	content := message + "\n\n# Edit the commit message above.\n# Lines starting with '#' are ignored.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write message file: %w", err)
	}

	editor := r.resolveEditor(ctx)
	parts := strings.Fields(editor)
	args := append(parts[1:], path)

	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run editor %q: %w", editor, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read edited message: %w", err)
	}

	return stripComments(string(edited)), nil
}

// resolveEditor picks the editor command the way git does.
func (r *Repository) resolveEditor(ctx context.Context) string {
	if e := os.Getenv("GIT_EDITOR"); e != "" {
		return e
	}
	if out, err := r.runGit(ctx, "config", "--get", "core.editor"); err == nil {
		if e := strings.TrimSpace(out); e != "" {
			return e
		}
	}
	if e := os.Getenv("VISUAL"); e != "" {
		return e
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vi"
}

// stripComments removes git-style comment lines and trims the result.
func stripComments(message string) string {
	var kept []string
	for _, line := range strings.Split(message, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// runGit runs a git subcommand in the repository directory.
func (r *Repository) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}
