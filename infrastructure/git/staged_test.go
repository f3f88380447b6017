package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cliRepo creates a repository with the git CLI, which the staged-diff and
// commit operations shell out to.
func cliRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	runCLI(t, dir, "init", "-q")
	runCLI(t, dir, "config", "user.name", "Tester")
	runCLI(t, dir, "config", "user.email", "tester@example.com")
	runCLI(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

func runCLI(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func stageFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	runCLI(t, dir, "add", name)
}

func TestStagedDiff(t *testing.T) {
	dir := cliRepo(t)
	stageFile(t, dir, "hello.txt", "hello world\n")

	r, err := Open(dir, nil)
	require.NoError(t, err)

	diff, err := r.StagedDiff(context.Background())
	require.NoError(t, err)
	assert.Contains(t, diff, "diff --git a/hello.txt b/hello.txt")
	assert.Contains(t, diff, "+hello world")
}

func TestStagedDiffEmpty(t *testing.T) {
	dir := cliRepo(t)

	r, err := Open(dir, nil)
	require.NoError(t, err)

	_, err = r.StagedDiff(context.Background())
	assert.ErrorIs(t, err, ErrNoStagedChanges)
}

func TestStagedFiles(t *testing.T) {
	dir := cliRepo(t)
	stageFile(t, dir, "one.txt", "1\n")
	stageFile(t, dir, "two.txt", "2\n")

	r, err := Open(dir, nil)
	require.NoError(t, err)

	files, err := r.StagedFiles(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one.txt", "two.txt"}, files)
}

func TestCommit(t *testing.T) {
	dir := cliRepo(t)
	stageFile(t, dir, "a.txt", "content\n")

	r, err := Open(dir, nil)
	require.NoError(t, err)

	require.NoError(t, r.Commit(context.Background(), "feat: add a.txt"))

	// The index is clean again and the message landed in history.
	_, err = r.StagedDiff(context.Background())
	assert.ErrorIs(t, err, ErrNoStagedChanges)

	messages, err := r.CommitMessages("", "")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "feat: add a.txt", messages[0])
}

func TestCommitEmptyMessage(t *testing.T) {
	dir := cliRepo(t)

	r, err := Open(dir, nil)
	require.NoError(t, err)

	assert.Error(t, r.Commit(context.Background(), "   \n"))
}

func TestEditMessage(t *testing.T) {
	dir := cliRepo(t)

	r, err := Open(dir, nil)
	require.NoError(t, err)

	// "true" leaves the file untouched, so the proposed message survives
	// with the comment footer stripped.
	t.Setenv("GIT_EDITOR", "true")

	edited, err := r.EditMessage(context.Background(), "feat: proposed message")
	require.NoError(t, err)
	assert.Equal(t, "feat: proposed message", edited)
}
