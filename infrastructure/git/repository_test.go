package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content, message string, when time.Time) plumbing.Hash {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)

	sig := &object.Signature{Name: "Tester", Email: "tester@example.com", When: when}
	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash
}

func TestOpenNotARepository(t *testing.T) {
	_, err := Open(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestOpenDetectsParentRepository(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "a\n", "initial", time.Now())

	sub := filepath.Join(dir, "nested", "deep")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	r, err := Open(sub, nil)
	require.NoError(t, err)
	assert.Equal(t, sub, r.Path())
}

func TestCurrentBranch(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "a\n", "initial", time.Now())

	r, err := Open(dir, nil)
	require.NoError(t, err)

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestCurrentBranchDetachedHead(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commitFile(t, repo, dir, "a.txt", "a\n", "initial", time.Now())

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Hash: hash}))

	r, err := Open(dir, nil)
	require.NoError(t, err)

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, hash.String()[:7], branch)
}

func TestCommitMessages(t *testing.T) {
	dir, repo := initRepo(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := commitFile(t, repo, dir, "a.txt", "1\n", "feat: first\n", base)
	commitFile(t, repo, dir, "a.txt", "2\n", "fix: second", base.Add(time.Minute))
	commitFile(t, repo, dir, "a.txt", "3\n", "docs: third\n\nwith a body\n", base.Add(2*time.Minute))

	r, err := Open(dir, nil)
	require.NoError(t, err)

	all, err := r.CommitMessages("", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs: third\n\nwith a body", "fix: second", "feat: first"}, all)

	since, err := r.CommitMessages(first.String(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs: third\n\nwith a body", "fix: second"}, since)
}

func TestCommitMessagesBadRevision(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "a\n", "initial", time.Now())

	r, err := Open(dir, nil)
	require.NoError(t, err)

	_, err = r.CommitMessages("not-a-rev", "")
	assert.Error(t, err)
}

func TestLatestTag(t *testing.T) {
	dir, repo := initRepo(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	old := commitFile(t, repo, dir, "a.txt", "1\n", "first", base)
	newer := commitFile(t, repo, dir, "a.txt", "2\n", "second", base.Add(time.Hour))

	_, err := repo.CreateTag("v1.0.0", old, nil)
	require.NoError(t, err)

	// Annotated tag on the newer commit.
	_, err = repo.CreateTag("v1.1.0", newer, &gogit.CreateTagOptions{
		Message: "release v1.1.0",
		Tagger:  &object.Signature{Name: "Tester", Email: "tester@example.com", When: base.Add(time.Hour)},
	})
	require.NoError(t, err)

	r, err := Open(dir, nil)
	require.NoError(t, err)

	tag, err := r.LatestTag()
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", tag)
}

func TestLatestTagNoTags(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "a\n", "initial", time.Now())

	r, err := Open(dir, nil)
	require.NoError(t, err)

	_, err = r.LatestTag()
	assert.ErrorIs(t, err, ErrNoTags)
}

func TestStripComments(t *testing.T) {
	in := "feat: subject\n# comment\n\nbody line\n# another comment\n"
	assert.Equal(t, "feat: subject\n\nbody line", stripComments(in))

	assert.Equal(t, "", stripComments("# only comments\n# here\n"))
}
