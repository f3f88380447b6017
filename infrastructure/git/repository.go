// Package git provides access to the local repository: staged changes,
// branch and history inspection, and committing.
package git

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Errors surfaced to command handlers.
var (
	// ErrNotARepository indicates the working directory is not inside a git
	// repository.
	ErrNotARepository = errors.New("not a git repository")

	// ErrNoStagedChanges indicates the index holds nothing to summarize.
	ErrNoStagedChanges = errors.New("no staged changes")

	// ErrNoTags indicates the repository has no tags to anchor a range.
	ErrNoTags = errors.New("no tags found")
)

// Repository wraps a local git repository.
type Repository struct {
	path   string
	repo   *gogit.Repository
	logger *slog.Logger
}

// Open opens the repository containing path, searching parent directories
// the way git itself does.
func Open(path string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{path: path, repo: repo, logger: logger}, nil
}

// Path returns the directory the repository was opened from.
func (r *Repository) Path() string { return r.path }

// CurrentBranch returns the short name of the checked-out branch. A detached
// HEAD yields the abbreviated commit hash.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}

	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

// CommitMessages returns the commit messages in the range (from, to],
// newest first. Empty from means the whole history of to; empty to means
// HEAD.
func (r *Repository) CommitMessages(from, to string) ([]string, error) {
	toHash, err := r.resolve(to)
	if err != nil {
		return nil, err
	}

	var stop plumbing.Hash
	if from != "" {
		stop, err = r.resolve(from)
		if err != nil {
			return nil, err
		}
	}

	iter, err := r.repo.Log(&gogit.LogOptions{From: toHash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var messages []string
	err = iter.ForEach(func(c *object.Commit) error {
		if from != "" && c.Hash == stop {
			return errStopIteration
		}
		messages = append(messages, strings.TrimSpace(c.Message))
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("walk log: %w", err)
	}

	return messages, nil
}

var errStopIteration = errors.New("stop iteration")

// LatestTag returns the name of the tag whose commit has the most recent
// committer date. It anchors the default changelog range.
func (r *Repository) LatestTag() (string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return "", fmt.Errorf("read tags: %w", err)
	}
	defer iter.Close()

	type taggedCommit struct {
		name string
		when int64
	}
	var tags []taggedCommit

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tag, terr := r.repo.TagObject(hash); terr == nil {
			hash = tag.Target
		}
		commit, cerr := r.repo.CommitObject(hash)
		if cerr != nil {
			return nil
		}
		tags = append(tags, taggedCommit{
			name: ref.Name().Short(),
			when: commit.Committer.When.Unix(),
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk tags: %w", err)
	}

	if len(tags) == 0 {
		return "", ErrNoTags
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].when > tags[j].when })
	return tags[0].name, nil
}

// resolve turns a revision expression into a commit hash. Empty means HEAD.
func (r *Repository) resolve(rev string) (plumbing.Hash, error) {
	if rev == "" {
		head, err := r.repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("get HEAD: %w", err)
		}
		return head.Hash(), nil
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	return *hash, nil
}
