// Package gitbridge implements the planner's git operations against
// go-git/go-git/v5 rather than shelling out to a `git` binary: repository
// discovery, branch/HEAD inspection, exclusion-filtered staging, and commit.
// Driving go-git's typed Status/Worktree API keeps the bridge unit-testable
// against a real on-disk repository without a `git` binary on PATH.
//
// Committing is only possible through CommitGate, which couples every commit
// to a preceding history-journal write.
package gitbridge

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/g3labs/planner/internal/history"
)

// NotAGitRepoError is returned by Open when no enclosing repository exists.
type NotAGitRepoError struct {
	Path string
}

func (e *NotAGitRepoError) Error() string {
	return fmt.Sprintf("not a git repository (or any parent up to mount point): %s", e.Path)
}

// CommitError wraps a failed commit attempt. A failed commit does NOT
// retract the preceding GIT COMMIT journal line; callers must not attempt to
// compensate by rewriting history.
type CommitError struct {
	Cause error
}

func (e *CommitError) Error() string { return fmt.Sprintf("git commit failed: %v", e.Cause) }
func (e *CommitError) Unwrap() error { return e.Cause }

// defaultExcludePatterns is the closed deny-list of temporary-artifact
// patterns applied during staging. Trailing-slash entries match a path
// component anywhere in the path; the rest match the basename. Editor swap
// files are the only additions beyond the documented set.
var defaultExcludePatterns = []string{
	"target/", "node_modules/", "__pycache__/", ".venv/",
	"*.log", "*.tmp", "*.bak", ".DS_Store", "Thumbs.db", "*.pyc",
	"tmp/", "temp/",
	"*.swp", "*~",
}

// Bridge operates git via go-git, rooted at a codepath.
type Bridge struct {
	codepath string
	disabled bool
	repo     *git.Repository
}

// Open opens the repository enclosing codepath (codepath may be a
// subdirectory of the repo root). When useGit is false every subsequent
// operation becomes a no-op returning a synthetic "disabled" value.
func Open(codepath string, useGit bool) (*Bridge, error) {
	if !useGit {
		return &Bridge{codepath: codepath, disabled: true}, nil
	}
	repo, err := git.PlainOpenWithOptions(codepath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, &NotAGitRepoError{Path: codepath}
		}
		return nil, fmt.Errorf("open repository at %q: %w", codepath, err)
	}
	return &Bridge{codepath: codepath, repo: repo}, nil
}

// Disabled reports whether this bridge is operating in --no-git mode.
func (b *Bridge) Disabled() bool { return b.disabled }

// CurrentBranch returns the checked-out branch name, or "disabled" when --no-git.
func (b *Bridge) CurrentBranch() (string, error) {
	if b.disabled {
		return "disabled", nil
	}
	head, err := b.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Name().Short(), nil
}

// HeadSHA returns the current HEAD commit SHA, or "disabled" when --no-git.
func (b *Bridge) HeadSHA() (string, error) {
	if b.disabled {
		return "disabled", nil
	}
	head, err := b.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// WorkingTreeClean reports whether the tree is clean, treating any path
// under `ignored` as clean regardless of its status.
func (b *Bridge) WorkingTreeClean(ignored map[string]bool) (bool, error) {
	if b.disabled {
		return true, nil
	}
	wt, err := b.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("get status: %w", err)
	}
	for path, fileStatus := range status {
		if ignored[path] {
			continue
		}
		if fileStatus.Worktree != git.Unmodified || fileStatus.Staging != git.Unmodified {
			return false, nil
		}
	}
	return true, nil
}

// Stage adds all tracked and untracked changes under the repository,
// excluding paths matched by the deny-list (plus any caller-supplied
// additional patterns).
func (b *Bridge) Stage(extraExcludes ...string) ([]string, error) {
	if b.disabled {
		return nil, nil
	}
	wt, err := b.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	patterns := append(append([]string{}, defaultExcludePatterns...), extraExcludes...)

	var staged []string
	for path, fileStatus := range status {
		if fileStatus.Worktree == git.Unmodified && fileStatus.Staging == git.Unmodified {
			continue
		}
		if isExcluded(path, patterns) {
			continue
		}
		if fileStatus.Worktree == git.Deleted {
			if _, err := wt.Remove(path); err != nil {
				return nil, fmt.Errorf("stage deletion %q: %w", path, err)
			}
		} else if _, err := wt.Add(path); err != nil {
			return nil, fmt.Errorf("stage %q: %w", path, err)
		}
		staged = append(staged, path)
	}
	sort.Strings(staged)
	return staged, nil
}

// isExcluded applies the deny-list as a deterministic set of path-component
// and filepath.Match checks.
func isExcluded(path string, patterns []string) bool {
	components := strings.Split(path, "/")
	base := components[len(components)-1]
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			dirName := strings.TrimSuffix(pattern, "/")
			for _, c := range components[:len(components)-1] {
				if c == dirName {
					return true
				}
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// commit commits staged changes and returns the resulting SHA.
// summary must be <= 72 chars; the description arrives already wrapped at
// 72 cols (the gateway owns wrapping). Deliberately unexported: the only
// path to a commit from outside this package is CommitGate, which journals
// first.
func (b *Bridge) commit(summary, description string) (string, error) {
	if b.disabled {
		return "disabled", nil
	}
	if len(summary) > 72 {
		return "", fmt.Errorf("commit summary exceeds 72 chars (%d)", len(summary))
	}
	wt, err := b.repo.Worktree()
	if err != nil {
		return "", &CommitError{Cause: fmt.Errorf("open worktree: %w", err)}
	}

	message := summary
	if description != "" {
		message = summary + "\n\n" + description
	}

	sig, err := b.signature()
	if err != nil {
		return "", &CommitError{Cause: err}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", &CommitError{Cause: err}
	}
	return hash.String(), nil
}

// CommitGate is the sole path to a commit from outside this package. It
// journals the GIT COMMIT event and only then invokes the commit, so the
// journal records every attempt even when the commit itself fails. Keeping
// the raw commit unexported means no caller can skip or reorder the two
// steps.
type CommitGate struct {
	bridge  *Bridge
	journal *history.Journal
}

// NewCommitGate pairs a bridge with the journal its commits must write through.
func NewCommitGate(bridge *Bridge, journal *history.Journal) *CommitGate {
	return &CommitGate{bridge: bridge, journal: journal}
}

// Commit journals GIT COMMIT (<summary>), then commits staged changes and
// returns the resulting SHA. The summary journaled is byte-identical to the
// summary committed, and the journal line is retained when the commit fails.
func (g *CommitGate) Commit(summary, description string) (string, error) {
	if err := g.journal.Write(history.Event{Tag: history.TagGitCommit, Payload: summary}); err != nil {
		return "", err
	}
	return g.bridge.commit(summary, description)
}

// signature reads the repo's configured identity, falling back to a
// synthetic identity (common in headless CI checkouts that never ran
// `git config user.name`).
func (b *Bridge) signature() (*object.Signature, error) {
	cfg, err := b.repo.ConfigScoped(gitconfig.LocalScope)
	if err == nil && cfg.User.Name != "" && cfg.User.Email != "" {
		return &object.Signature{Name: cfg.User.Name, Email: cfg.User.Email, When: time.Now()}, nil
	}
	return &object.Signature{Name: "g3-planner", Email: "g3-planner@localhost", When: time.Now()}, nil
}
