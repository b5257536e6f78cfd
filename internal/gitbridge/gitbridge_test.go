package gitbridge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g3labs/planner/internal/history"
)

func initRepoWithCommit(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	sig := &object.Signature{Name: "test", Email: "test@example.com"}
	_, err = wt.Commit("initial commit", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	return dir
}

func TestOpenNonRepoReturnsNotAGitRepoError(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, true)
	require.Error(t, err)
	var notRepo *NotAGitRepoError
	assert.ErrorAs(t, err, &notRepo)
}

func TestDisabledBridgeIsNoOp(t *testing.T) {
	b, err := Open(t.TempDir(), false)
	require.NoError(t, err)

	branch, err := b.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "disabled", branch)

	sha, err := b.commit("anything", "")
	require.NoError(t, err)
	assert.Equal(t, "disabled", sha)
}

func TestHeadSHAAndCleanTree(t *testing.T) {
	dir := initRepoWithCommit(t)
	b, err := Open(dir, true)
	require.NoError(t, err)

	sha, err := b.HeadSHA()
	require.NoError(t, err)
	assert.Len(t, sha, 40)

	clean, err := b.WorkingTreeClean(nil)
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestWorkingTreeCleanIgnoresSpecifiedPath(t *testing.T) {
	dir := initRepoWithCommit(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "g3-plan"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g3-plan", "new_requirements.md"), []byte("draft"), 0o644))

	b, err := Open(dir, true)
	require.NoError(t, err)

	clean, err := b.WorkingTreeClean(map[string]bool{"g3-plan/new_requirements.md": true})
	require.NoError(t, err)
	assert.True(t, clean)

	dirtyClean, err := b.WorkingTreeClean(nil)
	require.NoError(t, err)
	assert.False(t, dirtyClean)
}

func TestStageExcludesDenyListPatterns(t *testing.T) {
	dir := initRepoWithCommit(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "debug.log"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "pkg", "index.js"), []byte("x"), 0o644))

	b, err := Open(dir, true)
	require.NoError(t, err)

	staged, err := b.Stage()
	require.NoError(t, err)
	assert.Contains(t, staged, "keep.txt")
	assert.NotContains(t, staged, "debug.log")
	for _, path := range staged {
		assert.NotContains(t, path, "node_modules")
	}
}

func TestCommitReturnsSHA(t *testing.T) {
	dir := initRepoWithCommit(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("x"), 0o644))

	b, err := Open(dir, true)
	require.NoError(t, err)
	_, err = b.Stage()
	require.NoError(t, err)

	sha, err := b.commit("Add feature support", "Requirements: completed_requirements_2026-01-01_00-00-00.md\nTodo: completed_todo_2026-01-01_00-00-00.md")
	require.NoError(t, err)
	assert.Len(t, sha, 40)
}

func TestCommitRejectsOversizedSummary(t *testing.T) {
	dir := initRepoWithCommit(t)
	b, err := Open(dir, true)
	require.NoError(t, err)

	long := strings.Repeat("x", 100)
	_, err = b.commit(long, "")
	require.Error(t, err)
}

func TestCommitGateJournalsBeforeCommit(t *testing.T) {
	dir := initRepoWithCommit(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("x"), 0o644))

	b, err := Open(dir, true)
	require.NoError(t, err)
	_, err = b.Stage()
	require.NoError(t, err)

	journalPath := filepath.Join(t.TempDir(), "planner_history.txt")
	gate := NewCommitGate(b, history.New(journalPath))

	sha, err := gate.Commit("Add feature support", "")
	require.NoError(t, err)
	assert.Len(t, sha, 40)

	content, err := os.ReadFile(journalPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "GIT COMMIT (Add feature support)")
}

func TestCommitGateRetainsJournalLineWhenCommitFails(t *testing.T) {
	dir := initRepoWithCommit(t)
	b, err := Open(dir, true)
	require.NoError(t, err)

	journalPath := filepath.Join(t.TempDir(), "planner_history.txt")
	gate := NewCommitGate(b, history.New(journalPath))

	long := strings.Repeat("x", 100)
	_, err = gate.Commit(long, "")
	require.Error(t, err)

	content, readErr := os.ReadFile(journalPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(content), "GIT COMMIT ("+long+")")
}
