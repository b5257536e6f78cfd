package cycle

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g3labs/planner/internal/artifact"
	"github.com/g3labs/planner/internal/display"
	"github.com/g3labs/planner/internal/gitbridge"
	"github.com/g3labs/planner/internal/history"
	"github.com/g3labs/planner/internal/llmgateway"
	"github.com/g3labs/planner/internal/retry"
)

func TestValidateFlagsRejectsPlanningWithAutonomous(t *testing.T) {
	o := &Options{Planning: true, Autonomous: true}
	assert.ErrorIs(t, o.ValidateFlags(), ErrMutuallyExclusiveFlags)
}

func TestValidateFlagsAllowsPlanningAlone(t *testing.T) {
	o := &Options{Planning: true}
	assert.NoError(t, o.ValidateFlags())
}

func TestMaxTurnsDefaultsWhenUnset(t *testing.T) {
	o := &Options{}
	assert.Equal(t, DefaultMaxTurns, o.maxTurns())
}

func TestIsTodoCompleteDetectsRemainingCheckbox(t *testing.T) {
	assert.False(t, isTodoComplete("- [ ] step one\n- [x] step two"))
	assert.True(t, isTodoComplete("- [x] step one\n- [x] step two"))
	assert.True(t, isTodoComplete(""))
}

// scriptedBackend returns one canned stream-json response per call, in order.
type scriptedBackend struct {
	responses []string
	calls     int
}

func resultEvent(text string) string {
	encoded, _ := json.Marshal(text)
	return `{"type":"result","result":` + string(encoded) + "}\n"
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Execute(ctx context.Context, opts llmgateway.ExecuteOptions) (io.ReadCloser, error) {
	if b.calls >= len(b.responses) {
		return nil, assertionError("scriptedBackend: ran out of scripted responses")
	}
	resp := b.responses[b.calls]
	b.calls++
	return io.NopCloser(strings.NewReader(resp)), nil
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

// autoPrompts accepts every interactive decision without user interaction,
// simulating a happy-path session.
type autoPrompts struct{}

func (autoPrompts) ConfirmBranch(string) bool                           { return true }
func (autoPrompts) ConfirmDirtyTree() bool                              { return true }
func (autoPrompts) RecoveryChoice(string, time.Time) RecoveryChoice     { return RecoveryResume }
func (autoPrompts) EditRequirements(string)                             {}
func (autoPrompts) ConfirmRefinementAccept(string) bool                 { return true }
func (autoPrompts) ConfirmFinalizeIncomplete() bool                     { return true }
func (autoPrompts) ConfirmCommit([]string, string, string) CommitChoice { return CommitContinue }

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

// newTestSession wires a Session directly against a scripted backend,
// bypassing Startup's config/provider resolution (which would shell out).
func newTestSession(t *testing.T, codepath, workspaceDir string, backend llmgateway.Backend) *Session {
	t.Helper()
	store := artifact.New(codepath)
	require.NoError(t, store.EnsurePlanDir())

	bridge, err := gitbridge.Open(codepath, true)
	require.NoError(t, err)

	journal := history.New(store.HistoryPath())
	d := display.NewWithOptions(true)
	s := &Session{
		Opts:           Options{MaxTurns: 5},
		Store:          store,
		Journal:        journal,
		Bridge:         bridge,
		Gate:           gitbridge.NewCommitGate(bridge, journal),
		Display:        d,
		Prompts:        autoPrompts{},
		Gateway:        llmgateway.New(backend, d, "test-model", 3, d),
		CoachBackend:   backend,
		PlayerBackend:  backend,
		CoachRetryCfg:  retry.CoachPreset(),
		PlayerRetryCfg: retry.PlayerPreset(),
		Codepath:       codepath,
		WorkspaceDir:   workspaceDir,
	}
	return s
}

// TestHappyPathCycleCommitsAfterApprovedVerdict drives one full cycle: a
// fresh requirements draft refined, implemented in one turn with an
// Approved verdict, and committed.
func TestHappyPathCycleCommitsAfterApprovedVerdict(t *testing.T) {
	codepath := initRepoWithCommit(t)
	workspaceDir := t.TempDir()

	refinedDraft := artifact.MarkerOriginalUserReqs + "\n\n" + artifact.MarkerCurrentRequirements + "\nAdd function foo()."
	coachApproval := `Looks complete. {"name": "final_output", "arguments": {"feedback": "IMPLEMENTATION_APPROVED: all good"}}`

	backend := &scriptedBackend{responses: []string{
		resultEvent(refinedDraft),            // RefineRequirements
		resultEvent("Add function foo support"), // SummariseRequirements
		resultEvent("implemented foo()"),      // player turn
		resultEvent(coachApproval),            // coach turn
		resultEvent("Add function foo support\n\nImplements foo().\n\nRequirements: r.md\nTodo: t.md"), // commit message
	}}

	s := newTestSession(t, codepath, workspaceDir, backend)
	require.NoError(t, s.Store.Write(artifact.NewRequirementsFile, "Add function foo()."))

	ctx := context.Background()

	state, err := s.Store.DetectCycleState()
	require.NoError(t, err)
	assert.True(t, state.Fresh)

	draft, err := s.Refine(ctx)
	require.NoError(t, err)
	assert.Contains(t, draft, artifact.MarkerCurrentRequirements)

	verdict, err := s.Implement(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "Approved", string(verdict))

	require.NoError(t, s.Complete(ctx, draft))

	journalContent, err := s.Journal.ReadAll()
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(journalContent, "\n"), "\n")
	require.NotEmpty(t, lines)

	var gitCommitLineIdx, completedLineIdx int = -1, -1
	for i, line := range lines {
		if strings.Contains(line, string(history.TagGitCommit)) {
			gitCommitLineIdx = i
		}
		if strings.Contains(line, string(history.TagCompletedRequirements)) {
			completedLineIdx = i
		}
	}
	require.GreaterOrEqual(t, gitCommitLineIdx, 0, "journal must contain a GIT COMMIT line")
	require.GreaterOrEqual(t, completedLineIdx, 0, "journal must contain a COMPLETED REQUIREMENTS line")
	assert.Less(t, gitCommitLineIdx, completedLineIdx)
	assert.Contains(t, lines[gitCommitLineIdx], "Add function foo support")

	archives, err := filepath.Glob(filepath.Join(s.Store.PlanDir, "completed_requirements_*.md"))
	require.NoError(t, err)
	assert.Len(t, archives, 1)
}
