package cycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/g3labs/planner/internal/artifact"
	"github.com/g3labs/planner/internal/feedback"
	"github.com/g3labs/planner/internal/history"
	"github.com/g3labs/planner/internal/llmgateway"
	"github.com/g3labs/planner/internal/prompts"
	"github.com/g3labs/planner/internal/workspace"
)

// Implement promotes the accepted draft to current_requirements.md
// (idempotently, so the recovery path re-enters cleanly), points
// G3_TODO_PATH at the cycle's todo checklist, journals the GIT HEAD /
// START IMPLEMENTING pair, and runs the coach/player inner loop. It returns
// the loop's terminal verdict.
func (s *Session) Implement(ctx context.Context, currentRequirements string) (feedback.Verdict, error) {
	if err := s.Store.Rename(artifact.NewRequirementsFile, artifact.CurrentRequirementsFile); err != nil {
		return "", fmt.Errorf("promote requirements draft: %w", err)
	}

	todoPath := filepath.Join(s.Store.PlanDir, artifact.TodoFile)
	if err := os.Setenv("G3_TODO_PATH", todoPath); err != nil {
		return "", fmt.Errorf("set G3_TODO_PATH: %w", err)
	}

	if currentRequirements == "" {
		text, err := s.Store.Read(artifact.CurrentRequirementsFile)
		if err != nil {
			return "", fmt.Errorf("read current requirements: %w", err)
		}
		currentRequirements = text
	}

	sha, err := s.Bridge.HeadSHA()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD for journal: %w", err)
	}
	if err := s.Journal.Write(history.Event{Tag: history.TagGitHead, Payload: sha}); err != nil {
		return "", err
	}

	summary, err := s.Gateway.SummariseRequirements(ctx, s.Codepath, currentRequirements)
	if err != nil {
		return "", err
	}
	if err := s.Journal.Write(history.Event{
		Tag:     history.TagStartImplementing,
		Payload: artifact.CurrentRequirementsFile,
		Summary: strings.Split(summary, "\n"),
	}); err != nil {
		return "", err
	}

	return s.innerLoop(ctx, currentRequirements)
}

// innerLoop alternates player and coach turns, extracting feedback and
// checking the verdict after each coach turn, bounded by max_turns. Turn
// exhaustion counts as a Failed verdict. The todo checklist is never deleted
// here; only Refine (fresh cycle) and Complete (archival) touch it.
func (s *Session) innerLoop(ctx context.Context, currentRequirements string) (feedback.Verdict, error) {
	playerPrompt, err := prompts.GetAgentForWorkspace(s.WorkspaceDir, "player")
	if err != nil {
		return "", fmt.Errorf("load player prompt: %w", err)
	}
	coachPrompt, err := prompts.GetAgentForWorkspace(s.WorkspaceDir, "coach")
	if err != nil {
		return "", fmt.Errorf("load coach prompt: %w", err)
	}

	var lastCoachOutput string
	for turn := 1; turn <= s.Opts.maxTurns(); turn++ {
		s.Display.SectionBreak()
		s.Display.Info("turn", fmt.Sprintf("%d/%d", turn, s.Opts.maxTurns()))

		playerTurnPrompt := playerPrompt + "\n\n---\n\n" + currentRequirements
		if lastCoachOutput != "" {
			playerTurnPrompt += "\n\n---\n\nCoach feedback from the previous turn:\n" + lastCoachOutput
		}

		playerResult, err := llmgateway.RunSubAgent(ctx, s.PlayerBackend, s.Display, s.PlayerRetryCfg, s.Display, llmgateway.ExecuteOptions{
			Prompt:  playerTurnPrompt,
			Model:   s.PlayerModel,
			WorkDir: s.Codepath,
		})
		if err != nil {
			return "", err
		}

		coachTurnPrompt := coachPrompt + "\n\n---\n\n" + playerResult
		coachResult, err := llmgateway.RunSubAgent(ctx, s.CoachBackend, s.Display, s.CoachRetryCfg, s.Display, llmgateway.ExecuteOptions{
			Prompt:  coachTurnPrompt,
			Model:   s.CoachModel,
			WorkDir: s.Codepath,
		})
		if err != nil {
			return "", err
		}
		lastCoachOutput = coachResult

		source, feedbackText := feedback.Extract(coachResult, latestSessionLogPath(s.WorkspaceDir))
		s.Display.FeedbackExtracted(source, feedbackText)

		verdict := feedback.ClassifyVerdict(feedbackText)
		if verdict == feedback.VerdictApproved || verdict == feedback.VerdictFailed {
			return verdict, nil
		}
	}
	return feedback.VerdictFailed, nil
}

// latestSessionLogPath returns the newest <workspace>/logs/g3_session_*.json
// file, or "" if none exists. Session log names embed their start timestamp,
// so lexical order is chronological order.
func latestSessionLogPath(workspaceDir string) string {
	matches, err := filepath.Glob(filepath.Join(workspace.LogsDir(workspaceDir), "g3_session_*.json"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}
