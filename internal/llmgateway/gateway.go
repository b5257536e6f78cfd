package llmgateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/g3labs/planner/internal/prompts"
	"github.com/g3labs/planner/internal/retry"
)

// plannerToolSet is the gateway's restricted tool set. todo_write is
// excluded: the planner gateway never edits the todo checklist, only the
// requirements draft.
var plannerToolSet = []string{"read_file", "write_file", "shell", "code_search", "str_replace", "final_output"}

// Gateway is the stateless planner LLM gateway.
type Gateway struct {
	Backend       Backend
	UI            UIWriter
	Model         string
	RetryNotifier retry.Notifier
	RetryConfig   retry.Config
}

// New constructs a Gateway with the planner's retry preset.
func New(backend Backend, ui UIWriter, model string, autonomousMaxRetries int, notifier retry.Notifier) *Gateway {
	return &Gateway{
		Backend:       backend,
		UI:            ui,
		Model:         model,
		RetryNotifier: notifier,
		RetryConfig:   retry.PlannerPreset(autonomousMaxRetries),
	}
}

// RefineRequirements invokes the planning model against the refine prompt
// and a draft text, returning the revised new_requirements.md content.
// Success is defined by the caller checking
// artifact.HasCurrentRequirementsMarker on the result.
func (g *Gateway) RefineRequirements(ctx context.Context, workDir string, draftText string) (string, error) {
	refinePrompt, err := prompts.Get("refine")
	if err != nil {
		return "", fmt.Errorf("load refine prompt: %w", err)
	}
	prompt := refinePrompt + "\n\n---\n\n" + draftText

	return RunSubAgent(ctx, g.Backend, g.UI, g.RetryConfig, g.RetryNotifier, ExecuteOptions{
		Prompt:       prompt,
		Model:        g.Model,
		AllowedTools: plannerToolSet,
		WorkDir:      workDir,
	})
}

// SummariseRequirements produces a summary of at most 5 lines of at most
// 120 chars each, used verbatim in the START IMPLEMENTING journal entry.
func (g *Gateway) SummariseRequirements(ctx context.Context, workDir string, currentRequirementsText string) (string, error) {
	summarizePrompt, err := prompts.Get("summarize")
	if err != nil {
		return "", fmt.Errorf("load summarize prompt: %w", err)
	}
	prompt := summarizePrompt + "\n\n---\n\n" + currentRequirementsText

	result, err := RunSubAgent(ctx, g.Backend, g.UI, g.RetryConfig, g.RetryNotifier, ExecuteOptions{
		Prompt:       prompt,
		Model:        g.Model,
		AllowedTools: []string{"final_output"},
		WorkDir:      workDir,
	})
	if err != nil {
		return "", err
	}
	return clampLines(result, 5, 120), nil
}

// GenerateCommitMessage drafts a summary (<=72 chars, imperative) and a
// description (<=10 lines of <=72 chars, including the archive filenames)
// for the completed cycle.
func (g *Gateway) GenerateCommitMessage(ctx context.Context, workDir, currentRequirementsText string, completedFilenames []string) (summary, description string, err error) {
	commitPrompt, err := prompts.Get("commit_message")
	if err != nil {
		return "", "", fmt.Errorf("load commit message prompt: %w", err)
	}
	prompt := fmt.Sprintf("%s\n\n---\n\nRequirements:\n%s\n\nCompleted files:\n%s",
		commitPrompt, currentRequirementsText, strings.Join(completedFilenames, "\n"))

	result, err := RunSubAgent(ctx, g.Backend, g.UI, g.RetryConfig, g.RetryNotifier, ExecuteOptions{
		Prompt:       prompt,
		Model:        g.Model,
		AllowedTools: []string{"final_output"},
		WorkDir:      workDir,
	})
	if err != nil {
		return "", "", err
	}

	summary, description = splitCommitMessage(result)
	return clampChars(summary, 72), clampLines(description, 10, 72), nil
}

// splitCommitMessage divides a generated commit message on the first blank
// line: everything before is the summary (first non-empty line only,
// defensively), everything after is the description body.
func splitCommitMessage(text string) (summary, description string) {
	parts := strings.SplitN(strings.TrimSpace(text), "\n\n", 2)
	summaryLine := strings.SplitN(strings.TrimSpace(parts[0]), "\n", 2)[0]
	if len(parts) == 2 {
		return summaryLine, strings.TrimSpace(parts[1])
	}
	return summaryLine, ""
}

// clampChars and clampLines are safety caps on runaway model output; the
// commit-message prompt owns the actual 72-column wrapping.
func clampChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func clampLines(s string, maxLines, maxChars int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	for i, line := range lines {
		if len(line) > maxChars {
			lines[i] = line[:maxChars]
		}
	}
	return strings.Join(lines, "\n")
}

// classifyTransportError wraps a raw transport error as retry.Recoverable
// when it looks transient, otherwise as retry.NonRecoverable. Sub-agent CLI
// backends do not expose structured error types, so classification is
// necessarily heuristic over the error string — providers that do expose a
// structured error (an HTTP client, an SDK) should replace this with a type
// switch instead of string matching.
func classifyTransportError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return &retry.RecoverableError{Variant: retry.VariantRateLimit, Message: msg}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return &retry.RecoverableError{Variant: retry.VariantTimeout, Message: msg}
	case strings.Contains(lower, "connection") || strings.Contains(lower, "network") || strings.Contains(lower, "eof"):
		return &retry.RecoverableError{Variant: retry.VariantNetworkError, Message: msg}
	case strings.Contains(lower, "503") || strings.Contains(lower, "server error") || strings.Contains(lower, "internal error"):
		return &retry.RecoverableError{Variant: retry.VariantServerError, Message: msg}
	case strings.Contains(lower, "overloaded") || strings.Contains(lower, "busy"):
		return &retry.RecoverableError{Variant: retry.VariantModelBusy, Message: msg}
	default:
		return &retry.NonRecoverableError{Message: msg}
	}
}
