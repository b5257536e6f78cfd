package llmgateway

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g3labs/planner/internal/retry"
)

type scriptedBackend struct {
	responses []string
	errs      []error
	calls     int
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Execute(ctx context.Context, opts ExecuteOptions) (io.ReadCloser, error) {
	i := b.calls
	b.calls++
	if i < len(b.errs) && b.errs[i] != nil {
		return nil, b.errs[i]
	}
	return io.NopCloser(strings.NewReader(b.responses[i])), nil
}

type nopUI struct{}

func (nopUI) ToolCall(int, string, string) {}
func (nopUI) Text(string)                  {}
func (nopUI) Done(string)                  {}

func resultEvent(text string) string {
	encoded, _ := json.Marshal(text)
	return `{"type":"result","result":` + string(encoded) + `}` + "\n"
}

func TestRefineRequirementsReturnsFinalResult(t *testing.T) {
	backend := &scriptedBackend{responses: []string{resultEvent("{{CURRENT REQUIREMENTS}} done")}}
	gw := New(backend, nopUI{}, "", 0, retry.NopNotifier{})

	out, err := gw.RefineRequirements(context.Background(), t.TempDir(), "draft text")
	require.NoError(t, err)
	assert.Contains(t, out, "{{CURRENT REQUIREMENTS}}")
}

func TestSummariseRequirementsClampsToFiveLinesAnd120Chars(t *testing.T) {
	long := strings.Repeat("x", 200)
	sixLines := strings.Join([]string{long, "l2", "l3", "l4", "l5", "l6"}, "\n")
	backend := &scriptedBackend{responses: []string{resultEvent(sixLines)}}
	gw := New(backend, nopUI{}, "", 0, retry.NopNotifier{})

	out, err := gw.SummariseRequirements(context.Background(), t.TempDir(), "reqs")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 5)
	assert.LessOrEqual(t, len(lines[0]), 120)
}

func TestGenerateCommitMessageSplitsSummaryAndDescription(t *testing.T) {
	msg := "Add function foo support\n\nRequirements: completed_requirements_2026-01-01_00-00-00.md\nTodo: completed_todo_2026-01-01_00-00-00.md"
	backend := &scriptedBackend{responses: []string{resultEvent(msg)}}
	gw := New(backend, nopUI{}, "", 0, retry.NopNotifier{})

	summary, description, err := gw.GenerateCommitMessage(context.Background(), t.TempDir(), "reqs", []string{"completed_requirements_2026-01-01_00-00-00.md"})
	require.NoError(t, err)
	assert.Equal(t, "Add function foo support", summary)
	assert.Contains(t, description, "Requirements:")
}

func TestGenerateCommitMessageClampsSummaryTo72Chars(t *testing.T) {
	longSummary := strings.Repeat("a", 100)
	backend := &scriptedBackend{responses: []string{resultEvent(longSummary)}}
	gw := New(backend, nopUI{}, "", 0, retry.NopNotifier{})

	summary, _, err := gw.GenerateCommitMessage(context.Background(), t.TempDir(), "reqs", nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(summary), 72)
}

func TestRefineRequirementsRetriesOnRecoverableTransportError(t *testing.T) {
	backend := &scriptedBackend{
		responses: []string{"", resultEvent("{{CURRENT REQUIREMENTS}}")},
		errs:      []error{assertRateLimitErr{}, nil},
	}
	gw := New(backend, nopUI{}, "", 0, retry.NopNotifier{})
	gw.RetryConfig.BaseDelay = 0
	gw.RetryConfig.MaxDelay = 0

	out, err := gw.RefineRequirements(context.Background(), t.TempDir(), "draft")
	require.NoError(t, err)
	assert.Contains(t, out, "{{CURRENT REQUIREMENTS}}")
	assert.Equal(t, 2, backend.calls)
}

type assertRateLimitErr struct{}

func (assertRateLimitErr) Error() string { return "received 429 rate limit from provider" }

func TestClassifyTransportErrorVariants(t *testing.T) {
	cases := map[string]retry.Variant{
		"429 too many requests":      retry.VariantRateLimit,
		"context deadline exceeded":  retry.VariantTimeout,
		"connection reset":           retry.VariantNetworkError,
		"503 server error":           retry.VariantServerError,
		"model overloaded right now": retry.VariantModelBusy,
	}
	for msg, want := range cases {
		err := classifyTransportError(&plainErr{msg: msg})
		var rec *retry.RecoverableError
		require.ErrorAs(t, err, &rec)
		assert.Equal(t, want, rec.Variant)
	}
}

func TestClassifyTransportErrorDefaultsToNonRecoverable(t *testing.T) {
	err := classifyTransportError(&plainErr{msg: "invalid api key"})
	var nonRecoverable *retry.NonRecoverableError
	require.ErrorAs(t, err, &nonRecoverable)
}

type plainErr struct{ msg string }

func (e *plainErr) Error() string { return e.msg }
