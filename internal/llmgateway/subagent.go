package llmgateway

import (
	"context"

	"github.com/g3labs/planner/internal/retry"
)

// RunSubAgent executes one retry-driven sub-agent invocation and returns its
// raw final output (the "result" event text), for callers that need more
// than the gateway's three named operations — the coach/player inner loop
// invokes the same backend and stream protocol with its own prompts and
// tool sets.
func RunSubAgent(ctx context.Context, backend Backend, ui UIWriter, cfg retry.Config, notifier retry.Notifier, opts ExecuteOptions) (string, error) {
	return retry.Execute(ctx, cfg, notifier, func(ctx context.Context) (string, error) {
		reader, err := backend.Execute(ctx, opts)
		if err != nil {
			return "", classifyTransportError(err)
		}
		defer reader.Close()

		result, err := ParseStream(reader, ui)
		if err != nil {
			return "", classifyTransportError(err)
		}
		return result, nil
	})
}
