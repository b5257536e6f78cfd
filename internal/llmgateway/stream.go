package llmgateway

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// StreamEvent is one line of the sub-agent's stream-json protocol.
type StreamEvent struct {
	Type    string          `json:"type"`
	Message *MessageContent `json:"message,omitempty"`
	Result  string          `json:"result,omitempty"`
}

// MessageContent is the "message" field of an assistant event.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is one block of an assistant message: text or a tool call.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`  // for tool_use
	Input json.RawMessage `json:"input,omitempty"` // for tool_use, raw JSON args
}

// UIWriter is the gateway's UI contract: tool-call headers as exactly one
// line, assistant text printed verbatim with no carriage-return overwriting,
// status lines never overwriting a tool header.
type UIWriter interface {
	ToolCall(index int, name string, argsJSON string)
	Text(text string)
	Done(result string)
}

// ParseStream reads the sub-agent's stream-json stdout, emitting UIWriter
// callbacks and returning the final "result" event's text, which callers
// treat as the raw agent output handed to the feedback extractor.
func ParseStream(reader io.Reader, ui UIWriter) (string, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	toolCount := 0
	var final string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		switch event.Type {
		case "assistant":
			if event.Message == nil {
				continue
			}
			for _, block := range event.Message.Content {
				switch block.Type {
				case "tool_use":
					toolCount++
					ui.ToolCall(toolCount, block.Name, string(block.Input))
				case "text":
					ui.Text(block.Text)
				}
			}
		case "result":
			final = event.Result
			ui.Done(event.Result)
		}
	}

	if err := scanner.Err(); err != nil {
		return final, fmt.Errorf("read sub-agent stream: %w", err)
	}
	return final, nil
}

// FormatToolCallHeader renders the single-line tool-call header:
// "🔧 [N] tool_name  <first 50 chars of JSON args>".
func FormatToolCallHeader(index int, name, argsJSON string) string {
	truncated := argsJSON
	if len(truncated) > 50 {
		truncated = truncated[:50]
	}
	return fmt.Sprintf("🔧 [%d] %s  %s", index, name, truncated)
}
