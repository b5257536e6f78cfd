// Package feedback implements the coach/player feedback extractor: turning a
// sub-agent's raw output into a structured (source, text) pair by trying an
// ordered list of extraction strategies and keeping the first non-empty hit.
// The ordering reflects observed reliability, not cleanliness; frequent
// DefaultFallback hits mean an earlier source needs investigation.
package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Source names an extraction strategy, kept for observability in the UI line
// "Coach feedback extracted from <Source>: <N> chars".
type Source string

const (
	SourceSessionLog          Source = "SessionLog"
	SourceNativeToolCall      Source = "NativeToolCall"
	SourceConversationHistory Source = "ConversationHistory"
	SourceTaskResultResponse  Source = "TaskResultResponse"
	SourceDefaultFallback     Source = "DefaultFallback"
)

// Verdict is the coach's decision, derived from the extracted text.
type Verdict string

const (
	VerdictApproved      Verdict = "Approved"
	VerdictNeedsRevision Verdict = "NeedsRevision"
	VerdictFailed        Verdict = "Failed"
)

const defaultFallbackMessage = "no feedback could be extracted from the agent's output; check session log parsing"

// sessionLogRecord mirrors one line of a JSON session log.
type sessionLogRecord struct {
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"arguments"`
}

type finalOutputArgs struct {
	Feedback string `json:"feedback"`
}

// Extract runs the five sources in order and returns the first non-empty
// result: when both SessionLog and NativeToolCall would extract non-empty
// text, SessionLog wins because it is tried first.
func Extract(agentOutput, sessionLogPath string) (Source, string) {
	if text := extractSessionLog(sessionLogPath); text != "" {
		return SourceSessionLog, text
	}
	if text := extractNativeToolCall(agentOutput); text != "" {
		return SourceNativeToolCall, text
	}
	if text := extractConversationHistory(agentOutput); text != "" {
		return SourceConversationHistory, text
	}
	if text := extractTaskResultResponse(agentOutput); text != "" {
		return SourceTaskResultResponse, text
	}
	return SourceDefaultFallback, defaultFallbackMessage
}

// extractSessionLog scans a JSON-lines session log for the most recent
// final_output record and returns its feedback field.
func extractSessionLog(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var record sessionLogRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		if record.ToolName != "final_output" {
			continue
		}
		var args finalOutputArgs
		if err := json.Unmarshal(record.Args, &args); err != nil {
			continue
		}
		if args.Feedback != "" {
			return args.Feedback
		}
	}
	return ""
}

var finalOutputNamePattern = regexp.MustCompile(`"name"\s*:\s*"final_output"`)

// extractNativeToolCall scans raw text for a balanced-JSON object containing
// "name": "final_output" and returns its arguments.feedback field.
func extractNativeToolCall(output string) string {
	loc := finalOutputNamePattern.FindStringIndex(output)
	if loc == nil {
		return ""
	}
	start := output[:loc[0]]
	braceStart := strings.LastIndex(start, "{")
	if braceStart == -1 {
		return ""
	}
	block, ok := extractBalancedJSON(output[braceStart:])
	if !ok {
		return ""
	}

	var outer struct {
		Name      string          `json:"name"`
		Arguments finalOutputArgs `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(block), &outer); err != nil {
		return ""
	}
	return outer.Arguments.Feedback
}

// extractBalancedJSON returns the shortest prefix of s starting at '{' that
// forms a balanced JSON object, respecting string escapes and nested braces.
func extractBalancedJSON(s string) (string, bool) {
	if len(s) == 0 || s[0] != '{' {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// extractConversationHistory returns the whole content of the final
// assistant turn. agentOutput is treated as a sequence of turns separated by
// "\n\n---\n\n" (the planner's own conversation serialization); the last
// non-empty segment is the last assistant turn.
func extractConversationHistory(agentOutput string) string {
	turns := strings.Split(agentOutput, "\n\n---\n\n")
	for i := len(turns) - 1; i >= 0; i-- {
		turn := strings.TrimSpace(turns[i])
		if turn != "" {
			return turn
		}
	}
	return ""
}

var taskResultPattern = regexp.MustCompile(`(?s)TaskResult\{.*?final_output\s*:\s*"((?:[^"\\]|\\.)*)"`)

// extractTaskResultResponse parses a stringified TaskResult struct for an
// embedded final_output field.
func extractTaskResultResponse(agentOutput string) string {
	match := taskResultPattern.FindStringSubmatch(agentOutput)
	if len(match) < 2 {
		return ""
	}
	return unescapeGoString(match[1])
}

func unescapeGoString(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			switch r {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	approvedPattern = regexp.MustCompile(`\bIMPLEMENTATION_APPROVED\b`)
	failedPattern   = regexp.MustCompile(`\bIMPLEMENTATION_FAILED\b`)
)

// ClassifyVerdict applies the approval-detection rule: a word-bounded,
// case-sensitive literal match on IMPLEMENTATION_APPROVED /
// IMPLEMENTATION_FAILED, with the failure signal taking priority.
func ClassifyVerdict(text string) Verdict {
	if failedPattern.MatchString(text) {
		return VerdictFailed
	}
	if approvedPattern.MatchString(text) {
		return VerdictApproved
	}
	return VerdictNeedsRevision
}

// SummaryLines returns the first n lines of text, with a "…" continuation
// marker appended when truncated.
func SummaryLines(text string, n int) []string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return lines
	}
	truncated := append([]string{}, lines[:n]...)
	truncated = append(truncated, "…")
	return truncated
}

// FormatExtractedFrom renders the observable effect line:
// "📝 Coach feedback extracted from <Source>: <N> chars".
func FormatExtractedFrom(source Source, text string) string {
	return fmt.Sprintf("📝 Coach feedback extracted from %s: %d chars", source, len(text))
}
