package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

const (
	toolCallOpen  = "<tool_call>"
	toolCallClose = "</tool_call>"
)

// Parser extracts tool calls from model output. Ids continue across calls
// to Parse so that every call in one turn gets a distinct call_N id.
type Parser struct {
	next int
}

// Parse returns the well-formed tool calls found in text. Blocks whose body
// is not a JSON object with a name and an arguments object are skipped.
func (p *Parser) Parse(text string) []api.ToolCall {
	var calls []api.ToolCall

	remaining := text
	for {
		start := strings.Index(remaining, toolCallOpen)
		if start < 0 {
			break
		}
		afterStart := remaining[start+len(toolCallOpen):]
		end := strings.Index(afterStart, toolCallClose)
		if end < 0 {
			break
		}

		var body struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		raw := strings.TrimSpace(afterStart[:end])
		if err := json.Unmarshal([]byte(raw), &body); err == nil && body.Name != "" && body.Arguments != nil {
			calls = append(calls, api.ToolCall{
				ID:        fmt.Sprintf("call_%d", p.next),
				Name:      body.Name,
				Arguments: body.Arguments,
			})
			p.next++
		}

		remaining = afterStart[end+len(toolCallClose):]
	}

	return calls
}

// ParseToolCalls parses text with a fresh Parser
func ParseToolCalls(text string) []api.ToolCall {
	var p Parser
	return p.Parse(text)
}

// FormatToolCall renders call in the block format Parse reads
func FormatToolCall(call api.ToolCall) string {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}{call.Name, args})
	if err != nil {
		body = []byte(fmt.Sprintf(`{"name": %q, "arguments": {}}`, call.Name))
	}
	return toolCallOpen + string(body) + toolCallClose
}

// ExtractTextContent removes tool call blocks and trims the remainder
func ExtractTextContent(text string) string {
	result := text
	for {
		start := strings.Index(result, toolCallOpen)
		if start < 0 {
			break
		}
		end := strings.Index(result[start:], toolCallClose)
		if end < 0 {
			break
		}
		result = result[:start] + result[start+end+len(toolCallClose):]
	}
	return strings.TrimSpace(result)
}
