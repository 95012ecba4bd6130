package api

import (
	"strings"
	"time"
)

// AppName is reported by the backend's app info call
const AppName = "LocalWork Hero"

// AppInfo identifies the running backend
type AppInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Model represents a downloadable model and its local install state
type Model struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Filename    string `json:"filename" yaml:"filename"`
	SizeBytes   int64  `json:"size_bytes" yaml:"size_bytes"`
	LocalPath   string `json:"local_path,omitempty" yaml:"local_path,omitempty"` // Empty until downloaded
	Downloaded  bool   `json:"downloaded" yaml:"downloaded"`
}

// Selectable reports whether the model can be handed to the engine
func (m Model) Selectable() bool {
	return m.Downloaded && m.LocalPath != ""
}

// DownloadProgress is a single progress record for an in-flight download.
// Percent is nil when the total size is unknown.
type DownloadProgress struct {
	ModelID         string   `json:"model_id"`
	DownloadedBytes int64    `json:"downloaded_bytes"`
	TotalBytes      int64    `json:"total_bytes"`
	Percent         *float64 `json:"percent,omitempty"`
}

// NewDownloadProgress builds a progress record with percent clamped to [0,100]
func NewDownloadProgress(modelID string, downloaded, total int64) DownloadProgress {
	p := DownloadProgress{
		ModelID:         modelID,
		DownloadedBytes: downloaded,
		TotalBytes:      total,
	}
	if total > 0 {
		pct := float64(downloaded) / float64(total) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		p.Percent = &pct
	}
	return p
}

// Indeterminate reports whether the UI should show indeterminate progress
func (p DownloadProgress) Indeterminate() bool {
	return p.Percent == nil
}

// PercentValue returns the percent or -1 when indeterminate
func (p DownloadProgress) PercentValue() float64 {
	if p.Percent == nil {
		return -1
	}
	return *p.Percent
}

// LoadState is the lifecycle state of the active model
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadReady   LoadState = "ready"
	LoadFailed  LoadState = "failed"
)

// ActiveModel is the model currently owned by the inference engine
type ActiveModel struct {
	ModelID   string    `json:"model_id,omitempty"`
	LoadState LoadState `json:"load_state"`
	Error     string    `json:"error,omitempty"`
}

// Role is the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolErrorPrefix marks a tool result as a failure
const ToolErrorPrefix = "Error:"

// ToolCall is a single tool invocation requested by the model. A nil Result
// means the call has not been executed yet.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    *string        `json:"result,omitempty"`
}

// Resolved reports whether the call carries a result
func (tc ToolCall) Resolved() bool {
	return tc.Result != nil
}

// Failed reports whether the result uses the error convention
func (tc ToolCall) Failed() bool {
	return tc.Result != nil && strings.HasPrefix(*tc.Result, ToolErrorPrefix)
}

// StringArg returns a string argument by key
func (tc ToolCall) StringArg(key string) (string, bool) {
	v, ok := tc.Arguments[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// WithResult returns a copy of the call with its result set
func (tc ToolCall) WithResult(result string) ToolCall {
	tc.Result = &result
	return tc
}

// Clone returns a deep copy of the call, including nested argument values
func (tc ToolCall) Clone() ToolCall {
	if tc.Arguments != nil {
		tc.Arguments = cloneValue(tc.Arguments).(map[string]any)
	}
	if tc.Result != nil {
		result := *tc.Result
		tc.Result = &result
	}
	return tc
}

// cloneValue copies the map and slice shapes produced by encoding/json
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// ConversationMessage is one entry of the agent session history
type ConversationMessage struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// UserMessage builds a user-authored message
func UserMessage(content string) ConversationMessage {
	return ConversationMessage{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message; empty tool calls are omitted
func AssistantMessage(content string, calls []ToolCall) ConversationMessage {
	msg := ConversationMessage{Role: RoleAssistant, Content: content}
	if len(calls) > 0 {
		msg.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return msg
}

// Clone returns a deep copy of the message. Nil tool calls stay nil.
func (m ConversationMessage) Clone() ConversationMessage {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			calls[i] = tc.Clone()
		}
		m.ToolCalls = calls
	}
	return m
}

// CloneHistory deep-copies a conversation
func CloneHistory(history []ConversationMessage) []ConversationMessage {
	out := make([]ConversationMessage, len(history))
	for i, m := range history {
		out[i] = m.Clone()
	}
	return out
}

// HasToolCalls reports whether a tool-call block should be rendered
func (m ConversationMessage) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// TurnResponse is the backend's answer to one agent turn
type TurnResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// FolderPermission is a user grant for a directory subtree
type FolderPermission struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	GrantedAt time.Time `json:"granted_at"`
}

// FileEntry is a read-only projection of a directory entry
type FileEntry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	IsDirectory bool      `json:"is_directory"`
	SizeBytes   int64     `json:"size_bytes"`
	ModifiedAt  time.Time `json:"modified_at"`
}
