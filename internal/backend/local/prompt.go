package local

import (
	"fmt"
	"strings"

	"github.com/Codeblockz/localwork-hero/internal/inference"
	"github.com/Codeblockz/localwork-hero/internal/tools"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

const assistantPrompt = "You are a helpful AI assistant running locally on the user's computer. Be concise and helpful."

// systemPrompt describes the assistant, its tools and the folders it may touch
func systemPrompt(folders []api.FolderPermission) string {
	var b strings.Builder
	b.WriteString(assistantPrompt)
	b.WriteString("\n\n")
	b.WriteString(tools.FormatToolsPrompt())

	if len(folders) == 0 {
		b.WriteString("\n\nThe user has not granted access to any folders yet. Ask them to grant one before using file tools.")
		return b.String()
	}
	b.WriteString("\n\nYou may only access files inside these folders:")
	for _, f := range folders {
		b.WriteString("\n- ")
		b.WriteString(f.Path)
	}
	return b.String()
}

// buildPrompt renders the conversation as ChatML. Resolved tool calls on an
// assistant message are replayed as tool turns right after it.
func buildPrompt(system string, history []api.ConversationMessage) string {
	var b strings.Builder
	writeTurn(&b, api.RoleSystem, system)

	for _, msg := range history {
		if msg.Role != api.RoleAssistant || !msg.HasToolCalls() {
			writeTurn(&b, msg.Role, msg.Content)
			continue
		}

		blocks := make([]string, 0, len(msg.ToolCalls)+1)
		if msg.Content != "" {
			blocks = append(blocks, msg.Content)
		}
		for _, call := range msg.ToolCalls {
			blocks = append(blocks, tools.FormatToolCall(call))
		}
		writeTurn(&b, api.RoleAssistant, strings.Join(blocks, "\n"))

		for _, call := range msg.ToolCalls {
			if call.Resolved() {
				writeTurn(&b, api.RoleTool, fmt.Sprintf("Result of %s (%s):\n%s", call.Name, call.ID, *call.Result))
			}
		}
	}

	b.WriteString(inference.ChatMLStart)
	b.WriteString(string(api.RoleAssistant))
	b.WriteString("\n")
	return b.String()
}

func writeTurn(b *strings.Builder, role api.Role, content string) {
	b.WriteString(inference.ChatMLStart)
	b.WriteString(string(role))
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString(inference.ChatMLEnd)
	b.WriteString("\n")
}
