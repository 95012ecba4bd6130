package tools

import (
	"encoding/json"
	"fmt"
)

// Tool names understood by the Executor
const (
	ToolListFiles  = "list_files"
	ToolReadFile   = "read_file"
	ToolWriteFile  = "write_file"
	ToolCreateFile = "create_file"
	ToolDeleteFile = "delete_file"
	ToolMoveFile   = "move_file"
)

// ToolDefinition describes a tool to the model
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// FileTools returns the file operation tools offered to the model
func FileTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolListFiles,
			Description: "List files and directories in a given path",
			Parameters: objectSchema([]string{"path"}, map[string]any{
				"path":    stringParam("Absolute path to the directory to list"),
				"pattern": stringParam("Optional glob such as *.md to filter entry names"),
			}),
		},
		{
			Name:        ToolReadFile,
			Description: "Read the contents of a text file",
			Parameters: objectSchema([]string{"path"}, map[string]any{
				"path": stringParam("Absolute path to the file to read"),
			}),
		},
		{
			Name:        ToolWriteFile,
			Description: "Write content to an existing file (overwrites)",
			Parameters: objectSchema([]string{"path", "content"}, map[string]any{
				"path":    stringParam("Absolute path to the file to write"),
				"content": stringParam("Content to write to the file"),
			}),
		},
		{
			Name:        ToolCreateFile,
			Description: "Create a new file with content (fails if file already exists)",
			Parameters: objectSchema([]string{"path", "content"}, map[string]any{
				"path":    stringParam("Absolute path for the new file"),
				"content": stringParam("Content for the new file"),
			}),
		},
		{
			Name:        ToolDeleteFile,
			Description: "Delete a file",
			Parameters: objectSchema([]string{"path"}, map[string]any{
				"path": stringParam("Absolute path to the file to delete"),
			}),
		},
		{
			Name:        ToolMoveFile,
			Description: "Move or rename a file",
			Parameters: objectSchema([]string{"src", "dest"}, map[string]any{
				"src":  stringParam("Absolute path to the source file"),
				"dest": stringParam("Absolute path for the destination"),
			}),
		},
	}
}

// FormatToolsPrompt renders the tool definitions and calling convention
// for inclusion in the system prompt
func FormatToolsPrompt() string {
	defs, err := json.MarshalIndent(FileTools(), "", "  ")
	if err != nil {
		defs = []byte("[]")
	}

	return fmt.Sprintf(`You have access to the following tools to help users with file operations:

%s

To use a tool, respond with a tool call in this exact format:
%s{"name": "tool_name", "arguments": {"arg1": "value1"}}%s

You can use multiple tool calls in a single response. After each tool call, you will receive the result.
Only use tools when the user asks for file operations. Always provide a natural language response along with your tool calls.`,
		defs, toolCallOpen, toolCallClose)
}
