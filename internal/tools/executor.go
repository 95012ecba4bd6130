package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// FileOperations is the set of file primitives a tool call can reach
type FileOperations interface {
	ListFiles(ctx context.Context, path, pattern string) ([]api.FileEntry, error)
	ReadTextFile(ctx context.Context, path string) (string, error)
	WriteTextFile(ctx context.Context, path, content string) error
	CreateTextFile(ctx context.Context, path, content string) error
	DeleteFile(ctx context.Context, path string) error
	MoveFile(ctx context.Context, src, dest string) error
}

// Executor executes named tool calls against the file operations.
// Failures never escape as Go errors; they become "Error: ..." results
// the model can read.
type Executor struct {
	files   FileOperations
	log     *logging.Logger
	metrics *metrics.Metrics
}

// NewExecutor creates a new tool executor. log and mt may be nil.
func NewExecutor(files FileOperations, log *logging.Logger, mt *metrics.Metrics) *Executor {
	if log == nil {
		log = logging.Nop()
	}
	return &Executor{files: files, log: log.Named("tools"), metrics: mt}
}

// Execute runs call and returns a copy carrying its result
func (e *Executor) Execute(ctx context.Context, call api.ToolCall) api.ToolCall {
	result := e.run(ctx, call)
	resolved := call.WithResult(result)

	e.metrics.RecordToolCall(call.Name, resolved.Failed())
	e.log.Debug("tool executed", map[string]any{
		"id":     call.ID,
		"tool":   call.Name,
		"failed": resolved.Failed(),
	})
	return resolved
}

func (e *Executor) run(ctx context.Context, call api.ToolCall) string {
	switch call.Name {
	case ToolListFiles:
		path, ok := call.StringArg("path")
		if !ok {
			return missingArg("path")
		}
		pattern, _ := call.StringArg("pattern")
		files, err := e.files.ListFiles(ctx, path, pattern)
		if err != nil {
			return formatError(err)
		}
		return formatListing(files)

	case ToolReadFile:
		path, ok := call.StringArg("path")
		if !ok {
			return missingArg("path")
		}
		content, err := e.files.ReadTextFile(ctx, path)
		if err != nil {
			return formatError(err)
		}
		return content

	case ToolWriteFile:
		path, okPath := call.StringArg("path")
		content, okContent := call.StringArg("content")
		if !okPath || !okContent {
			return missingArg("path", "content")
		}
		if err := e.files.WriteTextFile(ctx, path, content); err != nil {
			return formatError(err)
		}
		return fmt.Sprintf("Successfully wrote to %s", path)

	case ToolCreateFile:
		path, okPath := call.StringArg("path")
		content, okContent := call.StringArg("content")
		if !okPath || !okContent {
			return missingArg("path", "content")
		}
		if err := e.files.CreateTextFile(ctx, path, content); err != nil {
			return formatError(err)
		}
		return fmt.Sprintf("Successfully created %s", path)

	case ToolDeleteFile:
		path, ok := call.StringArg("path")
		if !ok {
			return missingArg("path")
		}
		if err := e.files.DeleteFile(ctx, path); err != nil {
			return formatError(err)
		}
		return fmt.Sprintf("Successfully deleted %s", path)

	case ToolMoveFile:
		src, okSrc := call.StringArg("src")
		dest, okDest := call.StringArg("dest")
		if !okSrc || !okDest {
			return missingArg("src", "dest")
		}
		if err := e.files.MoveFile(ctx, src, dest); err != nil {
			return formatError(err)
		}
		return fmt.Sprintf("Successfully moved %s to %s", src, dest)

	default:
		return fmt.Sprintf("%s Unknown tool '%s'", api.ToolErrorPrefix, call.Name)
	}
}

func formatListing(files []api.FileEntry) string {
	if len(files) == 0 {
		return "Directory is empty"
	}
	lines := make([]string, 0, len(files))
	for _, f := range files {
		kind := "[FILE]"
		if f.IsDirectory {
			kind = "[DIR]"
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s)", kind, f.Name, f.Path))
	}
	return strings.Join(lines, "\n")
}

func missingArg(names ...string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return fmt.Sprintf("%s Missing %s argument", api.ToolErrorPrefix, strings.Join(quoted, " or "))
}

func formatError(err error) string {
	if errors.Is(err, api.ErrPermissionDenied) {
		return fmt.Sprintf("%s Access denied: %v", api.ToolErrorPrefix, api.Cause(err))
	}
	return fmt.Sprintf("%s %v", api.ToolErrorPrefix, err)
}
