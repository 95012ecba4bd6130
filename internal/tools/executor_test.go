package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

func call(name string, args map[string]any) api.ToolCall {
	return api.ToolCall{ID: "call_0", Name: name, Arguments: args}
}

func TestExecutorResults(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.grantDocs(t)
	exec := NewExecutor(fx.facade, nil, nil)

	a := filepath.Join(fx.docs, "a.txt")

	tests := []struct {
		name   string
		call   api.ToolCall
		want   string
		failed bool
	}{
		{
			name: "list",
			call: call(ToolListFiles, map[string]any{"path": fx.docs}),
			want: fmt.Sprintf("[FILE] a.txt (%s)", a),
		},
		{
			name: "read",
			call: call(ToolReadFile, map[string]any{"path": a}),
			want: "alpha",
		},
		{
			name: "write",
			call: call(ToolWriteFile, map[string]any{"path": a, "content": "beta"}),
			want: "Successfully wrote to " + a,
		},
		{
			name:   "read outside grant",
			call:   call(ToolReadFile, map[string]any{"path": filepath.Join(fx.other, "b.txt")}),
			want:   "Error: Access denied: ",
			failed: true,
		},
		{
			name:   "missing path",
			call:   call(ToolReadFile, map[string]any{}),
			want:   "Error: Missing 'path' argument",
			failed: true,
		},
		{
			name:   "missing move args",
			call:   call(ToolMoveFile, map[string]any{"src": a}),
			want:   "Error: Missing 'src' or 'dest' argument",
			failed: true,
		},
		{
			name:   "unknown tool",
			call:   call("format_disk", map[string]any{}),
			want:   "Error: Unknown tool 'format_disk'",
			failed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exec.Execute(ctx, tt.call)
			if assert.True(t, got.Resolved()) {
				assert.True(t, strings.HasPrefix(*got.Result, tt.want), "result %q", *got.Result)
			}
			assert.Equal(t, tt.failed, got.Failed())
			assert.Equal(t, tt.call.ID, got.ID)
		})
	}
}

func TestExecutorEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	_, err := fx.perms.GrantFolder(ctx, fx.root)
	require.NoError(t, err)
	exec := NewExecutor(fx.facade, nil, nil)

	empty := filepath.Join(fx.root, "empty")
	missing := exec.Execute(ctx, call(ToolListFiles, map[string]any{"path": empty}))
	assert.True(t, missing.Failed())

	require.NoError(t, os.Mkdir(empty, 0755))
	listed := exec.Execute(ctx, call(ToolListFiles, map[string]any{"path": empty}))
	assert.Equal(t, "Directory is empty", *listed.Result)

	created := exec.Execute(ctx, call(ToolCreateFile, map[string]any{"path": filepath.Join(empty, "n.txt"), "content": "n"}))
	assert.Equal(t, "Successfully created "+filepath.Join(empty, "n.txt"), *created.Result)
}
