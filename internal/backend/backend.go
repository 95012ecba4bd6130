// Package backend defines the collaborator the orchestration core drives.
// The core only ever talks to a Backend; local.Backend is the in-process
// implementation.
package backend

import (
	"context"

	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// TurnSender runs one agent turn over the full conversation history. Tool
// calls in the response are already executed.
type TurnSender interface {
	SendTurn(ctx context.Context, history []api.ConversationMessage) (api.TurnResponse, error)
}

// Backend is every request/response call the core makes
type Backend interface {
	TurnSender

	AppInfo(ctx context.Context) (api.AppInfo, error)
	ListModels(ctx context.Context) ([]api.Model, error)

	// DownloadModel blocks until the file is in place. progress is the
	// out-of-band event channel for modelID.
	DownloadModel(ctx context.Context, modelID, filename string, progress func(api.DownloadProgress)) (string, error)
	LoadModel(ctx context.Context, localPath string) error

	GrantFolder(ctx context.Context, path string) (api.FolderPermission, error)
	RevokeFolder(ctx context.Context, id string) error
	ListFolders(ctx context.Context) ([]api.FolderPermission, error)
}
