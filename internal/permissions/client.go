package permissions

import (
	"context"

	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// FolderService is the backend surface for folder grants
type FolderService interface {
	GrantFolder(ctx context.Context, path string) (api.FolderPermission, error)
	RevokeFolder(ctx context.Context, id string) error
	ListFolders(ctx context.Context) ([]api.FolderPermission, error)
}

// Client is the core's view of the permission store. It holds no grant state
// of its own; every call goes to the backend.
type Client struct {
	svc     FolderService
	log     *logging.Logger
	metrics *metrics.Metrics
}

// NewClient creates a client over svc. log and mt may be nil.
func NewClient(svc FolderService, log *logging.Logger, mt *metrics.Metrics) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{svc: svc, log: log.Named("permission-client"), metrics: mt}
}

// Grant asks the backend to grant access to path
func (c *Client) Grant(ctx context.Context, path string) (api.FolderPermission, error) {
	perm, err := c.svc.GrantFolder(ctx, path)
	if err != nil {
		c.log.Warn("grant failed", map[string]any{"path": path, "error": err})
		return api.FolderPermission{}, normalize("grant folder", err)
	}
	c.refreshGauge(ctx)
	return perm, nil
}

// Revoke removes a grant. It returns only after the backend has committed.
func (c *Client) Revoke(ctx context.Context, id string) error {
	if err := c.svc.RevokeFolder(ctx, id); err != nil {
		return normalize("revoke folder", err)
	}
	c.refreshGauge(ctx)
	return nil
}

// List returns the current grants
func (c *Client) List(ctx context.Context) ([]api.FolderPermission, error) {
	perms, err := c.svc.ListFolders(ctx)
	if err != nil {
		return nil, normalize("list folders", err)
	}
	return perms, nil
}

// Allowed reports whether path lies inside a current grant
func (c *Client) Allowed(ctx context.Context, path string) (bool, error) {
	canonical, err := Canonicalize(path)
	if err != nil {
		return false, nil
	}
	perms, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	return Covers(perms, canonical), nil
}

func (c *Client) refreshGauge(ctx context.Context) {
	if c.metrics == nil {
		return
	}
	if perms, err := c.svc.ListFolders(ctx); err == nil {
		c.metrics.SetGrantedFolders(len(perms))
	}
}

// normalize keeps typed errors and classifies anything else as a backend error
func normalize(op string, err error) error {
	if api.AsError(err) != nil {
		return err
	}
	return api.E(api.ErrBackend, op, err)
}
