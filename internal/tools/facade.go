// Package tools implements the permission-scoped file operations the model
// can call, the tool-call wire format and the executor that binds them.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Authorizer maps a requested path to its canonical form, or fails with
// api.ErrPermissionDenied when the path is outside every grant
type Authorizer interface {
	Authorize(ctx context.Context, path string) (string, error)
}

// Facade runs file operations inside granted folders. Every target is
// authorized before the filesystem is touched.
type Facade struct {
	auth Authorizer
	log  *logging.Logger
}

// NewFacade creates a facade. log may be nil.
func NewFacade(auth Authorizer, log *logging.Logger) *Facade {
	if log == nil {
		log = logging.Nop()
	}
	return &Facade{auth: auth, log: log.Named("files")}
}

// ListFiles lists a directory. A non-empty pattern filters entry names
// with doublestar glob syntax.
func (f *Facade) ListFiles(ctx context.Context, path, pattern string) ([]api.FileEntry, error) {
	dir, err := f.auth.Authorize(ctx, path)
	if err != nil {
		return nil, err
	}
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]api.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if pattern != "" {
			if ok, _ := doublestar.Match(pattern, entry.Name()); !ok {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata: %w", err)
		}
		files = append(files, api.FileEntry{
			Name:        entry.Name(),
			Path:        filepath.Join(dir, entry.Name()),
			IsDirectory: info.IsDir(),
			SizeBytes:   info.Size(),
			ModifiedAt:  info.ModTime(),
		})
	}

	return files, nil
}

// ReadTextFile returns the content of a UTF-8 text file
func (f *Facade) ReadTextFile(ctx context.Context, path string) (string, error) {
	target, err := f.auth.Authorize(ctx, path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("failed to read file: %s is not a UTF-8 text file", target)
	}
	return string(data), nil
}

// WriteTextFile overwrites an existing file
func (f *Facade) WriteTextFile(ctx context.Context, path, content string) error {
	target, err := f.auth.Authorize(ctx, path)
	if err != nil {
		return err
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("failed to write file: %s is a directory", target)
	}

	if err := os.WriteFile(target, []byte(content), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	f.log.Info("file written", map[string]any{"path": target, "bytes": len(content)})
	return nil
}

// CreateTextFile creates a new file; it fails if the path already exists
func (f *Facade) CreateTextFile(ctx context.Context, path, content string) error {
	target, err := f.auth.Authorize(ctx, path)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("file already exists: %s", target)
		}
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	f.log.Info("file created", map[string]any{"path": target, "bytes": len(content)})
	return nil
}

// DeleteFile removes a file. Directories are refused.
func (f *Facade) DeleteFile(ctx context.Context, path string) error {
	target, err := f.auth.Authorize(ctx, path)
	if err != nil {
		return err
	}

	info, err := os.Lstat(target)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("failed to delete file: %s is a directory", target)
	}

	if err := os.Remove(target); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	f.log.Info("file deleted", map[string]any{"path": target})
	return nil
}

// MoveFile renames src to dest. Both ends must be inside a grant and dest
// must not exist.
func (f *Facade) MoveFile(ctx context.Context, src, dest string) error {
	from, err := f.auth.Authorize(ctx, src)
	if err != nil {
		return err
	}
	to, err := f.auth.Authorize(ctx, dest)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(from); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	if _, err := os.Lstat(to); err == nil {
		return fmt.Errorf("failed to move file: destination %s already exists", to)
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	f.log.Info("file moved", map[string]any{"src": from, "dest": to})
	return nil
}
