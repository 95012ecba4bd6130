package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Codeblockz/localwork-hero/internal/logging"
)

// ProgressFunc receives bytes written so far and the expected total
// (0 when unknown)
type ProgressFunc func(done, total int64)

// Downloader fetches catalog models into the models directory. Files are
// written to a hidden .tmp file, verified, then renamed into place.
type Downloader struct {
	catalog        *ModelCatalog
	modelsDir      string
	client         *http.Client
	minFreeBytes   uint64
	updateInterval time.Duration
	freeSpace      func(path string) (uint64, error)
	log            *logging.Logger
}

// NewDownloader creates a new model downloader
func NewDownloader(modelsDir string, catalog *ModelCatalog) *Downloader {
	return &Downloader{
		catalog:   catalog,
		modelsDir: modelsDir,
		client: &http.Client{
			Timeout: 0, // No timeout for large downloads
		},
		updateInterval: 500 * time.Millisecond,
		freeSpace:      diskFree,
		log:            logging.Nop(),
	}
}

// SetMinFreeBytes sets the headroom that must remain after a download
func (d *Downloader) SetMinFreeBytes(n uint64) {
	d.minFreeBytes = n
}

// SetLogger sets the logger
func (d *Downloader) SetLogger(log *logging.Logger) {
	d.log = log.Named("downloader")
}

// SetHTTPClient replaces the HTTP client
func (d *Downloader) SetHTTPClient(c *http.Client) {
	d.client = c
}

// TempPath is where a partial download of filename lives
func (d *Downloader) TempPath(filename string) string {
	return filepath.Join(d.modelsDir, fmt.Sprintf(".%s.tmp", filename))
}

// Download downloads a catalog model and returns its local path
func (d *Downloader) Download(ctx context.Context, modelID string, progress ProgressFunc) (string, error) {
	entry := d.catalog.FindModel(modelID)
	if entry == nil {
		return "", fmt.Errorf("model not found in catalog: %s", modelID)
	}
	if err := os.MkdirAll(d.modelsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}

	var lastErr error
	for _, source := range entry.SortedSources() {
		path, err := d.downloadFromSource(ctx, entry, source, progress)
		if err == nil {
			return path, nil
		}
		lastErr = err

		if ctx.Err() != nil || !source.Mirror {
			return "", err
		}
		d.log.Warn("source failed, trying mirror", map[string]any{"model_id": modelID, "url": source.URL, "error": err})
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no sources for %s", modelID)
	}
	return "", fmt.Errorf("all sources failed for %s: %w", modelID, lastErr)
}

func (d *Downloader) downloadFromSource(ctx context.Context, entry *CatalogEntry, source ModelSource, progress ProgressFunc) (string, error) {
	tmpPath := d.TempPath(entry.Filename)
	destPath := filepath.Join(d.modelsDir, entry.Filename)

	// Check if partially downloaded
	var bytesWritten int64
	if stat, err := os.Stat(tmpPath); err == nil {
		bytesWritten = stat.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return "", err
	}
	if bytesWritten > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", bytesWritten))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Append only when the server honoured the range request
	flag := os.O_CREATE | os.O_WRONLY
	if bytesWritten > 0 && resp.StatusCode == http.StatusPartialContent {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
		bytesWritten = 0
	}

	total := entry.Size
	if total <= 0 && resp.ContentLength > 0 {
		total = bytesWritten + resp.ContentLength
	}

	if err := d.checkDiskSpace(total - bytesWritten); err != nil {
		return "", err
	}

	file, err := os.OpenFile(tmpPath, flag, 0644)
	if err != nil {
		return "", err
	}
	defer file.Close()

	notify := func() {
		if progress != nil {
			progress(bytesWritten, total)
		}
	}
	notify()

	lastUpdate := time.Now()
	buffer := make([]byte, 32*1024) // 32KB buffer

	for {
		n, err := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := file.Write(buffer[:n]); writeErr != nil {
				return "", writeErr
			}
			bytesWritten += int64(n)

			if time.Since(lastUpdate) >= d.updateInterval {
				notify()
				lastUpdate = time.Now()
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	if err := file.Close(); err != nil {
		return "", err
	}
	notify()

	if entry.Size > 0 && bytesWritten != entry.Size {
		return "", fmt.Errorf("incomplete download: got %d bytes, expected %d", bytesWritten, entry.Size)
	}

	if entry.SHA256 != "" {
		if err := verifyChecksum(tmpPath, entry.SHA256); err != nil {
			os.Remove(tmpPath)
			return "", err
		}
	}

	// A cancelled download stays in the temp file so it can resume later
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", err
	}

	d.log.Info("model downloaded", map[string]any{"model_id": entry.ID, "path": destPath, "bytes": bytesWritten})
	return destPath, nil
}

func (d *Downloader) checkDiskSpace(remaining int64) error {
	if d.freeSpace == nil || remaining <= 0 {
		return nil
	}
	free, err := d.freeSpace(d.modelsDir)
	if err != nil {
		// Unknown free space is not fatal
		d.log.Debug("disk usage unavailable", map[string]any{"error": err})
		return nil
	}
	need := uint64(remaining) + d.minFreeBytes
	if free < need {
		return fmt.Errorf("insufficient disk space: need %d bytes, %d available", need, free)
	}
	return nil
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// verifyChecksum verifies file SHA256
func verifyChecksum(path, expectedHash string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return err
	}

	actualHash := hex.EncodeToString(hash.Sum(nil))
	if actualHash != expectedHash {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedHash, actualHash)
	}

	return nil
}
