// Package download coordinates the single in-flight model download.
package download

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Downloader is the backend transfer call. progress may be invoked from any
// goroutine until DownloadModel returns.
type Downloader interface {
	DownloadModel(ctx context.Context, modelID, filename string, progress func(api.DownloadProgress)) (string, error)
}

// Discarder is implemented by backends that can undo a finished transfer.
// The coordinator calls it when a download completes after its job was
// cancelled.
type Discarder interface {
	DiscardModel(ctx context.Context, modelID, localPath string) error
}

// ModelSource resolves models and records finished downloads
type ModelSource interface {
	Get(ctx context.Context, id string) (api.Model, error)
	MarkDownloaded(id, localPath string) bool
}

// Coordinator allows at most one download at a time, system wide
type Coordinator struct {
	backend Downloader
	models  ModelSource
	log     *logging.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	active *Job
}

// NewCoordinator creates a coordinator. log and mt may be nil.
func NewCoordinator(backend Downloader, models ModelSource, log *logging.Logger, mt *metrics.Metrics) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{
		backend: backend,
		models:  models,
		log:     log.Named("download"),
		metrics: mt,
	}
}

// Start begins downloading modelID. Starting the model that is already in
// flight returns the existing job; any other model fails with DownloadBusy
// and leaves the running job untouched.
func (c *Coordinator) Start(ctx context.Context, modelID string) (*Job, error) {
	c.mu.Lock()
	if c.active != nil {
		job := c.active
		c.mu.Unlock()
		if strings.EqualFold(job.modelID, modelID) {
			return job, nil
		}
		c.log.Debug("download rejected", map[string]any{"model_id": modelID, "active": job.modelID})
		return nil, api.E(api.ErrDownloadBusy, "start download",
			fmt.Errorf("%s is already downloading", job.modelID))
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := newJob(c, modelID, cancel)
	c.active = job
	c.mu.Unlock()

	c.metrics.SetDownloadActive(true)

	model, err := c.models.Get(ctx, modelID)
	if err == nil && model.Downloaded {
		err = api.E(api.ErrDownloadFailed, "start download", fmt.Errorf("%s is already downloaded", modelID))
	}
	if err != nil {
		c.release(job)
		cancel()
		job.complete("", err)
		return nil, err
	}

	job.publish(api.NewDownloadProgress(model.ID, 0, model.SizeBytes))
	c.log.Info("download started", map[string]any{"model_id": model.ID, "filename": model.Filename})

	go c.run(jobCtx, job, model)
	return job, nil
}

// Active reports the model currently downloading
func (c *Coordinator) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.modelID, true
}

// Cancel cancels the in-flight download of modelID
func (c *Coordinator) Cancel(modelID string) error {
	c.mu.Lock()
	job := c.active
	c.mu.Unlock()

	if job == nil || !strings.EqualFold(job.modelID, modelID) {
		return api.E(api.ErrNotFound, "cancel download", fmt.Errorf("no download in progress for %s", modelID))
	}
	if !c.cancelJob(job) {
		return api.E(api.ErrNotFound, "cancel download", fmt.Errorf("download of %s already finished", modelID))
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, job *Job, model api.Model) {
	path, err := c.backend.DownloadModel(ctx, model.ID, model.Filename, job.publish)

	c.mu.Lock()
	if c.active != job {
		// Cancelled; the terminal event has already been delivered
		c.mu.Unlock()
		if err == nil {
			c.discard(ctx, model.ID, path)
		}
		return
	}
	c.active = nil
	if err == nil {
		c.models.MarkDownloaded(model.ID, path)
	}
	c.mu.Unlock()

	c.metrics.SetDownloadActive(false)
	job.cancel()

	if err != nil {
		c.log.Warn("download failed", map[string]any{"model_id": model.ID, "error": err})
		c.metrics.RecordDownload(metrics.ResultError, 0)
		job.complete("", api.E(api.ErrDownloadFailed, "download "+model.ID, err))
		return
	}

	c.log.Info("download complete", map[string]any{"model_id": model.ID, "path": path})
	c.metrics.RecordDownload(metrics.ResultOK, job.Last().DownloadedBytes)
	job.complete(path, nil)
}

func (c *Coordinator) discard(ctx context.Context, modelID, path string) {
	d, ok := c.backend.(Discarder)
	if !ok {
		return
	}
	if err := d.DiscardModel(context.WithoutCancel(ctx), modelID, path); err != nil {
		c.log.Warn("failed to discard cancelled download", map[string]any{"model_id": modelID, "path": path, "error": err})
	}
}

// cancelJob releases the slot and delivers the cancellation. It returns
// false if the job already reached a terminal state.
func (c *Coordinator) cancelJob(job *Job) bool {
	c.mu.Lock()
	if c.active != job {
		c.mu.Unlock()
		return false
	}
	c.active = nil
	c.mu.Unlock()

	c.metrics.SetDownloadActive(false)
	job.cancel()
	if job.complete("", api.E(api.ErrDownloadCancelled, "download "+job.modelID, context.Canceled)) {
		c.metrics.RecordDownload(metrics.ResultCancelled, 0)
		c.log.Info("download cancelled", map[string]any{"model_id": job.modelID})
	}
	return true
}

func (c *Coordinator) release(job *Job) {
	c.mu.Lock()
	if c.active == job {
		c.active = nil
	}
	c.mu.Unlock()
	c.metrics.SetDownloadActive(false)
}

// Job is one in-flight download
type Job struct {
	coord   *Coordinator
	modelID string
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	last     api.DownloadProgress
	subs     []chan api.DownloadProgress
	finished bool
	path     string
	err      error
}

func newJob(c *Coordinator, modelID string, cancel context.CancelFunc) *Job {
	return &Job{
		coord:   c,
		modelID: modelID,
		cancel:  cancel,
		done:    make(chan struct{}),
		last:    api.DownloadProgress{ModelID: modelID},
	}
}

// ModelID returns the model being downloaded
func (j *Job) ModelID() string {
	return j.modelID
}

// Progress returns a new subscription. It holds at most one pending
// snapshot and always yields the latest; the final snapshot is delivered
// before the channel closes.
func (j *Job) Progress() <-chan api.DownloadProgress {
	ch := make(chan api.DownloadProgress, 1)

	j.mu.Lock()
	defer j.mu.Unlock()

	ch <- j.last
	if j.finished {
		close(ch)
		return ch
	}
	j.subs = append(j.subs, ch)
	return ch
}

// Last returns the most recent snapshot
func (j *Job) Last() api.DownloadProgress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Done is closed when the job reaches its terminal state
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the local path or the terminal error. It is only
// meaningful after Done is closed.
func (j *Job) Result() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.path, j.err
}

// Wait blocks until the job finishes or ctx is done
func (j *Job) Wait(ctx context.Context) (string, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel aborts the download. It reports whether this call cancelled it.
func (j *Job) Cancel() bool {
	return j.coord.cancelJob(j)
}

// Cancelled reports whether the job ended by cancellation
func (j *Job) Cancelled() bool {
	_, err := j.Result()
	return errors.Is(err, api.ErrDownloadCancelled)
}

// publish records a snapshot from the backend. Lower byte counts than the
// last accepted one are dropped, so percent never goes backwards.
func (j *Job) publish(p api.DownloadProgress) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finished {
		return
	}
	if p.DownloadedBytes < j.last.DownloadedBytes {
		return
	}
	total := p.TotalBytes
	if total <= 0 {
		total = j.last.TotalBytes
	}
	next := api.NewDownloadProgress(j.modelID, p.DownloadedBytes, total)
	if j.last.Percent != nil && next.Percent != nil && *next.Percent < *j.last.Percent {
		pct := *j.last.Percent
		next.Percent = &pct
	}
	j.last = next
	j.broadcast(next)
}

// complete delivers the terminal outcome once; later calls are no-ops
func (j *Job) complete(path string, err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.finished {
		return false
	}
	j.finished = true
	j.path, j.err = path, err

	if err == nil && j.last.TotalBytes > 0 {
		j.last = api.NewDownloadProgress(j.modelID, j.last.TotalBytes, j.last.TotalBytes)
	}
	j.broadcast(j.last)

	for _, ch := range j.subs {
		close(ch)
	}
	j.subs = nil
	close(j.done)
	return true
}

// broadcast offers p to every subscriber without blocking, replacing any
// snapshot the subscriber has not read yet. Callers hold j.mu.
func (j *Job) broadcast(p api.DownloadProgress) {
	for _, ch := range j.subs {
		select {
		case ch <- p:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}
