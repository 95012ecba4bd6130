package inference

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// Loader is the backend call that puts a model file into the engine
type Loader interface {
	LoadModel(ctx context.Context, localPath string) error
}

// SessionManager owns the active model. Only one load runs at a time and at
// most one model is ready.
type SessionManager struct {
	loader  Loader
	loadSem *semaphore.Weighted
	log     *logging.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	current     api.ActiveModel
	subscribers []chan api.ActiveModel
}

// NewSessionManager creates an idle session manager. log and mt may be nil.
func NewSessionManager(loader Loader, log *logging.Logger, mt *metrics.Metrics) *SessionManager {
	if log == nil {
		log = logging.Nop()
	}
	return &SessionManager{
		loader:  loader,
		loadSem: semaphore.NewWeighted(1),
		log:     log.Named("session"),
		metrics: mt,
		current: api.ActiveModel{LoadState: api.LoadIdle},
	}
}

// LoadModel loads a downloaded model and makes it the active one. A call
// made while another load is pending fails with LoadBusy. On failure the
// previous active model is restored.
func (m *SessionManager) LoadModel(ctx context.Context, modelID, localPath string) error {
	op := "load model " + modelID
	if localPath == "" {
		return api.E(api.ErrLoadFailed, op, fmt.Errorf("%s has not been downloaded", modelID))
	}
	if !m.loadSem.TryAcquire(1) {
		m.metrics.RecordModelLoad(metrics.ResultBusy, 0)
		return api.E(api.ErrLoadBusy, op, nil)
	}
	defer m.loadSem.Release(1)

	prior := m.transition(api.ActiveModel{ModelID: modelID, LoadState: api.LoadLoading})
	m.log.Info("loading model", map[string]any{"model_id": modelID, "path": localPath})

	timer := metrics.NewTimer()
	if err := m.loader.LoadModel(ctx, localPath); err != nil {
		m.transition(api.ActiveModel{ModelID: modelID, LoadState: api.LoadFailed, Error: err.Error()})
		m.transition(prior)
		m.metrics.RecordModelLoad(metrics.ResultError, timer.Elapsed())
		m.log.Warn("model load failed", map[string]any{"model_id": modelID, "error": err})
		return api.E(api.ErrLoadFailed, op, err)
	}

	m.transition(api.ActiveModel{ModelID: modelID, LoadState: api.LoadReady})
	m.metrics.RecordModelLoad(metrics.ResultOK, timer.Elapsed())
	m.log.Info("model ready", map[string]any{"model_id": modelID, "elapsed_ms": timer.Elapsed().Milliseconds()})
	return nil
}

// Active returns the current state
func (m *SessionManager) Active() api.ActiveModel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Ready returns the id of the ready model, if any
func (m *SessionManager) Ready() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.LoadState != api.LoadReady {
		return "", false
	}
	return m.current.ModelID, true
}

// subscriberBuffer is how many unread transitions a subscriber keeps
const subscriberBuffer = 10

// Subscribe returns a channel of state transitions. A subscriber that falls
// behind loses the oldest transitions, never the latest one.
func (m *SessionManager) Subscribe() <-chan api.ActiveModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan api.ActiveModel, subscriberBuffer)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (m *SessionManager) Unsubscribe(ch <-chan api.ActiveModel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

// transition swaps in next, notifies subscribers and returns the previous state
func (m *SessionManager) transition(next api.ActiveModel) api.ActiveModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current
	m.current = next
	for _, ch := range m.subscribers {
		offer(ch, next)
	}
	return prev
}

// offer sends state without blocking. A full channel drops its oldest
// entry so the latest state always reaches the subscriber. Callers hold m.mu.
func offer(ch chan api.ActiveModel, state api.ActiveModel) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
	}
}
