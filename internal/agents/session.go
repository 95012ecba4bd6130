package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/Codeblockz/localwork-hero/internal/backend"
	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/pkg/api"
)

// SessionState represents the current state of a conversation
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateAwaitingResponse SessionState = "awaiting_response"
	StateBlockedNoModel   SessionState = "blocked_no_model"
)

// ModelState reports whether a model is ready to answer
type ModelState interface {
	Ready() (modelID string, ok bool)
}

// Session owns one conversation. History is append-only and ordered by
// turn completion; only one turn is in flight at a time.
type Session struct {
	sender  backend.TurnSender
	models  ModelState
	log     *logging.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	state     SessionState
	history   []api.ConversationMessage
	onMessage func(api.ConversationMessage)
}

// NewSession creates an idle session. log and mt may be nil.
func NewSession(sender backend.TurnSender, models ModelState, log *logging.Logger, mt *metrics.Metrics) *Session {
	if log == nil {
		log = logging.Nop()
	}
	return &Session{
		sender:  sender,
		models:  models,
		log:     log.Named("agent"),
		metrics: mt,
		state:   StateIdle,
	}
}

// SetMessageCallback sets a callback for each appended message
func (s *Session) SetMessageCallback(callback func(api.ConversationMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = callback
}

// Send runs one turn. Without a ready model it fails with NoModelSelected
// and leaves history alone. A backend failure is recorded as an assistant
// message starting with "Error:" and returned as BackendError.
func (s *Session) Send(ctx context.Context, text string) (api.ConversationMessage, error) {
	s.mu.Lock()
	if s.state == StateAwaitingResponse {
		s.mu.Unlock()
		s.metrics.RecordTurn(metrics.ResultBusy, 0)
		return api.ConversationMessage{}, api.E(api.ErrSessionBusy, "send", nil)
	}
	modelID, ok := s.models.Ready()
	if !ok {
		s.state = StateBlockedNoModel
		s.mu.Unlock()
		s.metrics.RecordTurn(metrics.ResultDenied, 0)
		return api.ConversationMessage{}, api.E(api.ErrNoModelSelected, "send", nil)
	}

	user := api.UserMessage(text)
	s.history = append(s.history, user)
	snapshot := api.CloneHistory(s.history)
	s.state = StateAwaitingResponse
	callback := s.onMessage
	s.mu.Unlock()

	if callback != nil {
		callback(user)
	}

	timer := metrics.NewTimer()
	resp, err := s.sender.SendTurn(ctx, snapshot)

	var reply api.ConversationMessage
	if err != nil {
		reply = api.AssistantMessage(fmt.Sprintf("%s %v", api.ToolErrorPrefix, err), nil)
	} else {
		reply = api.AssistantMessage(resp.Content, resp.ToolCalls)
	}

	s.mu.Lock()
	s.history = append(s.history, reply.Clone())
	s.state = StateIdle
	callback = s.onMessage
	s.mu.Unlock()

	if callback != nil {
		callback(reply)
	}

	if err != nil {
		s.metrics.RecordTurn(metrics.ResultError, timer.Elapsed())
		s.log.Warn("turn failed", map[string]any{"model_id": modelID, "error": err})
		return reply, api.E(api.ErrBackend, "send", err)
	}

	s.metrics.RecordTurn(metrics.ResultOK, timer.Elapsed())
	s.log.Debug("turn complete", map[string]any{
		"model_id":   modelID,
		"tool_calls": len(resp.ToolCalls),
		"elapsed_ms": timer.Elapsed().Milliseconds(),
	})
	return reply, nil
}

// State returns the current session state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a deep copy of the conversation
func (s *Session) History() []api.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return api.CloneHistory(s.history)
}

// Reset starts a new conversation. It fails with SessionBusy while a turn
// is in flight.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingResponse {
		return api.E(api.ErrSessionBusy, "reset", nil)
	}
	s.history = nil
	s.state = StateIdle
	return nil
}
