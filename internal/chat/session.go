package chat

import (
	"atlas-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session holds the conversation transcript scoped to the current
// selection. Messages are only meaningful against the selection they were
// generated for, so a selection change clears them before anything new is
// appended. The session lives for the process duration.
type Session struct {
	id           string
	selectionKey *string
	messages     []models.Message
	logger       *zap.Logger
}

// NewSession creates an empty session.
func NewSession(logger *zap.Logger) *Session {
	return &Session{
		id:     uuid.New().String(),
		logger: logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// OnNewSelection re-keys the session to the given predicate, clearing the
// transcript if the predicate actually changed. Idempotent for an
// unchanged predicate.
func (s *Session) OnNewSelection(predicate string) {
	if s.selectionKey != nil && *s.selectionKey == predicate {
		return
	}
	cleared := len(s.messages)
	s.messages = nil
	key := predicate
	s.selectionKey = &key

	s.logger.Info("Chat session reset for new selection",
		zap.String("session_id", s.id),
		zap.Int("cleared_messages", cleared))
}

// AppendUser records a user message. Called before the gateway call is
// dispatched, so a failed or slow reply never hides the question.
func (s *Session) AppendUser(content string) {
	s.messages = append(s.messages, models.Message{Role: models.RoleUser, Content: content})
}

// AppendAssistant records the assistant reply (or failure detail rendered
// as the reply) once the gateway call resolves.
func (s *Session) AppendAssistant(content string) {
	s.messages = append(s.messages, models.Message{Role: models.RoleAssistant, Content: content})
}

// Clear empties the transcript without touching the selection key, so the
// next question stays scoped to the same selection.
func (s *Session) Clear() {
	s.messages = nil
	s.logger.Info("Chat session cleared", zap.String("session_id", s.id))
}

// Messages returns a copy of the transcript in append order.
func (s *Session) Messages() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SelectionKey returns the predicate the transcript is scoped to, and
// false if no selection has been seen yet.
func (s *Session) SelectionKey() (string, bool) {
	if s.selectionKey == nil {
		return "", false
	}
	return *s.selectionKey, true
}
