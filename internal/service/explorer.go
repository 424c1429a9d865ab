package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"atlas-service/internal/chat"
	"atlas-service/internal/dataset"
	"atlas-service/internal/models"
	"atlas-service/internal/prompt"
	"atlas-service/internal/selection"

	"go.uber.org/zap"
)

// Gateway interface for the external assistant service.
type Gateway interface {
	Send(ctx context.Context, systemContext, userContent, modelID string) (string, error)
}

const notConfiguredNotice = "OpenRouter API key not configured. Set openrouter.api_key " +
	"in the config file or the OPENROUTER_API_KEY environment variable."

// Explorer owns the interactive session state: the dataset, the selector
// with its single active selection, and the chat session. Every field has
// exactly one writer — an interaction pass holding the mutex — so one
// mutation pass completes before the next begins even though HTTP
// handlers run concurrently.
type Explorer struct {
	mu           sync.Mutex
	store        *dataset.Store
	selector     *selection.Selector
	session      *chat.Session
	gateway      Gateway
	sampleLimit  int
	defaultModel string
	logger       *zap.Logger
}

// NewExplorer creates the session context over a loaded dataset.
func NewExplorer(store *dataset.Store, gateway Gateway, sampleLimit int, defaultModel string, logger *zap.Logger) *Explorer {
	return &Explorer{
		store:        store,
		selector:     selection.New(store, logger),
		session:      chat.NewSession(logger),
		gateway:      gateway,
		sampleLimit:  sampleLimit,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// RecomputeSelection is the outer update tier: it evaluates the predicate
// only on a genuine change and resets the chat session exactly once per
// change. An unchanged predicate (spurious re-submit) returns the active
// selection untouched. An invalid predicate leaves both the previous
// selection and the transcript intact.
func (e *Explorer) RecomputeSelection(predicate string) (*models.Selection, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.selector.HasChanged(predicate) {
		return e.selector.Active(), false, nil
	}

	sel, err := e.selector.Select(predicate)
	if err != nil {
		return e.selector.Active(), false, err
	}

	e.session.OnNewSelection(predicate)

	return sel, true, nil
}

// HandleChatTurn is the inner update tier: one user turn against the
// active selection. The user message is appended before the gateway call
// is dispatched; the assistant slot is then filled with the reply or with
// the failure detail, so the transcript records every turn including
// failed ones. The dataset and active selection are read-only inputs here.
func (e *Explorer) HandleChatTurn(ctx context.Context, userContent, modelID string) ([]models.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel := e.selector.Active()
	if sel == nil {
		return nil, models.ErrNoSelection
	}

	if modelID == "" {
		modelID = e.defaultModel
	}

	systemContext := prompt.Build(sel, e.sampleLimit)

	e.session.AppendUser(userContent)

	reply, err := e.gateway.Send(ctx, systemContext, userContent, modelID)
	switch {
	case errors.Is(err, models.ErrNotConfigured):
		e.session.AppendAssistant(notConfiguredNotice)
	case err != nil:
		e.logger.Warn("Assistant call failed",
			zap.String("model", modelID),
			zap.Error(err))
		e.session.AppendAssistant(fmt.Sprintf("Error: %v", err))
	default:
		e.session.AppendAssistant(reply)
	}

	return e.session.Messages(), nil
}

// ClearChat empties the transcript on explicit user request, without
// waiting for a selection change.
func (e *Explorer) ClearChat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Clear()
}

// Transcript returns the current conversation in append order.
func (e *Explorer) Transcript() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Messages()
}

// ActiveSelection returns the current selection, or nil before the first
// successful predicate.
func (e *Explorer) ActiveSelection() *models.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selector.Active()
}

// SessionID returns the chat session identifier.
func (e *Explorer) SessionID() string {
	return e.session.ID()
}

// Store returns the underlying dataset store.
func (e *Explorer) Store() *dataset.Store {
	return e.store
}
