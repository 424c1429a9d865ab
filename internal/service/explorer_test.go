package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"atlas-service/internal/dataset"
	"atlas-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCSV = `description,Rating,projection_x,projection_y,neighbors
"Noisy room and rude staff",2,0.1,0.2,[]
"Amazing pool and breakfast",4,0.3,-0.4,[]
"Best stay of our trip",5,-0.5,0.6,[]
`

// fakeGateway records calls and returns a canned reply or error.
type fakeGateway struct {
	reply    string
	err      error
	calls    int
	lastCtx  string
	lastUser string
	lastMod  string
}

func (f *fakeGateway) Send(ctx context.Context, systemContext, userContent, modelID string) (string, error) {
	f.calls++
	f.lastCtx = systemContext
	f.lastUser = userContent
	f.lastMod = modelID
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newExplorer(t *testing.T, gw Gateway) *Explorer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))
	store, err := dataset.Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewExplorer(store, gw, 20, "default-model", zap.NewNop())
}

func TestRecomputeSelection(t *testing.T) {
	e := newExplorer(t, &fakeGateway{reply: "ok"})

	sel, changed, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, sel.Rows, 2)

	mean, ok := sel.MeanRating()
	require.True(t, ok)
	assert.InDelta(t, 4.5, mean, 1e-9)
}

func TestRecomputeSelectionUnchangedPredicate(t *testing.T) {
	gw := &fakeGateway{reply: "the pool"}
	e := newExplorer(t, gw)

	_, changed, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)
	require.True(t, changed)

	_, err = e.HandleChatTurn(context.Background(), "what do reviewers like?", "")
	require.NoError(t, err)
	require.Len(t, e.Transcript(), 2)

	// Spurious re-submit of the identical predicate: no reset.
	_, changed, err = e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, e.Transcript(), 2)
}

func TestRecomputeSelectionChangeResetsChat(t *testing.T) {
	gw := &fakeGateway{reply: "the pool"}
	e := newExplorer(t, gw)

	_, _, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)

	msgs, err := e.HandleChatTurn(context.Background(), "what do reviewers like?", "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "what do reviewers like?", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "the pool", msgs[1].Content)

	// New predicate clears the transcript before the next turn.
	_, changed, err := e.RecomputeSelection(`"Rating" < 2`)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, e.Transcript())
}

func TestRecomputeSelectionInvalidPredicate(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e := newExplorer(t, gw)

	first, _, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)

	_, err = e.HandleChatTurn(context.Background(), "hi", "")
	require.NoError(t, err)

	// Invalid predicate: previous selection and transcript both survive.
	sel, changed, err := e.RecomputeSelection(`bogus_column > 1`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidPredicate))
	assert.False(t, changed)
	assert.Same(t, first, sel)
	assert.Len(t, e.Transcript(), 2)
}

func TestHandleChatTurnNoSelection(t *testing.T) {
	e := newExplorer(t, &fakeGateway{reply: "ok"})

	_, err := e.HandleChatTurn(context.Background(), "hello", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNoSelection))
	assert.Empty(t, e.Transcript())
}

func TestHandleChatTurnContextScopedToSelection(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e := newExplorer(t, gw)

	_, _, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)

	_, err = e.HandleChatTurn(context.Background(), "summarize", "custom-model")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, "custom-model", gw.lastMod)
	assert.Equal(t, "summarize", gw.lastUser)
	assert.Contains(t, gw.lastCtx, "Total reviews selected: 2")
	assert.Contains(t, gw.lastCtx, "Amazing pool and breakfast")
	assert.NotContains(t, gw.lastCtx, "Noisy room and rude staff")
}

func TestHandleChatTurnDefaultModel(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e := newExplorer(t, gw)

	_, _, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)

	_, err = e.HandleChatTurn(context.Background(), "summarize", "")
	require.NoError(t, err)
	assert.Equal(t, "default-model", gw.lastMod)
}

func TestHandleChatTurnGatewayFailure(t *testing.T) {
	gw := &fakeGateway{err: fmt.Errorf("%w: status 500: upstream broke", models.ErrGatewayFailure)}
	e := newExplorer(t, gw)

	_, _, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)

	msgs, err := e.HandleChatTurn(context.Background(), "question", "")
	require.NoError(t, err)

	// The failed turn stays in the transcript: question plus the failure
	// detail rendered as the assistant reply.
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "upstream broke")
}

func TestHandleChatTurnNotConfigured(t *testing.T) {
	gw := &fakeGateway{err: models.ErrNotConfigured}
	e := newExplorer(t, gw)

	_, _, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)

	msgs, err := e.HandleChatTurn(context.Background(), "question", "")
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, notConfiguredNotice, msgs[1].Content)
}

func TestClearChat(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e := newExplorer(t, gw)

	_, _, err := e.RecomputeSelection(`"Rating" >= 4`)
	require.NoError(t, err)
	_, err = e.HandleChatTurn(context.Background(), "question", "")
	require.NoError(t, err)
	require.Len(t, e.Transcript(), 2)

	e.ClearChat()
	assert.Empty(t, e.Transcript())

	// The selection is untouched by a chat clear.
	require.NotNil(t, e.ActiveSelection())
	assert.Len(t, e.ActiveSelection().Rows, 2)
}
