package chat

import (
	"testing"

	"atlas-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOnNewSelectionResetsOnce(t *testing.T) {
	s := NewSession(zap.NewNop())

	s.OnNewSelection(`"Rating" >= 4`)
	s.AppendUser("What do reviewers like?")
	s.AppendAssistant("The pool and the breakfast.")
	require.Len(t, s.Messages(), 2)

	// Same predicate: idempotent, transcript untouched.
	s.OnNewSelection(`"Rating" >= 4`)
	assert.Len(t, s.Messages(), 2)

	// Different predicate: transcript cleared before anything new.
	s.OnNewSelection(`"Rating" < 2`)
	assert.Empty(t, s.Messages())

	key, ok := s.SelectionKey()
	require.True(t, ok)
	assert.Equal(t, `"Rating" < 2`, key)
}

func TestAppendOrder(t *testing.T) {
	s := NewSession(zap.NewNop())
	s.OnNewSelection(`"Rating" >= 4`)

	s.AppendUser("first question")
	s.AppendAssistant("first answer")
	s.AppendUser("second question")
	s.AppendAssistant("second answer")

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, models.RoleUser, msgs[2].Role)
	assert.Equal(t, "second answer", msgs[3].Content)
}

func TestClearKeepsSelectionKey(t *testing.T) {
	s := NewSession(zap.NewNop())
	s.OnNewSelection(`"Rating" >= 4`)
	s.AppendUser("hello")

	s.Clear()

	assert.Empty(t, s.Messages())
	key, ok := s.SelectionKey()
	require.True(t, ok)
	assert.Equal(t, `"Rating" >= 4`, key)
}

func TestEmptySession(t *testing.T) {
	s := NewSession(zap.NewNop())

	assert.Empty(t, s.Messages())
	_, ok := s.SelectionKey()
	assert.False(t, ok)
	assert.NotEmpty(t, s.ID())
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewSession(zap.NewNop())
	s.OnNewSelection("p")
	s.AppendUser("hello")

	msgs := s.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hello", s.Messages()[0].Content)
}
