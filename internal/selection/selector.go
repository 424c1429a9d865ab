package selection

import (
	"time"

	"atlas-service/internal/dataset"
	"atlas-service/internal/models"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Selector evaluates predicates against the dataset and tracks the single
// active selection. Results are memoised by exact predicate string, so
// re-submitting a recently seen predicate skips the query entirely.
type Selector struct {
	store  *dataset.Store
	memo   *cache.Cache
	active *models.Selection
	logger *zap.Logger
}

// New creates a selector over the given dataset store.
func New(store *dataset.Store, logger *zap.Logger) *Selector {
	return &Selector{
		store:  store,
		memo:   cache.New(30*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// HasChanged reports whether the predicate differs from the active
// selection's predicate, by exact string equality. This comparison is the
// sole trigger for chat-session resets: a re-submitted identical predicate
// must not disturb conversation state.
func (s *Selector) HasChanged(predicate string) bool {
	if s.active == nil {
		return true
	}
	return s.active.Predicate != predicate
}

// Select evaluates the predicate and makes the result the active
// selection. On evaluation failure the previous selection stays active and
// the error matches models.ErrInvalidPredicate.
func (s *Selector) Select(predicate string) (*models.Selection, error) {
	if x, found := s.memo.Get(predicate); found {
		sel := x.(*models.Selection)
		s.active = sel
		s.logger.Debug("Selection served from cache",
			zap.String("predicate", predicate),
			zap.Int("rows", len(sel.Rows)))
		return sel, nil
	}

	ids, err := s.store.QueryIDs(predicate)
	if err != nil {
		return nil, err
	}

	rows := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, s.store.Record(id))
	}

	sel := &models.Selection{Predicate: predicate, Rows: rows}
	s.memo.Set(predicate, sel, cache.DefaultExpiration)
	s.active = sel

	s.logger.Info("Selection updated",
		zap.String("predicate", predicate),
		zap.Int("rows", len(rows)))

	return sel, nil
}

// Active returns the current selection, or nil before the first
// successful Select. At most one selection is active at a time.
func (s *Selector) Active() *models.Selection {
	return s.active
}
