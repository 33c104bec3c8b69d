package ports

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
)

// HistoryStore archives chain transition histories for post-mortem diagnostics.
// It is never consulted on the dispatch path.
type HistoryStore interface {
	// Save replaces the archived history of a chain.
	Save(ctx context.Context, id domain.ChainID, entries []domain.HistoryEntry) error

	// Load retrieves the archived history of a chain.
	// Returns domain.ErrHistoryNotFound if nothing is archived.
	Load(ctx context.Context, id domain.ChainID) ([]domain.HistoryEntry, error)

	// Delete removes the archived history of a chain.
	Delete(ctx context.Context, id domain.ChainID) error

	// List returns the chains with an archived history.
	List(ctx context.Context) ([]domain.ChainID, error)
}
