package ports

import (
	"context"

	"github.com/wattlebot/wattle/pkg/domain"
)

// BlockSource defines how the engine retrieves block definitions.
// The graph is owned and edited by the external admin console; the engine
// only ever reads it, and must tolerate it changing between turns.
type BlockSource interface {
	// Block retrieves a block by ID.
	// Returns domain.ErrBlockNotFound if the ID does not exist.
	Block(ctx context.Context, id string) (*domain.Block, error)

	// EntryBlocks returns all blocks with StartsConversation set, optionally
	// restricted to a category (empty category means all).
	EntryBlocks(ctx context.Context, category string) ([]*domain.Block, error)

	// ContextVars returns the declared context variables, used to decide
	// which captured vars are permanent.
	ContextVars(ctx context.Context) ([]domain.ContextVar, error)
}
