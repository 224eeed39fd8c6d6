package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wattlebot/wattle/pkg/domain"
)

// BlockSource implements ports.BlockSource over an in-memory block set.
// Entry blocks keep their registration order, which matching relies on.
//
// Replace swaps the whole graph atomically, mirroring how an external editor
// publishes a new flow version between turns.
type BlockSource struct {
	mu      sync.RWMutex
	blocks  map[string]*domain.Block
	order   []string // registration order of entry blocks
	ctxVars []domain.ContextVar
}

// NewBlockSource builds a source from block definitions. Duplicate IDs and
// blank IDs are rejected.
func NewBlockSource(blocks []domain.Block, ctxVars ...domain.ContextVar) (*BlockSource, error) {
	s := &BlockSource{}
	if err := s.Replace(blocks, ctxVars...); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace atomically installs a new block set.
func (s *BlockSource) Replace(blocks []domain.Block, ctxVars ...domain.ContextVar) error {
	index := make(map[string]*domain.Block, len(blocks))
	var order []string
	for i := range blocks {
		b := blocks[i]
		if b.ID == "" {
			return fmt.Errorf("block %q has no id", b.Name)
		}
		if _, dup := index[b.ID]; dup {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		index[b.ID] = &b
		if b.StartsConversation {
			order = append(order, b.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = index
	s.order = order
	s.ctxVars = append([]domain.ContextVar(nil), ctxVars...)
	return nil
}

// Block retrieves a block by ID.
func (s *BlockSource) Block(ctx context.Context, id string) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBlockNotFound, id)
	}
	cp := *b
	return &cp, nil
}

// EntryBlocks returns conversation-starting blocks in registration order.
func (s *BlockSource) EntryBlocks(ctx context.Context, category string) ([]*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Block
	for _, id := range s.order {
		b := s.blocks[id]
		if category != "" && b.Category != category {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

// ContextVars returns the declared context variables.
func (s *BlockSource) ContextVars(ctx context.Context) ([]domain.ContextVar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ContextVar(nil), s.ctxVars...), nil
}
