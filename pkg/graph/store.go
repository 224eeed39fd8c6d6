package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/ports"
)

// Store is the engine's read-only view over the block graph. Blocks are kept
// as an arena indexed by ID with successor lists stored as ID references, so
// the view stays cheap to revalidate against the externally owned graph.
//
// A dangling reference is a data-integrity error: it is logged and the edge
// is dropped, never silently followed and never fatal to the conversation.
type Store struct {
	source ports.BlockSource
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger configures the logger used for integrity reports.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a graph view over a block source.
func NewStore(source ports.BlockSource, opts ...Option) *Store {
	s := &Store{
		source: source,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Block retrieves a block by ID.
func (s *Store) Block(ctx context.Context, id string) (*domain.Block, error) {
	block, err := s.source.Block(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load block %s: %w", id, err)
	}
	return block, nil
}

// Successors returns a block's successor blocks in declaration order, which
// is the priority order for trigger matching. Dangling IDs are reported and
// skipped.
func (s *Store) Successors(ctx context.Context, block *domain.Block) ([]*domain.Block, error) {
	out := make([]*domain.Block, 0, len(block.NextBlocks))
	for _, id := range block.NextBlocks {
		next, err := s.source.Block(ctx, id)
		if errors.Is(err, domain.ErrBlockNotFound) {
			s.logger.Error("dangling successor reference",
				"block_id", block.ID,
				"missing_id", id,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load successor %s of %s: %w", id, block.ID, err)
		}
		out = append(out, next)
	}
	return out, nil
}

// EntryBlocks returns the blocks eligible to start a conversation.
func (s *Store) EntryBlocks(ctx context.Context, category string) ([]*domain.Block, error) {
	blocks, err := s.source.EntryBlocks(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load entry blocks: %w", err)
	}
	return blocks, nil
}

// Attached returns the block chained after the given one, or nil when none
// is attached. A dangling attachment is reported and treated as none.
func (s *Store) Attached(ctx context.Context, block *domain.Block) (*domain.Block, error) {
	if block.AttachedBlock == "" {
		return nil, nil
	}
	attached, err := s.source.Block(ctx, block.AttachedBlock)
	if errors.Is(err, domain.ErrBlockNotFound) {
		s.logger.Error("dangling attached block reference",
			"block_id", block.ID,
			"missing_id", block.AttachedBlock,
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load attached block of %s: %w", block.ID, err)
	}
	return attached, nil
}

// IsPermanentVar reports whether a context variable is declared permanent.
func (s *Store) IsPermanentVar(ctx context.Context, name string) bool {
	vars, err := s.source.ContextVars(ctx)
	if err != nil {
		s.logger.Warn("unable to load context var declarations", "err", err)
		return false
	}
	for _, v := range vars {
		if v.Name == name {
			return v.Permanent
		}
	}
	return false
}
