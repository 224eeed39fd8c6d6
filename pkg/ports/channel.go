package ports

import (
	"context"

	"github.com/wattlebot/wattle/pkg/domain"
)

// ChannelAdapter is the outbound delivery contract. The engine hands over
// envelopes in generation order and does not depend on channel-specific
// fields beyond the generic envelope shape.
type ChannelAdapter interface {
	Send(ctx context.Context, subscriberID string, envelope domain.Envelope) error
}

// ChannelFunc adapts a function to the ChannelAdapter interface.
type ChannelFunc func(ctx context.Context, subscriberID string, envelope domain.Envelope) error

// Send implements ChannelAdapter.
func (f ChannelFunc) Send(ctx context.Context, subscriberID string, envelope domain.Envelope) error {
	return f(ctx, subscriberID, envelope)
}
