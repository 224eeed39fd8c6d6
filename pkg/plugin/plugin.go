package plugin

import (
	"context"

	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/schema"
)

// Input carries everything a plugin may consume for one invocation.
//
// Session is a snapshot scoped to the current subscriber: plugins may read
// and write its context vars, and the runtime merges successful writes back.
// Plugins have no access to the block graph.
type Input struct {
	Block          *domain.Block
	Session        *domain.Session
	ConversationID string

	// Args are the block-level arguments merged over the plugin's declared
	// defaults (block overrides win).
	Args map[string]any
}

// Plugin is a named capability that computes an envelope programmatically,
// possibly via external services. Implementations must be safe for
// concurrent invocations across subscribers: no request-scoped mutable
// state outside the Input.
type Plugin interface {
	// Name is the registry key referenced by block plugin messages.
	Name() string

	// Schema declares the plugin's settings (name, type, default).
	Schema() schema.Schema

	// Process computes the envelope for a block. It must honor ctx
	// cancellation: the runtime abandons calls that outlive their deadline.
	Process(ctx context.Context, in Input) (domain.Envelope, error)
}

// FallbackMessageSetting is the conventional setting name a plugin declares
// to customize the envelope sent when it fails or times out.
const FallbackMessageSetting = "fallback_message"

// Func adapts a function to the Plugin interface.
type Func struct {
	PluginName     string
	SettingsSchema schema.Schema
	ProcessFunc    func(ctx context.Context, in Input) (domain.Envelope, error)
}

// Name implements Plugin.
func (f Func) Name() string { return f.PluginName }

// Schema implements Plugin.
func (f Func) Schema() schema.Schema { return f.SettingsSchema }

// Process implements Plugin.
func (f Func) Process(ctx context.Context, in Input) (domain.Envelope, error) {
	return f.ProcessFunc(ctx, in)
}
