// Package script provides a plugin that evaluates a JavaScript expression
// against the conversation context to compute a reply.
//
// The script sees a read/write `context` object with `vars`, plus the
// incoming `text` and `payload`. Its completion value (or the value of
// `reply`, if assigned) becomes the envelope text; `context.vars` writes are
// persisted back to the conversation.
package script

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/mitchellh/mapstructure"

	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/plugin"
	"github.com/wattlebot/wattle/pkg/schema"
)

// Name is the registry key of this plugin.
const Name = "script"

type settings struct {
	Code            string `mapstructure:"code"`
	FallbackMessage string `mapstructure:"fallback_message"`
}

// Plugin evaluates authored JS expressions. Each invocation runs in a fresh
// goja runtime: scripts share nothing across subscribers.
type Plugin struct{}

// New creates the script plugin.
func New() *Plugin { return &Plugin{} }

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Schema implements plugin.Plugin.
func (p *Plugin) Schema() schema.Schema {
	return schema.Schema{
		{Name: "code", Label: "Code", Type: schema.TypeTextarea},
		{Name: plugin.FallbackMessageSetting, Label: "Fallback Message", Type: schema.TypeText},
	}
}

// Process implements plugin.Plugin.
func (p *Plugin) Process(ctx context.Context, in plugin.Input) (domain.Envelope, error) {
	var cfg settings
	if err := mapstructure.WeakDecode(in.Args, &cfg); err != nil {
		return domain.Envelope{}, fmt.Errorf("script: decode settings: %w", err)
	}
	if cfg.Code == "" {
		return domain.Envelope{}, fmt.Errorf("script: no code configured")
	}

	vm := goja.New()
	// Abandon the script when the invocation deadline fires.
	watchdog := make(chan struct{})
	defer close(watchdog)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-watchdog:
		}
	}()

	scriptCtx := map[string]any{"vars": in.Session.Context.Vars}
	if err := vm.Set("context", scriptCtx); err != nil {
		return domain.Envelope{}, fmt.Errorf("script: bind context: %w", err)
	}
	if err := vm.Set("text", in.Session.Context.Text); err != nil {
		return domain.Envelope{}, fmt.Errorf("script: bind text: %w", err)
	}
	if err := vm.Set("payload", in.Session.Context.Payload); err != nil {
		return domain.Envelope{}, fmt.Errorf("script: bind payload: %w", err)
	}

	value, err := vm.RunString(cfg.Code)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("script: evaluate: %w", err)
	}

	// Persist context.vars mutations made by the script.
	if exported, ok := vm.Get("context").Export().(map[string]any); ok {
		if vars, ok := exported["vars"].(map[string]any); ok {
			in.Session.Context.Vars = vars
		}
	}

	reply := vm.Get("reply")
	if reply != nil && !goja.IsUndefined(reply) && !goja.IsNull(reply) {
		value = reply
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return domain.Envelope{}, fmt.Errorf("script: no reply produced")
	}

	return domain.NewTextEnvelope(value.String()), nil
}
