package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
)

// DefaultTimeout bounds a plugin invocation. Plugin calls frequently perform
// outbound network I/O (LLMs, search), so the bound is generous but hard.
const DefaultTimeout = 30 * time.Second

// GenericFailureText is sent when a plugin fails and declares no
// fallback_message.
const GenericFailureText = "Something went wrong. Please try again later."

// Runtime resolves and invokes plugins for blocks whose message is a plugin
// descriptor, enforcing settings resolution, timeouts, and
// fallback-on-error.
type Runtime struct {
	registry *Registry
	timeout  time.Duration
	perName  map[string]time.Duration
	logger   *slog.Logger
}

// RuntimeOption configures the Runtime.
type RuntimeOption func(*Runtime)

// WithTimeout sets the default invocation timeout.
func WithTimeout(d time.Duration) RuntimeOption {
	return func(rt *Runtime) {
		rt.timeout = d
	}
}

// WithPluginTimeout overrides the timeout for one plugin.
func WithPluginTimeout(name string, d time.Duration) RuntimeOption {
	return func(rt *Runtime) {
		rt.perName[name] = d
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// NewRuntime creates a Runtime over a registry.
func NewRuntime(registry *Registry, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		registry: registry,
		timeout:  DefaultTimeout,
		perName:  make(map[string]time.Duration),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

type processResult struct {
	env  domain.Envelope
	sess *domain.Session
	err  error
}

// Process invokes the plugin referenced by the block's message.
//
// The plugin runs against a session snapshot under a hard deadline. On
// success, context var writes are merged back into sess. On error or
// timeout the snapshot is discarded (an abandoned call cannot race the
// turn) and the fallback envelope is returned instead; Process only
// returns an error for configuration problems the caller may want to
// surface differently (unknown plugin, invalid message).
func (rt *Runtime) Process(ctx context.Context, block *domain.Block, sess *domain.Session, conversationID string) (domain.Envelope, error) {
	def := block.Message.Plugin
	if def == nil {
		return domain.Envelope{}, fmt.Errorf("block %s: %w: not a plugin message", block.ID, domain.ErrInvalidMessage)
	}

	p, err := rt.registry.Find(def.Name)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("block %s: %w", block.ID, err)
	}

	args := p.Schema().Merge(def.Args)
	if err := p.Schema().Validate(args); err != nil {
		// A bad setting is a configuration error: reported, not fatal.
		rt.logger.Warn("plugin settings failed validation",
			"plugin", def.Name,
			"block_id", block.ID,
			"err", err,
		)
	}

	timeout := rt.timeout
	if d, ok := rt.perName[def.Name]; ok {
		timeout = d
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	in := Input{
		Block:          block,
		Session:        sess.Clone(),
		ConversationID: conversationID,
		Args:           args,
	}

	// The result channel is buffered so an abandoned call can still
	// complete and be collected by the GC without blocking.
	done := make(chan processResult, 1)
	go func() {
		env, err := p.Process(callCtx, in)
		done <- processResult{env: env, sess: in.Session, err: err}
	}()

	select {
	case <-callCtx.Done():
		rt.logger.Error("plugin invocation timed out",
			"plugin", def.Name,
			"block_id", block.ID,
			"timeout", timeout,
			"err", fmt.Errorf("plugin %s: %w", def.Name, domain.ErrPluginTimeout),
		)
		return rt.fallback(args), nil
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
				res.err = fmt.Errorf("plugin %s: %w", def.Name, domain.ErrPluginTimeout)
			}
			if errors.Is(res.err, domain.ErrPluginTimeout) {
				rt.logger.Error("plugin invocation timed out",
					"plugin", def.Name,
					"block_id", block.ID,
					"timeout", timeout,
					"err", res.err,
				)
			} else {
				rt.logger.Error("plugin invocation failed",
					"plugin", def.Name,
					"block_id", block.ID,
					"err", res.err,
				)
			}
			return rt.fallback(args), nil
		}
		if !res.env.Valid() {
			rt.logger.Error("plugin returned malformed envelope",
				"plugin", def.Name,
				"block_id", block.ID,
				"format", string(res.env.Format),
			)
			return rt.fallback(args), nil
		}
		mergeContextWrites(sess, res.sess)
		return res.env, nil
	}
}

// fallback renders the plugin-declared fallback message, or the generic
// failure text when none is declared.
func (rt *Runtime) fallback(args map[string]any) domain.Envelope {
	if msg, ok := args[FallbackMessageSetting].(string); ok && msg != "" {
		return domain.NewTextEnvelope(msg)
	}
	return domain.NewTextEnvelope(GenericFailureText)
}

// mergeContextWrites copies the snapshot's context vars back into the live
// session. Only vars are merged: plugins own no other session state.
func mergeContextWrites(live, snapshot *domain.Session) {
	for k, v := range snapshot.Context.Vars {
		live.Context.Vars[k] = v
	}
	for k, v := range snapshot.PermanentVars {
		live.PermanentVars[k] = v
	}
}
