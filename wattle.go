package wattle

import (
	"context"
	"fmt"
	"path/filepath"

	"log/slog"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/internal/validator"
	"github.com/wattlebot/wattle/pkg/adapters/flowfile"
	"github.com/wattlebot/wattle/pkg/adapters/memory"
	"github.com/wattlebot/wattle/pkg/bot"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/graph"
	"github.com/wattlebot/wattle/pkg/matcher"
	"github.com/wattlebot/wattle/pkg/plugin"
	"github.com/wattlebot/wattle/pkg/ports"
	"github.com/wattlebot/wattle/pkg/render"
	"github.com/wattlebot/wattle/pkg/session"
	"github.com/wattlebot/wattle/pkg/session/middleware"
)

// Bot is the high-level entry point for the wattle library. It wires the
// block graph, matcher, renderer, plugin runtime, and session manager into
// a single conversation engine.
type Bot struct {
	coordinator *bot.Coordinator
	sessions    *session.Manager
	graph       *graph.Store
	registry    *plugin.Registry
	blocks      ports.BlockSource
	logger      *slog.Logger
	Name        string

	// construction state
	store           ports.SessionStore
	locker          ports.DistributedLocker
	content         ports.ContentStore
	attachments     ports.AttachmentResolver
	settings        ports.SettingsProvider
	hooks           domain.LifecycleHooks
	channel         ports.ChannelAdapter
	coordinatorOpts []bot.Option
	renderOpts      []render.Option
	runtimeOpts     []plugin.RuntimeOption
	storeMiddleware []middleware.Middleware
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithBlockSource injects a block source, bypassing the flow file loader.
func WithBlockSource(source ports.BlockSource) Option {
	return func(b *Bot) {
		b.blocks = source
	}
}

// WithSessionStore overrides the default in-memory session store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(b *Bot) {
		b.store = store
	}
}

// WithSessionMiddleware wraps the session store with persistence
// middlewares (encryption at rest, PII redaction), first one outermost.
func WithSessionMiddleware(mws ...middleware.Middleware) Option {
	return func(b *Bot) {
		b.storeMiddleware = append(b.storeMiddleware, mws...)
	}
}

// WithDistributedLocker enables cross-replica turn serialization.
func WithDistributedLocker(locker ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.locker = locker
	}
}

// WithContentStore wires the content store used by list/carousel blocks and
// retrieval plugins.
func WithContentStore(store ports.ContentStore) Option {
	return func(b *Bot) {
		b.content = store
	}
}

// WithAttachmentResolver wires attachment ID resolution.
func WithAttachmentResolver(resolver ports.AttachmentResolver) Option {
	return func(b *Bot) {
		b.attachments = resolver
	}
}

// WithSettings injects externally persisted settings (contact info etc).
func WithSettings(settings ports.SettingsProvider) Option {
	return func(b *Bot) {
		b.settings = settings
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithChannel enables push delivery of produced envelopes.
func WithChannel(ch ports.ChannelAdapter) Option {
	return func(b *Bot) {
		b.channel = ch
	}
}

// WithPlugins registers plugins with the bot's registry.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(b *Bot) {
		for _, p := range plugins {
			b.registry.Register(p)
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithGlobalFallbackBlock routes unmatched events into the given block.
func WithGlobalFallbackBlock(blockID string) Option {
	return func(b *Bot) {
		b.coordinatorOpts = append(b.coordinatorOpts, bot.WithGlobalFallbackBlock(blockID))
	}
}

// WithGlobalFallbackTexts answers unmatched events with one of the texts.
func WithGlobalFallbackTexts(texts ...string) Option {
	return func(b *Bot) {
		b.coordinatorOpts = append(b.coordinatorOpts, bot.WithGlobalFallbackTexts(texts...))
	}
}

// WithMaxChainDepth bounds attached-block chaining per turn.
func WithMaxChainDepth(depth int) Option {
	return func(b *Bot) {
		b.coordinatorOpts = append(b.coordinatorOpts, bot.WithMaxChainDepth(depth))
	}
}

// WithRenderCaps overrides the quick-reply and button display caps.
func WithRenderCaps(maxQuickReplies, maxButtons int) Option {
	return func(b *Bot) {
		b.renderOpts = append(b.renderOpts, render.WithCaps(maxQuickReplies, maxButtons))
	}
}

// WithPluginTimeout sets the default plugin execution timeout.
func WithPluginTimeout(opts ...plugin.RuntimeOption) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, opts...)
	}
}

// New initializes a Bot. By default it loads the block graph from a YAML
// flow file at flowPath and validates it; WithBlockSource skips the loader
// (flowPath may then be empty).
func New(flowPath string, opts ...Option) (*Bot, error) {
	b := &Bot{
		registry: plugin.NewRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logging.NewNop()
	}

	if b.blocks == nil {
		if flowPath == "" {
			return nil, fmt.Errorf("flowPath is required when no custom block source is provided")
		}

		file, err := flowfile.Load(flowPath)
		if err != nil {
			return nil, err
		}

		report := validator.Validate(file.Blocks)
		for _, w := range report.Warnings {
			b.logger.Warn("flow warning", "detail", w)
		}
		if err := report.Err(); err != nil {
			return nil, fmt.Errorf("flow %s: %w", flowPath, err)
		}

		source, err := file.BlockSource()
		if err != nil {
			return nil, err
		}
		b.blocks = source
		if b.settings == nil {
			b.settings = file.Settings()
		}
		b.Name = file.Name
		if b.Name == "" {
			b.Name = filepath.Base(flowPath)
		}
	}

	if b.store == nil {
		b.store = memory.NewSessionStore()
	}
	if len(b.storeMiddleware) > 0 {
		b.store = middleware.Chain(b.store, b.storeMiddleware...)
	}

	if b.Name != "" {
		b.logger = b.logger.With("flow", b.Name)
	}

	sessionOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(b.locker))
	}
	b.sessions = session.NewManager(b.store, sessionOpts...)

	b.graph = graph.NewStore(b.blocks, graph.WithLogger(b.logger))

	renderOpts := append([]render.Option{
		render.WithLogger(b.logger),
	}, b.renderOpts...)
	if b.content != nil {
		renderOpts = append(renderOpts, render.WithContentStore(b.content))
	}
	if b.attachments != nil {
		renderOpts = append(renderOpts, render.WithAttachmentResolver(b.attachments))
	}
	if b.settings != nil {
		renderOpts = append(renderOpts, render.WithSettings(b.settings))
	}
	renderer := render.New(renderOpts...)

	runtimeOpts := append([]plugin.RuntimeOption{plugin.WithLogger(b.logger)}, b.runtimeOpts...)
	runtime := plugin.NewRuntime(b.registry, runtimeOpts...)

	coordinatorOpts := append([]bot.Option{
		bot.WithLogger(b.logger),
		bot.WithHooks(b.hooks),
	}, b.coordinatorOpts...)
	if b.channel != nil {
		coordinatorOpts = append(coordinatorOpts, bot.WithChannel(b.channel))
	}

	b.coordinator = bot.New(
		b.sessions,
		b.graph,
		matcher.New(b.graph, matcher.WithLogger(b.logger)),
		renderer,
		runtime,
		coordinatorOpts...,
	)

	return b, nil
}

// Handle processes one incoming event and returns the produced envelopes.
func (b *Bot) Handle(ctx context.Context, ev domain.Event) ([]domain.Envelope, error) {
	return b.coordinator.Handle(ctx, ev)
}

// Reset ends the subscriber's conversation, keeping the subscriber scope.
func (b *Bot) Reset(ctx context.Context, subscriberID string) error {
	return b.coordinator.Reset(ctx, subscriberID)
}

// Sessions exposes session management (load, delete, list).
func (b *Bot) Sessions() *session.Manager {
	return b.sessions
}

// Graph exposes the read-side graph view.
func (b *Bot) Graph() *graph.Store {
	return b.graph
}

// Plugins exposes the plugin registry for late registration.
func (b *Bot) Plugins() *plugin.Registry {
	return b.registry
}
