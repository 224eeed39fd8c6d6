package bot

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/graph"
	"github.com/wattlebot/wattle/pkg/matcher"
	"github.com/wattlebot/wattle/pkg/plugin"
	"github.com/wattlebot/wattle/pkg/ports"
	"github.com/wattlebot/wattle/pkg/render"
	"github.com/wattlebot/wattle/pkg/session"
)

// defaultMaxChainDepth bounds attached-block chaining within a single turn.
// A cycle of attached blocks would otherwise loop forever.
const defaultMaxChainDepth = 20

// Coordinator drives one conversation turn end to end: it serializes the
// turn under the subscriber lock, matches the event against the graph,
// executes the matched block and its attached chain, captures variables,
// advances the session cursor, and returns the ordered envelope batch.
type Coordinator struct {
	sessions *session.Manager
	graph    *graph.Store
	matcher  *matcher.Matcher
	renderer *render.Renderer
	plugins  *plugin.Runtime

	channel ports.ChannelAdapter // optional push delivery
	hooks   domain.LifecycleHooks
	logger  *slog.Logger

	maxChainDepth int

	// Global fallback: a block to execute, or plain texts to pick from,
	// when nothing in the graph matches.
	fallbackBlockID string
	fallbackTexts   []string

	pick func(n int) int
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger configures structured logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithChannel enables push delivery: every produced envelope is also handed
// to the adapter, in order, after the session is saved.
func WithChannel(ch ports.ChannelAdapter) Option {
	return func(c *Coordinator) {
		c.channel = ch
	}
}

// WithHooks installs lifecycle callbacks. Hooks run synchronously on the
// turn path.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Coordinator) {
		c.hooks = hooks
	}
}

// WithMaxChainDepth overrides the attached-block chain bound.
func WithMaxChainDepth(depth int) Option {
	return func(c *Coordinator) {
		if depth > 0 {
			c.maxChainDepth = depth
		}
	}
}

// WithGlobalFallbackBlock routes unmatched events into the given block.
func WithGlobalFallbackBlock(blockID string) Option {
	return func(c *Coordinator) {
		c.fallbackBlockID = blockID
	}
}

// WithGlobalFallbackTexts answers unmatched events with one of the given
// texts. Ignored when a global fallback block is configured.
func WithGlobalFallbackTexts(texts ...string) Option {
	return func(c *Coordinator) {
		c.fallbackTexts = texts
	}
}

// WithPicker overrides random selection, for deterministic tests.
func WithPicker(pick func(n int) int) Option {
	return func(c *Coordinator) {
		c.pick = pick
	}
}

// New wires a Coordinator over its collaborators.
func New(sessions *session.Manager, g *graph.Store, m *matcher.Matcher, r *render.Renderer, plugins *plugin.Runtime, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:      sessions,
		graph:         g,
		matcher:       m,
		renderer:      r,
		plugins:       plugins,
		logger:        logging.NewNop(),
		maxChainDepth: defaultMaxChainDepth,
		pick:          rand.Intn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one incoming event and returns the envelopes produced by
// the turn, in delivery order. The whole turn, chained blocks included, runs
// under the subscriber lock; concurrent events for the same subscriber are
// processed one at a time in arrival order.
func (c *Coordinator) Handle(ctx context.Context, ev domain.Event) ([]domain.Envelope, error) {
	if ev.SubscriberID == "" {
		return nil, fmt.Errorf("event has no subscriber id")
	}

	var envelopes []domain.Envelope
	err := c.sessions.WithLock(ctx, ev.SubscriberID, func(ctx context.Context) error {
		sess, err := c.sessions.LoadOrCreateLocked(ctx, ev.SubscriberID)
		if err != nil {
			return err
		}

		envelopes, err = c.turn(ctx, sess, ev)
		if err != nil {
			return err
		}

		return c.sessions.Store().Save(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	if c.channel != nil {
		for _, env := range envelopes {
			if err := c.channel.Send(ctx, ev.SubscriberID, env); err != nil {
				return envelopes, fmt.Errorf("channel delivery failed: %w", err)
			}
		}
	}

	return envelopes, nil
}

// turn runs the matching and execution pipeline for an already-locked session.
func (c *Coordinator) turn(ctx context.Context, sess *domain.Session, ev domain.Event) ([]domain.Envelope, error) {
	c.absorbEvent(sess, ev)

	// Pagination postbacks re-render the current list block at the carried
	// offset; they never re-enter matching.
	if skip, ok := domain.ParseViewMore(ev.Payload); ok {
		return c.viewMore(ctx, sess, skip)
	}

	result, err := c.matcher.Match(ctx, sess, ev)
	if err != nil {
		return nil, err
	}

	if result.Block == nil {
		envs, err := c.noMatch(ctx, sess, ev)
		if err != nil {
			return nil, err
		}
		c.fireTurnEnd(ctx, sess.SubscriberID, false, len(envs))
		return envs, nil
	}

	if result.Fallback {
		envs, err := c.localFallback(ctx, sess, result.Block)
		if err != nil {
			return nil, err
		}
		c.fireTurnEnd(ctx, sess.SubscriberID, true, len(envs))
		return envs, nil
	}

	sess.Context.Attempt = 0
	if sess.Status == domain.StatusIdle {
		sess.Status = domain.StatusAwaitingInput
		sess.ConversationID = uuid.NewString()
	}

	c.captureVars(ctx, sess, result.Block, ev)

	envs, err := c.executeChain(ctx, sess, result.Block)
	if err != nil {
		return nil, err
	}
	c.fireTurnEnd(ctx, sess.SubscriberID, true, len(envs))
	return envs, nil
}

// absorbEvent snapshots the event into the conversation context and applies
// profile side effects before matching.
func (c *Coordinator) absorbEvent(sess *domain.Session, ev domain.Event) {
	sess.Context.Text = ev.Text
	sess.Context.Payload = ev.Payload
	sess.Context.Channel = ev.Channel
	sess.Context.NLP = ev.NLP
	if ev.Coordinates != nil {
		loc := *ev.Coordinates
		sess.Context.UserLocation = &loc
	}

	if ev.User != (domain.UserProfile{}) {
		sess.User = ev.User
	}
	sess.AssignLabels(ev.Labels)

	// A detected language annotation updates the profile before matching so
	// language-gated flows see the fresh value.
	if ev.NLP != nil {
		for _, e := range ev.NLP.Entities {
			if e.Entity == "language" && e.Value != "" {
				sess.User.Language = e.Value
				break
			}
		}
	}
}

// viewMore re-renders the current block's list page at the requested offset.
// The offset travels in the postback payload, so a stale button from an old
// page still renders a coherent page.
func (c *Coordinator) viewMore(ctx context.Context, sess *domain.Session, skip int) ([]domain.Envelope, error) {
	if sess.Status != domain.StatusAwaitingInput || sess.CurrentBlock == "" {
		c.logger.Warn("pagination postback outside an active list", "subscriber_id", sess.SubscriberID)
		return nil, nil
	}

	block, err := c.graph.Block(ctx, sess.CurrentBlock)
	if err != nil {
		return nil, err
	}
	if block.Message.Kind() != domain.KindContent {
		c.logger.Warn("pagination postback at a non-list block",
			"subscriber_id", sess.SubscriberID,
			"block_id", block.ID,
		)
		return nil, nil
	}

	sess.Context.Skip[block.ID] = skip

	c.fireBlockEnter(ctx, sess.SubscriberID, block, false, false)
	env, err := c.renderer.Render(ctx, block, sess, false)
	if err != nil {
		return nil, err
	}
	c.fireBlockLeave(ctx, sess.SubscriberID, block)
	c.fireTurnEnd(ctx, sess.SubscriberID, true, 1)
	return []domain.Envelope{env}, nil
}

// noMatch handles an event nothing in the graph wants: an in-flight
// conversation with an exhausted retry budget ends, and the configured
// global fallback (if any) answers.
func (c *Coordinator) noMatch(ctx context.Context, sess *domain.Session, ev domain.Event) ([]domain.Envelope, error) {
	if sess.Status == domain.StatusAwaitingInput {
		c.logger.Info("conversation ended without a match",
			"subscriber_id", sess.SubscriberID,
			"block_id", sess.CurrentBlock,
		)
		sess.EndConversation()
	}

	if c.fallbackBlockID != "" {
		block, err := c.graph.Block(ctx, c.fallbackBlockID)
		if err != nil {
			return nil, fmt.Errorf("global fallback block: %w", err)
		}
		sess.Status = domain.StatusAwaitingInput
		sess.ConversationID = uuid.NewString()
		// The fallback block was triggered like any other block, so its
		// declared captures still run.
		c.captureVars(ctx, sess, block, ev)
		return c.executeChain(ctx, sess, block)
	}

	if len(c.fallbackTexts) > 0 {
		text := c.fallbackTexts[c.pick(len(c.fallbackTexts))]
		env := domain.NewTextEnvelope(render.Interpolate(text, sess, nil))
		return []domain.Envelope{env}, nil
	}

	c.logger.Debug("event did not match any block", "subscriber_id", sess.SubscriberID, "type", string(ev.Type))
	return nil, nil
}

// localFallback re-asks the current block under its fallback policy. The
// session cursor does not move and captures are skipped, so an earlier
// captured value is never clobbered by the off-topic message.
func (c *Coordinator) localFallback(ctx context.Context, sess *domain.Session, block *domain.Block) ([]domain.Envelope, error) {
	sess.Context.Attempt++

	c.fireBlockEnter(ctx, sess.SubscriberID, block, true, false)
	env, err := c.renderer.Render(ctx, block, sess, true)
	if err != nil {
		return nil, err
	}
	c.fireBlockLeave(ctx, sess.SubscriberID, block)

	if !env.Valid() {
		return nil, nil
	}
	return []domain.Envelope{env}, nil
}

// captureVars stores the declared slices of the event into conversation
// variables. Variables declared permanent go to the subscriber scope and
// survive conversation resets.
func (c *Coordinator) captureVars(ctx context.Context, sess *domain.Session, block *domain.Block, ev domain.Event) {
	for _, cv := range block.CaptureVars {
		value, ok := captureValue(cv, ev)
		if !ok {
			continue
		}
		if c.graph.IsPermanentVar(ctx, cv.ContextVar) {
			sess.PermanentVars[cv.ContextVar] = value
		} else {
			sess.Context.Vars[cv.ContextVar] = value
		}
	}
}

// captureValue extracts one declared capture from the event.
func captureValue(cv domain.CaptureVar, ev domain.Event) (any, bool) {
	switch cv.Entity {
	case domain.CaptureWholeMessage:
		if ev.Text != "" {
			return ev.Text, true
		}
		if ev.Payload != "" {
			return ev.Payload, true
		}
	case domain.CapturePostbackPayload:
		if ev.Payload != "" {
			return ev.Payload, true
		}
	default:
		if ev.NLP == nil {
			return nil, false
		}
		for _, e := range ev.NLP.Entities {
			if e.Entity == cv.EntityName {
				return e.Value, true
			}
		}
	}
	return nil, false
}

// executeChain runs the matched block and then follows attached blocks,
// emitting one envelope per block, until the chain ends or the depth bound
// trips. The session cursor lands on the last executed block.
func (c *Coordinator) executeChain(ctx context.Context, sess *domain.Session, block *domain.Block) ([]domain.Envelope, error) {
	var envelopes []domain.Envelope

	chained := false
	for depth := 0; block != nil; depth++ {
		if depth >= c.maxChainDepth {
			c.logger.Error("attached-block chain exceeded depth bound, stopping",
				"subscriber_id", sess.SubscriberID,
				"block_id", block.ID,
				"depth", depth,
			)
			break
		}

		c.fireBlockEnter(ctx, sess.SubscriberID, block, false, chained)
		sess.AssignLabels(block.AssignLabels)

		env, err := c.executeBlock(ctx, sess, block)
		if err != nil {
			return envelopes, err
		}
		if env.Valid() {
			envelopes = append(envelopes, env)
		}

		sess.CurrentBlock = block.ID
		sess.NextBlocks = append([]string(nil), block.NextBlocks...)
		c.fireBlockLeave(ctx, sess.SubscriberID, block)

		next, err := c.graph.Attached(ctx, block)
		if err != nil {
			return envelopes, err
		}
		if next == nil {
			if block.IsTerminal() {
				sess.EndConversation()
			} else {
				sess.Status = domain.StatusAwaitingInput
			}
			break
		}
		block = next
		chained = true
	}

	return envelopes, nil
}

// executeBlock produces this block's envelope, routing plugin messages
// through the plugin runtime and everything else through the renderer.
func (c *Coordinator) executeBlock(ctx context.Context, sess *domain.Session, block *domain.Block) (domain.Envelope, error) {
	if block.Message.Kind() == domain.KindPlugin {
		start := time.Now()
		c.firePluginCall(ctx, sess.SubscriberID, block)
		env, err := c.plugins.Process(ctx, block, sess, sess.ConversationID)
		c.firePluginReturn(ctx, sess.SubscriberID, block, time.Since(start), err != nil)
		return env, err
	}
	return c.renderer.Render(ctx, block, sess, false)
}

// Reset ends the subscriber's conversation while preserving the subscriber
// scope (permanent vars, labels, profile).
func (c *Coordinator) Reset(ctx context.Context, subscriberID string) error {
	return c.sessions.WithLock(ctx, subscriberID, func(ctx context.Context) error {
		sess, err := c.sessions.Store().Load(ctx, subscriberID)
		if err != nil {
			return err
		}
		sess.EndConversation()
		return c.sessions.Store().Save(ctx, sess)
	})
}

func (c *Coordinator) fireBlockEnter(ctx context.Context, subscriberID string, block *domain.Block, fallback, chained bool) {
	if c.hooks.OnBlockEnter == nil {
		return
	}
	c.hooks.OnBlockEnter(ctx, &domain.BlockEvent{
		HookBase: hookBase(domain.EventBlockEnter, subscriberID),
		BlockID:  block.ID,
		Name:     block.Name,
		Fallback: fallback,
		Chained:  chained,
	})
}

func (c *Coordinator) fireBlockLeave(ctx context.Context, subscriberID string, block *domain.Block) {
	if c.hooks.OnBlockLeave == nil {
		return
	}
	c.hooks.OnBlockLeave(ctx, &domain.BlockEvent{
		HookBase: hookBase(domain.EventBlockLeave, subscriberID),
		BlockID:  block.ID,
		Name:     block.Name,
	})
}

func (c *Coordinator) firePluginCall(ctx context.Context, subscriberID string, block *domain.Block) {
	if c.hooks.OnPluginCall == nil {
		return
	}
	c.hooks.OnPluginCall(ctx, &domain.PluginEvent{
		HookBase: hookBase(domain.EventPluginCall, subscriberID),
		BlockID:  block.ID,
		Plugin:   block.Message.Plugin.Name,
	})
}

func (c *Coordinator) firePluginReturn(ctx context.Context, subscriberID string, block *domain.Block, d time.Duration, isErr bool) {
	if c.hooks.OnPluginReturn == nil {
		return
	}
	c.hooks.OnPluginReturn(ctx, &domain.PluginEvent{
		HookBase: hookBase(domain.EventPluginReturn, subscriberID),
		BlockID:  block.ID,
		Plugin:   block.Message.Plugin.Name,
		Duration: d,
		IsError:  isErr,
	})
}

func (c *Coordinator) fireTurnEnd(ctx context.Context, subscriberID string, matched bool, envelopes int) {
	if c.hooks.OnTurnEnd == nil {
		return
	}
	c.hooks.OnTurnEnd(ctx, &domain.TurnEvent{
		HookBase:  hookBase(domain.EventTurnEnd, subscriberID),
		Matched:   matched,
		Envelopes: envelopes,
	})
}

func hookBase(t domain.HookEventType, subscriberID string) domain.HookBase {
	return domain.HookBase{Timestamp: time.Now(), Type: t, SubscriberID: subscriberID}
}
