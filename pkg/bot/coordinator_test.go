package bot_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattlebot/wattle/pkg/adapters/memory"
	"github.com/wattlebot/wattle/pkg/bot"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/graph"
	"github.com/wattlebot/wattle/pkg/matcher"
	"github.com/wattlebot/wattle/pkg/plugin"
	"github.com/wattlebot/wattle/pkg/ports"
	"github.com/wattlebot/wattle/pkg/render"
	"github.com/wattlebot/wattle/pkg/session"
)

// fixture wires a coordinator over in-memory adapters.
type fixture struct {
	coordinator *bot.Coordinator
	store       *memory.SessionStore
	registry    *plugin.Registry
}

func newFixture(t *testing.T, blocks []domain.Block, ctxVars []domain.ContextVar, opts ...bot.Option) *fixture {
	t.Helper()

	source, err := memory.NewBlockSource(blocks, ctxVars...)
	require.NoError(t, err)

	content := memory.NewContentStore()
	content.Add("products",
		ports.ContentElementData{ID: "1", Title: "Red shirt"},
		ports.ContentElementData{ID: "2", Title: "Blue shirt"},
		ports.ContentElementData{ID: "3", Title: "Green hat"},
		ports.ContentElementData{ID: "4", Title: "Black hat"},
		ports.ContentElementData{ID: "5", Title: "White socks"},
	)

	store := memory.NewSessionStore()
	g := graph.NewStore(source)
	registry := plugin.NewRegistry()

	f := &fixture{
		store:    store,
		registry: registry,
	}
	f.coordinator = bot.New(
		session.NewManager(store),
		g,
		matcher.New(g),
		render.New(
			render.WithContentStore(content),
			render.WithPicker(func(n int) int { return 0 }),
		),
		plugin.NewRuntime(registry),
		append([]bot.Option{bot.WithPicker(func(n int) int { return 0 })}, opts...)...,
	)
	return f
}

func textEvent(subscriber, text string) domain.Event {
	return domain.Event{SubscriberID: subscriber, Type: domain.IncomingMessage, Text: text}
}

func postbackEvent(subscriber, payload string) domain.Event {
	return domain.Event{SubscriberID: subscriber, Type: domain.IncomingPostback, Payload: payload}
}

// onboardingBlocks is a small flow: greeting chains into ask_name, whose
// successor captures the answer and ends the conversation.
func onboardingBlocks() []domain.Block {
	return []domain.Block{
		{
			ID:                 "greeting",
			Name:               "Greeting",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "hi"}, {Text: "hello"}},
			Message:            domain.Message{Text: []string{"Hello there!"}},
			AttachedBlock:      "ask_name",
		},
		{
			ID:         "ask_name",
			Name:       "Ask Name",
			Message:    domain.Message{Text: []string{"What is your name?"}},
			NextBlocks: []string{"thanks"},
		},
		{
			ID:          "thanks",
			Name:        "Thanks",
			Patterns:    []domain.Pattern{{Text: "/.+/"}},
			CaptureVars: []domain.CaptureVar{{Entity: domain.CaptureWholeMessage, ContextVar: "name"}},
			Message:     domain.Message{Text: []string{"Nice to meet you, {context.vars.name}!"}},
		},
	}
}

func TestCoordinator_OnboardingFlow(t *testing.T) {
	f := newFixture(t, onboardingBlocks(), nil)
	ctx := context.Background()

	// Turn 1: greeting matches and chains into the attached question.
	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "hi"))
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "Hello there!", envs[0].Text.Text)
	assert.Equal(t, "What is your name?", envs[1].Text.Text)

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, sess.Status)
	assert.Equal(t, "ask_name", sess.CurrentBlock)
	assert.NotEmpty(t, sess.ConversationID)

	// Turn 2: the answer is captured, interpolated, and the flow ends.
	envs, err = f.coordinator.Handle(ctx, textEvent("sub-1", "Ada"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "Nice to meet you, Ada!", envs[0].Text.Text)

	sess, err = f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, sess.Status)
	assert.Empty(t, sess.CurrentBlock)
	assert.Empty(t, sess.Context.Vars)
}

func TestCoordinator_PermanentVarsSurviveReset(t *testing.T) {
	blocks := onboardingBlocks()
	ctxVars := []domain.ContextVar{{Name: "name", Permanent: true}}
	f := newFixture(t, blocks, ctxVars)
	ctx := context.Background()

	_, err := f.coordinator.Handle(ctx, textEvent("sub-1", "hi"))
	require.NoError(t, err)
	_, err = f.coordinator.Handle(ctx, textEvent("sub-1", "Ada"))
	require.NoError(t, err)

	// The flow ended, but the permanent var outlives the conversation.
	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, sess.Status)
	assert.Equal(t, "Ada", sess.PermanentVars["name"])
}

func TestCoordinator_LocalFallbackBudget(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "menu",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "menu"}},
			Message:            domain.Message{Text: []string{"Pick an option"}},
			NextBlocks:         []string{"option_a"},
			Options: domain.BlockOptions{
				Fallback: &domain.FallbackOptions{
					Active:      true,
					Message:     []string{"Please pick a listed option"},
					MaxAttempts: 2,
				},
			},
		},
		{
			ID:       "option_a",
			Patterns: []domain.Pattern{{Payload: &domain.PayloadPattern{Value: "OPTION_A"}}},
			Message:  domain.Message{Text: []string{"Option A it is"}},
		},
	}
	f := newFixture(t, blocks, nil, bot.WithGlobalFallbackTexts("I give up"))
	ctx := context.Background()

	_, err := f.coordinator.Handle(ctx, textEvent("sub-1", "menu"))
	require.NoError(t, err)

	// Two off-topic messages consume the retry budget.
	for i := 1; i <= 2; i++ {
		envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "whatever"))
		require.NoError(t, err)
		require.Len(t, envs, 1)
		assert.Equal(t, "Please pick a listed option", envs[0].Text.Text)

		sess, err := f.store.Load(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, i, sess.Context.Attempt)
		assert.Equal(t, "menu", sess.CurrentBlock)
	}

	// Budget exhausted: the conversation ends and the global fallback answers.
	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "still whatever"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "I give up", envs[0].Text.Text)

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, sess.Status)

	// A matching postback still works after the reset.
	_, err = f.coordinator.Handle(ctx, textEvent("sub-1", "menu"))
	require.NoError(t, err)
	envs, err = f.coordinator.Handle(ctx, postbackEvent("sub-1", "OPTION_A"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "Option A it is", envs[0].Text.Text)
}

func TestCoordinator_MatchResetsAttempt(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "menu",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "menu"}},
			Message:            domain.Message{Text: []string{"Pick"}},
			NextBlocks:         []string{"option_a"},
			Options: domain.BlockOptions{
				Fallback: &domain.FallbackOptions{Active: true, Message: []string{"Try again"}, MaxAttempts: 3},
			},
		},
		{
			ID:         "option_a",
			Patterns:   []domain.Pattern{{Text: "a"}},
			Message:    domain.Message{Text: []string{"A"}},
			NextBlocks: []string{"option_a"},
		},
	}
	f := newFixture(t, blocks, nil)
	ctx := context.Background()

	_, err := f.coordinator.Handle(ctx, textEvent("sub-1", "menu"))
	require.NoError(t, err)
	_, err = f.coordinator.Handle(ctx, textEvent("sub-1", "nope"))
	require.NoError(t, err)

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Context.Attempt)

	_, err = f.coordinator.Handle(ctx, textEvent("sub-1", "a"))
	require.NoError(t, err)

	sess, err = f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Context.Attempt)
}

func TestCoordinator_SelfLoopProducesSingleEnvelope(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "echo",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "/.+/"}},
			Message:            domain.Message{Text: []string{"Say more"}},
			NextBlocks:         []string{"echo"},
		},
	}
	f := newFixture(t, blocks, nil)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", text))
		require.NoError(t, err)
		require.Len(t, envs, 1)
		assert.Equal(t, "Say more", envs[0].Text.Text)
	}

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, sess.Status)
	assert.Equal(t, "echo", sess.CurrentBlock)
}

func TestCoordinator_AttachedCycleIsBounded(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "ping",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "go"}},
			Message:            domain.Message{Text: []string{"ping"}},
			AttachedBlock:      "pong",
		},
		{
			ID:            "pong",
			Message:       domain.Message{Text: []string{"pong"}},
			AttachedBlock: "ping",
		},
	}
	f := newFixture(t, blocks, nil, bot.WithMaxChainDepth(6))
	ctx := context.Background()

	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "go"))
	require.NoError(t, err)
	assert.Len(t, envs, 6)
}

func TestCoordinator_GlobalFallbackText(t *testing.T) {
	f := newFixture(t, onboardingBlocks(), nil, bot.WithGlobalFallbackTexts("Sorry, I did not get that"))
	ctx := context.Background()

	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "gibberish"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "Sorry, I did not get that", envs[0].Text.Text)

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, sess.Status)
}

func TestCoordinator_GlobalFallbackBlock(t *testing.T) {
	blocks := append(onboardingBlocks(), domain.Block{
		ID:          "lost",
		Message:     domain.Message{Text: []string{"Let me get you back on track"}},
		NextBlocks:  []string{"thanks"},
		CaptureVars: []domain.CaptureVar{{Entity: domain.CaptureWholeMessage, ContextVar: "last_unmatched"}},
	})
	f := newFixture(t, blocks, nil, bot.WithGlobalFallbackBlock("lost"))
	ctx := context.Background()

	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "gibberish"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "Let me get you back on track", envs[0].Text.Text)

	// The fallback block starts a conversation: the session waits at it.
	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, sess.Status)
	assert.Equal(t, "lost", sess.CurrentBlock)

	// Captures declared on the fallback block run like on any matched block.
	assert.Equal(t, "gibberish", sess.Context.Vars["last_unmatched"])
}

func TestCoordinator_ViewMorePagination(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "catalog",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "shop"}},
			Message:            domain.Message{Content: true},
			NextBlocks:         []string{"catalog"},
			Options: domain.BlockOptions{
				Content: &domain.ContentOptions{
					Display: domain.FormatList,
					Entity:  "products",
					Limit:   2,
					Fields:  domain.ContentFields{Title: "title"},
				},
			},
		},
	}
	f := newFixture(t, blocks, nil)
	ctx := context.Background()

	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "shop"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	first := envs[0].List
	require.NotNil(t, first)
	require.Len(t, first.Elements, 2)
	assert.Equal(t, 5, first.Pagination.Total)
	require.Len(t, first.Buttons, 1)

	// Press the view-more button: the next page starts where this one ended.
	envs, err = f.coordinator.Handle(ctx, postbackEvent("sub-1", first.Buttons[0].Payload))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	second := envs[0].List
	require.NotNil(t, second)
	require.Len(t, second.Elements, 2)
	assert.Equal(t, 2, second.Pagination.Skip)
	assert.NotEqual(t, first.Elements[0].Title, second.Elements[0].Title)
}

func TestCoordinator_AssignAndTriggerLabels(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "signup",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "signup"}},
			AssignLabels:       []string{"member"},
			Message:            domain.Message{Text: []string{"Welcome aboard"}},
		},
		{
			ID:                 "members_only",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "lounge"}},
			TriggerLabels:      []string{"member"},
			Message:            domain.Message{Text: []string{"The lounge is open"}},
		},
	}
	f := newFixture(t, blocks, nil)
	ctx := context.Background()

	// Gated block does not match before the label is assigned.
	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "lounge"))
	require.NoError(t, err)
	assert.Empty(t, envs)

	_, err = f.coordinator.Handle(ctx, textEvent("sub-1", "signup"))
	require.NoError(t, err)

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, sess.HasLabel("member"))

	envs, err = f.coordinator.Handle(ctx, textEvent("sub-1", "lounge"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "The lounge is open", envs[0].Text.Text)
}

func TestCoordinator_PluginBlock(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "helper",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "help"}},
			Message: domain.Message{Plugin: &domain.PluginMessage{
				Name: "greeter",
				Args: map[string]any{"greeting": "Howdy"},
			}},
		},
	}
	f := newFixture(t, blocks, nil)
	f.registry.Register(plugin.Func{
		PluginName: "greeter",
		ProcessFunc: func(ctx context.Context, in plugin.Input) (domain.Envelope, error) {
			in.Session.Context.Vars["greeted"] = true
			return domain.NewTextEnvelope(in.Args["greeting"].(string)), nil
		},
	})
	ctx := context.Background()

	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "help"))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "Howdy", envs[0].Text.Text)

	// The plugin block is terminal, so the conversation ends after it.
	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, sess.Status)
}

func TestCoordinator_LanguageDetectionSideEffect(t *testing.T) {
	f := newFixture(t, onboardingBlocks(), nil)
	ctx := context.Background()

	ev := textEvent("sub-1", "hi")
	ev.NLP = &domain.NLPAnnotations{Entities: []domain.EntityAnnotation{
		{Entity: "language", Value: "fr", Confidence: 0.92},
	}}

	_, err := f.coordinator.Handle(ctx, ev)
	require.NoError(t, err)

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "fr", sess.User.Language)
}

func TestCoordinator_Hooks(t *testing.T) {
	var entered, left []string
	var turns int
	hooks := domain.LifecycleHooks{
		OnBlockEnter: func(_ context.Context, ev *domain.BlockEvent) { entered = append(entered, ev.BlockID) },
		OnBlockLeave: func(_ context.Context, ev *domain.BlockEvent) { left = append(left, ev.BlockID) },
		OnTurnEnd:    func(_ context.Context, ev *domain.TurnEvent) { turns++ },
	}
	f := newFixture(t, onboardingBlocks(), nil, bot.WithHooks(hooks))
	ctx := context.Background()

	_, err := f.coordinator.Handle(ctx, textEvent("sub-1", "hi"))
	require.NoError(t, err)

	assert.Equal(t, []string{"greeting", "ask_name"}, entered)
	assert.Equal(t, []string{"greeting", "ask_name"}, left)
	assert.Equal(t, 1, turns)
}

func TestCoordinator_ChannelDelivery(t *testing.T) {
	var delivered []domain.Envelope
	ch := ports.ChannelFunc(func(ctx context.Context, subscriberID string, env domain.Envelope) error {
		delivered = append(delivered, env)
		return nil
	})
	f := newFixture(t, onboardingBlocks(), nil, bot.WithChannel(ch))
	ctx := context.Background()

	envs, err := f.coordinator.Handle(ctx, textEvent("sub-1", "hi"))
	require.NoError(t, err)
	assert.Equal(t, envs, delivered)
}

func TestCoordinator_Reset(t *testing.T) {
	f := newFixture(t, onboardingBlocks(), nil)
	ctx := context.Background()

	_, err := f.coordinator.Handle(ctx, textEvent("sub-1", "hi"))
	require.NoError(t, err)

	require.NoError(t, f.coordinator.Reset(ctx, "sub-1"))

	sess, err := f.store.Load(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, sess.Status)
	assert.Empty(t, sess.CurrentBlock)
}
