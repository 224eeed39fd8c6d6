package matcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattlebot/wattle/pkg/adapters/memory"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/graph"
	"github.com/wattlebot/wattle/pkg/matcher"
)

func newMatcher(t *testing.T, blocks []domain.Block, opts ...matcher.Option) *matcher.Matcher {
	t.Helper()
	source, err := memory.NewBlockSource(blocks)
	require.NoError(t, err)
	return matcher.New(graph.NewStore(source), opts...)
}

func awaitingAt(blockID string) *domain.Session {
	sess := domain.NewSession("sub-1")
	sess.Status = domain.StatusAwaitingInput
	sess.CurrentBlock = blockID
	return sess
}

func textEvent(text string) domain.Event {
	return domain.Event{SubscriberID: "sub-1", Type: domain.IncomingMessage, Text: text}
}

func postbackEvent(payload string) domain.Event {
	return domain.Event{SubscriberID: "sub-1", Type: domain.IncomingPostback, Payload: payload}
}

func TestMatch_SuccessorsBeforeEntries(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "entry",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "help"}},
			Message:            domain.Message{Text: []string{"Entry"}},
		},
		{
			ID:         "menu",
			NextBlocks: []string{"child"},
			Message:    domain.Message{Text: []string{"Menu"}},
		},
		{
			ID:       "child",
			Patterns: []domain.Pattern{{Text: "help"}},
			Message:  domain.Message{Text: []string{"Child"}},
		},
	}
	m := newMatcher(t, blocks)

	// Awaiting at menu, "help" matches the successor, not the entry block.
	res, err := m.Match(context.Background(), awaitingAt("menu"), textEvent("help"))
	require.NoError(t, err)
	require.NotNil(t, res.Block)
	assert.Equal(t, "child", res.Block.ID)
	assert.False(t, res.Fallback)

	// Idle sessions can only land on entry blocks.
	res, err = m.Match(context.Background(), domain.NewSession("sub-1"), textEvent("help"))
	require.NoError(t, err)
	require.NotNil(t, res.Block)
	assert.Equal(t, "entry", res.Block.ID)
}

func TestMatch_FirstDeclaredSuccessorWins(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:         "menu",
			NextBlocks: []string{"first", "second"},
			Message:    domain.Message{Text: []string{"Menu"}},
		},
		{
			ID:       "first",
			Patterns: []domain.Pattern{{Text: "hello"}},
			Message:  domain.Message{Text: []string{"First"}},
		},
		{
			ID:       "second",
			Patterns: []domain.Pattern{{Text: "hello"}},
			Message:  domain.Message{Text: []string{"Second"}},
		},
	}
	m := newMatcher(t, blocks)

	// Both successors match; declaration order breaks the tie, every time.
	for i := 0; i < 5; i++ {
		res, err := m.Match(context.Background(), awaitingAt("menu"), textEvent("hello"))
		require.NoError(t, err)
		require.NotNil(t, res.Block)
		assert.Equal(t, "first", res.Block.ID)
	}
}

func TestMatch_PayloadBeatsText(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:         "menu",
			NextBlocks: []string{"by_text", "by_payload"},
			Message:    domain.Message{Text: []string{"Menu"}},
		},
		{
			ID:       "by_text",
			Patterns: []domain.Pattern{{Text: "ORDER"}},
			Message:  domain.Message{Text: []string{"Text"}},
		},
		{
			ID:       "by_payload",
			Patterns: []domain.Pattern{{Payload: &domain.PayloadPattern{Label: "Order", Value: "ORDER"}}},
			Message:  domain.Message{Text: []string{"Payload"}},
		},
	}
	m := newMatcher(t, blocks)

	ev := postbackEvent("ORDER")
	ev.Text = "ORDER"
	res, err := m.Match(context.Background(), awaitingAt("menu"), ev)
	require.NoError(t, err)
	require.NotNil(t, res.Block)
	assert.Equal(t, "by_payload", res.Block.ID, "payload equality outranks text even when declared later")
}

func TestMatch_PayloadPrefixForm(t *testing.T) {
	b := domain.Block{
		ID:       "product",
		Patterns: []domain.Pattern{{Payload: &domain.PayloadPattern{Value: "Widget"}}},
	}
	assert.NotNil(t, matcher.MatchPayload(&b, postbackEvent("Widget")))
	assert.NotNil(t, matcher.MatchPayload(&b, postbackEvent("Widget:prod-1")), "content postbacks carry TITLE:ID")
	assert.Nil(t, matcher.MatchPayload(&b, postbackEvent("Widgetry")))
}

func TestMatch_PayloadTypeForm(t *testing.T) {
	b := domain.Block{
		ID:       "where",
		Patterns: []domain.Pattern{{Payload: &domain.PayloadPattern{Type: domain.PayloadLocation}}},
	}
	ev := domain.Event{Type: domain.IncomingLocation, PayloadType: domain.PayloadLocation}
	assert.NotNil(t, matcher.MatchPayload(&b, ev))
	assert.Nil(t, matcher.MatchPayload(&b, postbackEvent("X")))
}

func TestMatchText_Forms(t *testing.T) {
	m := newMatcher(t, []domain.Block{})

	exact := domain.Block{ID: "exact", Patterns: []domain.Pattern{{Text: "Hello"}}}
	assert.True(t, m.MatchText(&exact, "hello"))
	assert.True(t, m.MatchText(&exact, "  HELLO  "))
	assert.False(t, m.MatchText(&exact, "hello there"))

	re := domain.Block{ID: "re", Patterns: []domain.Pattern{{Text: "/^(hi|hey)\\b/"}}}
	assert.True(t, m.MatchText(&re, "Hey you"))
	assert.False(t, m.MatchText(&re, "they"))

	// A quick-reply label doubles as a text trigger for its payload pattern.
	label := domain.Block{ID: "label", Patterns: []domain.Pattern{{Payload: &domain.PayloadPattern{Label: "View Orders", Value: "ORDERS"}}}}
	assert.True(t, m.MatchText(&label, "view orders"))

	// Malformed regexps are skipped, not fatal.
	bad := domain.Block{ID: "bad", Patterns: []domain.Pattern{{Text: "/([a-z/"}, {Text: "ok"}}}
	assert.False(t, m.MatchText(&bad, "([a-z"))
	assert.True(t, m.MatchText(&bad, "ok"))
}

func TestMatchNLP_GroupsAndConfidence(t *testing.T) {
	m := newMatcher(t, []domain.Block{})

	b := domain.Block{ID: "intent", Patterns: []domain.Pattern{
		{NLP: []domain.NLPPattern{
			{Entity: "intent", Match: domain.NLPMatchValue, Value: "greeting"},
			{Entity: "name", Match: domain.NLPMatchEntity},
		}},
	}}

	full := &domain.NLPAnnotations{Entities: []domain.EntityAnnotation{
		{Entity: "intent", Value: "greeting", Confidence: 0.9},
		{Entity: "name", Value: "Ada", Confidence: 0.8},
	}}
	assert.Len(t, m.MatchNLP(&b, full), 2)

	partial := &domain.NLPAnnotations{Entities: []domain.EntityAnnotation{
		{Entity: "intent", Value: "greeting", Confidence: 0.9},
	}}
	assert.Nil(t, m.MatchNLP(&b, partial), "every constraint in a group must hold")

	weak := &domain.NLPAnnotations{Entities: []domain.EntityAnnotation{
		{Entity: "intent", Value: "greeting", Confidence: 0.05},
		{Entity: "name", Value: "Ada", Confidence: 0.8},
	}}
	assert.Nil(t, m.MatchNLP(&b, weak), "annotations below the confidence floor are ignored")
}

func TestMatch_NLPLargestGroupWins(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "broad",
			StartsConversation: true,
			Patterns: []domain.Pattern{
				{NLP: []domain.NLPPattern{{Entity: "intent", Match: domain.NLPMatchEntity}}},
			},
			Message: domain.Message{Text: []string{"Broad"}},
		},
		{
			ID:                 "narrow",
			StartsConversation: true,
			Patterns: []domain.Pattern{
				{NLP: []domain.NLPPattern{
					{Entity: "intent", Match: domain.NLPMatchValue, Value: "order"},
					{Entity: "product", Match: domain.NLPMatchEntity},
				}},
			},
			Message: domain.Message{Text: []string{"Narrow"}},
		},
	}
	m := newMatcher(t, blocks)

	ev := domain.Event{Type: domain.IncomingMessage, NLP: &domain.NLPAnnotations{Entities: []domain.EntityAnnotation{
		{Entity: "intent", Value: "order", Confidence: 0.9},
		{Entity: "product", Value: "widget", Confidence: 0.9},
	}}}

	res, err := m.Match(context.Background(), domain.NewSession("sub-1"), ev)
	require.NoError(t, err)
	require.NotNil(t, res.Block)
	assert.Equal(t, "narrow", res.Block.ID, "the most specific satisfied group wins")
}

func TestMatch_LocalFallback(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:         "ask",
			NextBlocks: []string{"yes"},
			Message:    domain.Message{Text: []string{"Yes or no?"}},
			Options: domain.BlockOptions{Fallback: &domain.FallbackOptions{
				Active:      true,
				Message:     []string{"Please answer yes or no."},
				MaxAttempts: 2,
			}},
		},
		{
			ID:       "yes",
			Patterns: []domain.Pattern{{Text: "yes"}},
			Message:  domain.Message{Text: []string{"Great"}},
		},
	}
	m := newMatcher(t, blocks)

	sess := awaitingAt("ask")
	res, err := m.Match(context.Background(), sess, textEvent("maybe"))
	require.NoError(t, err)
	require.NotNil(t, res.Block)
	assert.True(t, res.Fallback)
	assert.Equal(t, "ask", res.Block.ID)

	// Budget exhausted: no match at all.
	sess.Context.Attempt = 2
	res, err = m.Match(context.Background(), sess, textEvent("maybe"))
	require.NoError(t, err)
	assert.Nil(t, res.Block)

	// Postbacks never trigger the local re-ask.
	sess.Context.Attempt = 0
	res, err = m.Match(context.Background(), sess, postbackEvent("UNKNOWN"))
	require.NoError(t, err)
	assert.Nil(t, res.Block)
}

func TestMatch_LabelGating(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "vip_offer",
			StartsConversation: true,
			TriggerLabels:      []string{"vip"},
			Patterns:           []domain.Pattern{{Text: "offers"}},
			Message:            domain.Message{Text: []string{"VIP offers"}},
		},
		{
			ID:                 "offers",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "offers"}},
			Message:            domain.Message{Text: []string{"Offers"}},
		},
	}
	m := newMatcher(t, blocks)

	plain, err := m.Match(context.Background(), domain.NewSession("sub-1"), textEvent("offers"))
	require.NoError(t, err)
	require.NotNil(t, plain.Block)
	assert.Equal(t, "offers", plain.Block.ID)

	vip := domain.NewSession("sub-2")
	vip.Labels = []string{"vip"}
	res, err := m.Match(context.Background(), vip, textEvent("offers"))
	require.NoError(t, err)
	require.NotNil(t, res.Block)
	assert.Equal(t, "vip_offer", res.Block.ID, "label-targeted blocks outrank label-free ones")
}

func TestMatch_VanishedCurrentBlock(t *testing.T) {
	blocks := []domain.Block{
		{
			ID:                 "entry",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "hi"}},
			Message:            domain.Message{Text: []string{"Hello"}},
		},
	}
	m := newMatcher(t, blocks)

	// The session points at a block the graph no longer has.
	res, err := m.Match(context.Background(), awaitingAt("gone"), textEvent("hi"))
	require.NoError(t, err)
	require.NotNil(t, res.Block)
	assert.Equal(t, "entry", res.Block.ID)
}

func TestMatch_NoMatch(t *testing.T) {
	m := newMatcher(t, []domain.Block{
		{
			ID:                 "entry",
			StartsConversation: true,
			Patterns:           []domain.Pattern{{Text: "hi"}},
			Message:            domain.Message{Text: []string{"Hello"}},
		},
	})

	res, err := m.Match(context.Background(), domain.NewSession("sub-1"), textEvent("completely unrelated"))
	require.NoError(t, err)
	assert.Nil(t, res.Block)
	assert.False(t, res.Fallback)
}
