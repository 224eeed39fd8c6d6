package matcher

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/graph"
)

// DefaultMinConfidence is the floor applied to NLP annotations before they
// can satisfy an NLP trigger.
const DefaultMinConfidence = 0.2

// Result is the outcome of matching one incoming event.
//
// Block nil means "no match", a normal return value rather than an error.
// Fallback set means the current block is re-asked under its local fallback
// policy; the caller owns incrementing the attempt counter.
type Result struct {
	Block    *domain.Block
	Fallback bool
}

// Matcher selects at most one block for an incoming event. Selection is
// deterministic and order-dependent: flow authors control precedence by
// reordering successors, never by score.
type Matcher struct {
	graph         *graph.Store
	logger        *slog.Logger
	minConfidence float64
}

// Option configures the Matcher.
type Option func(*Matcher)

// WithLogger sets the logger for configuration warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithMinConfidence overrides the NLP confidence floor.
func WithMinConfidence(min float64) Option {
	return func(m *Matcher) {
		m.minConfidence = min
	}
}

// New creates a Matcher over a graph view.
func New(g *graph.Store, opts ...Option) *Matcher {
	m := &Matcher{
		graph:         g,
		logger:        logging.NewNop(),
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match runs the candidate pipeline for one event:
//
//  1. successors of the session's current block (priority order),
//  2. else the global entry blocks (a returning user can always restart a
//     top-level intent),
//  3. else the current block itself, when its fallback policy has retry
//     budget left and the event is textual.
//
// At most one block is returned per event; attached-block chaining is the
// coordinator's separate, deterministic step and involves no matching.
func (m *Matcher) Match(ctx context.Context, sess *domain.Session, ev domain.Event) (Result, error) {
	var current *domain.Block

	if sess.Status == domain.StatusAwaitingInput && sess.CurrentBlock != "" {
		var err error
		current, err = m.graph.Block(ctx, sess.CurrentBlock)
		if err != nil {
			// The graph may have changed since the last turn; treat a
			// vanished current block as "no successors".
			m.logger.Warn("current block vanished from graph",
				"subscriber_id", sess.SubscriberID,
				"block_id", sess.CurrentBlock,
			)
			current = nil
		}
	}

	if current != nil {
		successors, err := m.graph.Successors(ctx, current)
		if err != nil {
			return Result{}, err
		}
		if block := m.matchAmong(successors, sess, ev); block != nil {
			return Result{Block: block}, nil
		}
	}

	entries, err := m.graph.EntryBlocks(ctx, "")
	if err != nil {
		return Result{}, err
	}
	if block := m.matchAmong(entries, sess, ev); block != nil {
		return Result{Block: block}, nil
	}

	if current != nil && ev.IsTextual() {
		fb := current.Options.Fallback
		if fb != nil && fb.Active && sess.Context.Attempt < fb.MaxAttempts {
			return Result{Block: current, Fallback: true}, nil
		}
	}

	return Result{}, nil
}

// matchAmong evaluates candidates in priority order and returns the first
// satisfied one. Payload equality is checked across all candidates first,
// then text patterns, then NLP constraints (largest matching group wins).
func (m *Matcher) matchAmong(candidates []*domain.Block, sess *domain.Session, ev domain.Event) *domain.Block {
	if len(candidates) == 0 {
		return nil
	}

	labels := append(append([]string(nil), ev.Labels...), sess.Labels...)
	eligible := make([]*domain.Block, 0, len(candidates))
	for _, b := range candidates {
		if matchesLabels(b, labels) {
			eligible = append(eligible, b)
		}
	}
	// Label-targeted blocks outrank label-free ones; stable keeps the
	// declaration order within each rank.
	sort.SliceStable(eligible, func(i, j int) bool {
		return len(eligible[i].TriggerLabels) > len(eligible[j].TriggerLabels)
	})

	if ev.Payload != "" || ev.PayloadType != "" {
		for _, b := range eligible {
			if MatchPayload(b, ev) != nil {
				return b
			}
		}
	}

	text := strings.TrimSpace(ev.Text)
	if text != "" {
		for _, b := range eligible {
			if m.MatchText(b, text) {
				return b
			}
		}
	}

	if ev.NLP != nil {
		var best *domain.Block
		bestSize := 0
		for _, b := range eligible {
			if group := m.MatchNLP(b, ev.NLP); len(group) > bestSize {
				best, bestSize = b, len(group)
			}
		}
		if best != nil {
			return best
		}
	}

	return nil
}

func matchesLabels(b *domain.Block, labels []string) bool {
	if len(b.TriggerLabels) == 0 {
		return true
	}
	for _, want := range b.TriggerLabels {
		for _, have := range labels {
			if want == have {
				return true
			}
		}
	}
	return false
}

// MatchPayload returns the payload pattern satisfied by the event, if any.
// A pattern matches on exact payload value, on a "value:" prefix (content
// postbacks carry "TITLE:PAYLOAD"), or on structured payload type.
func MatchPayload(b *domain.Block, ev domain.Event) *domain.PayloadPattern {
	for i := range b.Patterns {
		pt := b.Patterns[i].Payload
		if pt == nil {
			continue
		}
		if pt.Value != "" && ev.Payload != "" {
			if ev.Payload == pt.Value || strings.HasPrefix(ev.Payload, pt.Value+":") {
				return pt
			}
		}
		if pt.Type != "" && pt.Type == ev.PayloadType {
			return pt
		}
	}
	return nil
}

// MatchText reports whether any text pattern of the block matches.
// "/…/" patterns are case-insensitive regexps; anything else matches on
// case-insensitive equality. A malformed regexp is a configuration error:
// logged and skipped, never fatal.
func (m *Matcher) MatchText(b *domain.Block, text string) bool {
	for _, p := range b.Patterns {
		switch {
		case p.Text == "":
			// Quick-reply label equality for payload patterns.
			if p.Payload != nil && p.Payload.Label != "" &&
				strings.EqualFold(text, p.Payload.Label) {
				return true
			}
		case p.IsRegex():
			re, err := p.Compile()
			if err != nil {
				m.logger.Warn("malformed regex pattern",
					"block_id", b.ID,
					"pattern", p.Text,
					"err", err,
				)
				continue
			}
			if re.MatchString(text) {
				return true
			}
		default:
			if strings.EqualFold(strings.TrimSpace(text), p.Text) {
				return true
			}
		}
	}
	return false
}

// MatchNLP returns the first NLP pattern group fully satisfied by the
// annotations. Every constraint in a group must hold; annotations below the
// confidence floor are ignored.
func (m *Matcher) MatchNLP(b *domain.Block, nlp *domain.NLPAnnotations) []domain.NLPPattern {
	if nlp == nil || len(nlp.Entities) == 0 {
		return nil
	}
	for _, p := range b.Patterns {
		if len(p.NLP) == 0 {
			continue
		}
		if m.nlpGroupMatches(b, p.NLP, nlp.Entities) {
			return p.NLP
		}
	}
	return nil
}

func (m *Matcher) nlpGroupMatches(b *domain.Block, group []domain.NLPPattern, entities []domain.EntityAnnotation) bool {
	for _, constraint := range group {
		if !m.entityPresent(b, constraint, entities) {
			return false
		}
	}
	return true
}

func (m *Matcher) entityPresent(b *domain.Block, constraint domain.NLPPattern, entities []domain.EntityAnnotation) bool {
	for _, e := range entities {
		if e.Confidence < m.minConfidence {
			continue
		}
		switch constraint.Match {
		case domain.NLPMatchValue:
			if e.Entity == constraint.Entity && e.Value == constraint.Value {
				return true
			}
		case domain.NLPMatchEntity:
			if e.Entity == constraint.Entity {
				return true
			}
		default:
			m.logger.Warn("unknown NLP match type",
				"block_id", b.ID,
				"match", string(constraint.Match),
			)
			return false
		}
	}
	return false
}
