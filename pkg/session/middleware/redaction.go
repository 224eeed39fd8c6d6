package middleware

import (
	"context"
	"regexp"

	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/ports"
)

type redactionMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedaction creates a middleware that masks captured variables whose
// name matches one of the patterns before the session is persisted. The
// in-flight session the engine holds is untouched.
func NewRedaction(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, sess *domain.Session) error {
	// Clone copies nested maps shallowly, so masking builds fresh maps
	// instead of writing through to the engine's copy.
	cloned := sess.Clone()
	cloned.Context.Vars = maskMap(sess.Context.Vars, m.patterns)
	cloned.PermanentVars = maskMap(sess.PermanentVars, m.patterns)
	return m.next.Save(ctx, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, subscriberID string) (*domain.Session, error) {
	return m.next.Load(ctx, subscriberID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, subscriberID string) error {
	return m.next.Delete(ctx, subscriberID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if matchesAny(k, patterns) {
			out[k] = "***"
			continue
		}
		if subMap, ok := v.(map[string]any); ok {
			out[k] = maskMap(subMap, patterns)
			continue
		}
		out[k] = v
	}
	return out
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
