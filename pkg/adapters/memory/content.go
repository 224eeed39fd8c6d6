package memory

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/ports"
)

// ContentStore implements ports.ContentStore over an in-memory element list.
// Elements keep insertion order, so pagination windows are stable as long as
// the data set does not change between pages.
type ContentStore struct {
	mu       sync.RWMutex
	elements []ports.ContentElementData
	entities map[string][]int // entity name -> element indexes
}

// NewContentStore creates an empty store.
func NewContentStore() *ContentStore {
	return &ContentStore{entities: make(map[string][]int)}
}

// Add appends elements under an entity (content type).
func (s *ContentStore) Add(entity string, elements ...ports.ContentElementData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range elements {
		s.entities[entity] = append(s.entities[entity], len(s.elements))
		s.elements = append(s.elements, el)
	}
}

// Search applies the query, then returns the [skip, skip+limit) window plus
// the total match count. Text queries do a case-insensitive keyword scan
// over title and string fields.
func (s *ContentStore) Search(ctx context.Context, query ports.ContentQuery, skip, limit int) (ports.ContentPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []ports.ContentElementData
	for _, el := range s.candidates(query.Entity) {
		if !matchesFilter(el, query.Filter) {
			continue
		}
		if query.Text != "" && !matchesText(el, query.Text) {
			continue
		}
		matched = append(matched, el)
	}

	if len(matched) == 0 {
		return ports.ContentPage{}, domain.ErrNoContent
	}

	page := ports.ContentPage{Total: len(matched)}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(matched) {
		return page, nil
	}
	end := len(matched)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	page.Elements = append(page.Elements, matched[skip:end]...)
	return page, nil
}

func (s *ContentStore) candidates(entity string) []ports.ContentElementData {
	if entity == "" {
		return s.elements
	}
	idx := s.entities[entity]
	out := make([]ports.ContentElementData, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.elements[i])
	}
	return out
}

func matchesFilter(el ports.ContentElementData, filter map[string]any) bool {
	for field, want := range filter {
		if el.Fields[field] != want {
			return false
		}
	}
	return true
}

// matchesText does keyword matching: the element matches when any query term
// appears in its title or string fields. Whole-phrase containment would make
// a natural-language question miss every document it asks about.
func matchesText(el ports.ContentElementData, text string) bool {
	title := strings.ToLower(el.Title)
	for _, term := range searchTerms(text) {
		if strings.Contains(title, term) {
			return true
		}
		for _, v := range el.Fields {
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), term) {
				return true
			}
		}
	}
	return false
}

// stopwords are query terms too common to select documents.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "can": {}, "do": {}, "does": {},
	"for": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "my": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "with": {}, "you": {},
}

// searchTerms lowercases the query and splits it on anything that is not a
// letter or digit, dropping stopwords.
func searchTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
