package domain

// SessionStatus defines the user-visible position of a subscriber in the
// conversation state machine.
type SessionStatus string

const (
	// StatusIdle means no active conversation; only entry blocks can match.
	StatusIdle SessionStatus = "idle"
	// StatusAwaitingInput means the subscriber is positioned at a block and
	// the next event is matched against its successors.
	StatusAwaitingInput SessionStatus = "awaiting_input"
)

// Context is the per-conversation variable store plus the bookkeeping the
// engine keeps per turn (retry attempts, pagination offsets, last event).
type Context struct {
	// Vars are the captured conversation slots.
	Vars map[string]any `json:"vars"`

	// Attempt counts consecutive local-fallback re-asks at the current block.
	Attempt int `json:"attempt,omitempty"`

	// Skip tracks the pagination offset per list/carousel block id.
	Skip map[string]int `json:"skip,omitempty"`

	// Snapshot of the last processed event.
	Text    string       `json:"text,omitempty"`
	Payload string       `json:"payload,omitempty"`
	Channel string       `json:"channel,omitempty"`
	NLP     *NLPAnnotations `json:"nlp,omitempty"`

	UserLocation *Coordinates `json:"user_location,omitempty"`
}

// NewContext returns an empty, usable conversation context.
func NewContext() Context {
	return Context{Vars: make(map[string]any), Skip: make(map[string]int)}
}

// Session is the full per-subscriber state passed into and out of every
// coordinator call. There is no hidden shared position: mutating a Session
// has no effect until it is saved through the session store.
type Session struct {
	SubscriberID   string `json:"subscriber_id"`
	ConversationID string `json:"conversation_id,omitempty"`

	Status SessionStatus `json:"status"`

	// CurrentBlock and NextBlocks mirror the conversation cursor: the block
	// last executed and the successor ids the next event is matched against.
	CurrentBlock string   `json:"current_block,omitempty"`
	NextBlocks   []string `json:"next_blocks,omitempty"`

	Context Context `json:"context"`

	// PermanentVars survive conversation resets (subscriber scope).
	PermanentVars map[string]any `json:"permanent_vars,omitempty"`

	// Labels assigned to the subscriber by executed blocks.
	Labels []string `json:"labels,omitempty"`

	User UserProfile `json:"user,omitempty"`
}

// NewSession returns an idle session for a subscriber.
func NewSession(subscriberID string) *Session {
	return &Session{
		SubscriberID:  subscriberID,
		Status:        StatusIdle,
		Context:       NewContext(),
		PermanentVars: make(map[string]any),
	}
}

// EndConversation resets the session to idle. Conversation-scoped context is
// dropped; permanent vars, labels, and the user profile survive.
func (s *Session) EndConversation() {
	s.Status = StatusIdle
	s.ConversationID = ""
	s.CurrentBlock = ""
	s.NextBlocks = nil
	s.Context = NewContext()
}

// HasLabel reports whether the subscriber carries the given label.
func (s *Session) HasLabel(label string) bool {
	for _, l := range s.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AssignLabels adds labels to the subscriber, skipping duplicates.
func (s *Session) AssignLabels(labels []string) {
	for _, l := range labels {
		if !s.HasLabel(l) {
			s.Labels = append(s.Labels, l)
		}
	}
}

// Clone returns a deep copy, so stores can hand out isolated snapshots.
func (s *Session) Clone() *Session {
	cp := *s
	cp.NextBlocks = append([]string(nil), s.NextBlocks...)
	cp.Labels = append([]string(nil), s.Labels...)
	cp.Context.Vars = copyMap(s.Context.Vars)
	cp.Context.Skip = make(map[string]int, len(s.Context.Skip))
	for k, v := range s.Context.Skip {
		cp.Context.Skip[k] = v
	}
	cp.PermanentVars = copyMap(s.PermanentVars)
	if s.Context.NLP != nil {
		nlp := NLPAnnotations{Entities: append([]EntityAnnotation(nil), s.Context.NLP.Entities...)}
		cp.Context.NLP = &nlp
	}
	if s.Context.UserLocation != nil {
		loc := *s.Context.UserLocation
		cp.Context.UserLocation = &loc
	}
	return &cp
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
