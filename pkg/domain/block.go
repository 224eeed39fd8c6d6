package domain

// Position holds the editor coordinates of a block.
// It is carried around for the benefit of the visual editor and has
// no effect on execution.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// CaptureVar declares a context variable to capture after a block matches.
//
// Entity selects the source of the value:
//   - CaptureWholeMessage (-1): the full message text (or payload for postbacks)
//   - CapturePostbackPayload (-2): the postback payload only
//   - any other value is treated as an NLP entity name via EntityName
type CaptureVar struct {
	Entity     int    `json:"entity" yaml:"entity" mapstructure:"entity"`
	EntityName string `json:"entity_name,omitempty" yaml:"entity_name,omitempty" mapstructure:"entity_name"`
	ContextVar string `json:"context_var" yaml:"context_var" mapstructure:"context_var"`
}

const (
	CaptureWholeMessage    = -1
	CapturePostbackPayload = -2
	// CaptureNLPEntity means EntityName designates the NLP entity to capture.
	CaptureNLPEntity = 0
)

// ContextVar declares a named context variable. Permanent variables are
// promoted to the subscriber scope and survive conversation resets.
type ContextVar struct {
	Name      string `json:"name" yaml:"name" mapstructure:"name"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Permanent bool   `json:"permanent,omitempty" yaml:"permanent,omitempty" mapstructure:"permanent"`
}

// FallbackOptions controls the local re-ask behavior when no successor of a
// block matches an incoming event.
type FallbackOptions struct {
	Active      bool     `json:"active" yaml:"active" mapstructure:"active"`
	Message     []string `json:"message,omitempty" yaml:"message,omitempty" mapstructure:"message"`
	MaxAttempts int      `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
}

// BlockOptions groups the per-block execution tunables.
type BlockOptions struct {
	// Typing is the artificial typing indicator delay in milliseconds that
	// channel adapters should apply before delivering the envelope.
	Typing int `json:"typing,omitempty" yaml:"typing,omitempty" mapstructure:"typing"`

	// Fallback is the local re-ask policy. Nil means no local fallback.
	Fallback *FallbackOptions `json:"fallback,omitempty" yaml:"fallback,omitempty" mapstructure:"fallback"`

	// Content configures the content-store projection for list/carousel
	// messages. Required when the block message is a content message.
	Content *ContentOptions `json:"content,omitempty" yaml:"content,omitempty" mapstructure:"content"`
}

// Block is a node in the dialogue graph: one bot response/step, the triggers
// that activate it, and the transitions out of it.
//
// Blocks are authored externally and are read-only from the engine's
// perspective. Successor order is meaningful: it is the priority order used
// during trigger matching.
type Block struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	Position Position `json:"position" yaml:"position"`

	// Patterns qualify an incoming event to activate this block.
	Patterns []Pattern `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	// TriggerLabels restricts matching to subscribers carrying at least one
	// of these labels. Empty means unrestricted.
	TriggerLabels []string `json:"trigger_labels,omitempty" yaml:"trigger_labels,omitempty"`

	// AssignLabels are attached to the subscriber session once this block
	// executes.
	AssignLabels []string `json:"assign_labels,omitempty" yaml:"assign_labels,omitempty"`

	Message Message      `json:"message" yaml:"message"`
	Options BlockOptions `json:"options,omitempty" yaml:"options,omitempty"`

	// NextBlocks lists successor block IDs in priority order.
	NextBlocks []string `json:"next_blocks,omitempty" yaml:"next_blocks,omitempty"`

	// AttachedBlock chains another block immediately after this one without
	// consuming a new user event.
	AttachedBlock string `json:"attached_block,omitempty" yaml:"attached_block,omitempty"`

	StartsConversation bool `json:"starts_conversation,omitempty" yaml:"starts_conversation,omitempty"`

	CaptureVars []CaptureVar `json:"capture_vars,omitempty" yaml:"capture_vars,omitempty"`
}

// HasSelfLoop reports whether the block lists itself as a successor.
func (b *Block) HasSelfLoop() bool {
	for _, id := range b.NextBlocks {
		if id == b.ID {
			return true
		}
	}
	return false
}

// IsTerminal reports whether execution stops after this block: no successors
// to await input for and nothing attached to chain into.
func (b *Block) IsTerminal() bool {
	return len(b.NextBlocks) == 0 && b.AttachedBlock == ""
}
