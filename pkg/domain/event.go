package domain

// IncomingType classifies incoming events the way channels report them.
type IncomingType string

const (
	IncomingMessage    IncomingType = "message"
	IncomingPostback   IncomingType = "postback"
	IncomingQuickReply IncomingType = "quick_reply"
	IncomingLocation   IncomingType = "location"
	IncomingAttachment IncomingType = "attachments"
)

// PayloadType classifies structured (non-string) payloads.
type PayloadType string

const (
	PayloadLocation    PayloadType = "location"
	PayloadAttachments PayloadType = "attachments"
)

// EntityAnnotation is one NLP entity/value guess computed upstream.
type EntityAnnotation struct {
	Entity     string  `json:"entity"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// NLPAnnotations carries the precomputed NLP parse of an event.
type NLPAnnotations struct {
	Entities []EntityAnnotation `json:"entities"`
}

// Coordinates is a geolocation payload.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is the normalized incoming user event handed to the coordinator.
// NLP annotations are precomputed upstream and passed through verbatim.
type Event struct {
	SubscriberID string       `json:"subscriber_id"`
	Channel      string       `json:"channel,omitempty"`
	Type         IncomingType `json:"type"`

	Text        string          `json:"text,omitempty"`
	Payload     string          `json:"payload,omitempty"`
	PayloadType PayloadType     `json:"payload_type,omitempty"`
	Coordinates *Coordinates    `json:"coordinates,omitempty"`
	NLP         *NLPAnnotations `json:"nlp,omitempty"`

	// Labels are the sender's labels as known by the channel/subscriber
	// collaborator; they gate label-targeted blocks.
	Labels []string `json:"labels,omitempty"`

	// User is the sender profile snapshot, consumed for interpolation.
	User UserProfile `json:"user,omitempty"`
}

// UserProfile is the slice of the subscriber profile the engine consumes.
type UserProfile struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Language  string `json:"language,omitempty"`
}

// IsTextual reports whether the event carries free text eligible for local
// fallback re-asks (postbacks never trigger a re-ask).
func (e Event) IsTextual() bool {
	return e.Type == IncomingMessage || e.Type == IncomingQuickReply
}
