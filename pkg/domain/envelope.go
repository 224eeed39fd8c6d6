package domain

// TextMessage is the rendered text variant.
type TextMessage struct {
	Text string `json:"text"`
}

// QuickRepliesMessage is the rendered quick-replies variant.
type QuickRepliesMessage struct {
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quick_replies"`
}

// ButtonsMessage is the rendered buttons variant.
type ButtonsMessage struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons"`
}

// ContentElement is one resolved content-store element projected into a
// list/carousel slot.
type ContentElement struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	URL      string `json:"url,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// Pagination reports the page window of a list/carousel message.
type Pagination struct {
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// ListMessage is the rendered list/carousel variant. When more elements
// remain beyond the page, Buttons carries a view-more postback whose payload
// encodes the next skip offset.
type ListMessage struct {
	Elements   []ContentElement `json:"elements"`
	Pagination Pagination       `json:"pagination"`
	Buttons    []Button         `json:"buttons,omitempty"`
}

// Envelope is the wire-level output unit handed to channel adapters.
// Exactly one variant field matching Format is populated; consumers must not
// assume the shape of any other.
type Envelope struct {
	Format Format `json:"format"`

	Text         *TextMessage         `json:"text,omitempty"`
	QuickReplies *QuickRepliesMessage `json:"quick_replies,omitempty"`
	Buttons      *ButtonsMessage      `json:"buttons,omitempty"`
	List         *ListMessage         `json:"list,omitempty"`
	Attachment   *AttachmentMessage   `json:"attachment,omitempty"`

	// TypingDelay is the per-block typing indicator pause, in milliseconds.
	TypingDelay int `json:"typing_delay,omitempty"`
}

// NewTextEnvelope builds the most common envelope form.
func NewTextEnvelope(text string) Envelope {
	return Envelope{Format: FormatText, Text: &TextMessage{Text: text}}
}

// Valid reports whether exactly the variant named by Format is populated.
func (e Envelope) Valid() bool {
	switch e.Format {
	case FormatText:
		return e.Text != nil && e.QuickReplies == nil && e.Buttons == nil && e.List == nil && e.Attachment == nil
	case FormatQuickReplies:
		return e.QuickReplies != nil && e.Text == nil && e.Buttons == nil && e.List == nil && e.Attachment == nil
	case FormatButtons:
		return e.Buttons != nil && e.Text == nil && e.QuickReplies == nil && e.List == nil && e.Attachment == nil
	case FormatList, FormatCarousel:
		return e.List != nil && e.Text == nil && e.QuickReplies == nil && e.Buttons == nil && e.Attachment == nil
	case FormatAttachment:
		return e.Attachment != nil && e.Text == nil && e.QuickReplies == nil && e.Buttons == nil && e.List == nil
	default:
		return false
	}
}
