package domain

// Format discriminates the outgoing envelope variants.
type Format string

const (
	FormatText         Format = "text"
	FormatQuickReplies Format = "quickReplies"
	FormatButtons      Format = "buttons"
	FormatList         Format = "list"
	FormatCarousel     Format = "carousel"
	FormatAttachment   Format = "attachment"
)

// ButtonType discriminates button behaviors.
type ButtonType string

const (
	ButtonPostback ButtonType = "postback"
	ButtonWebURL   ButtonType = "web_url"
)

// Button is a single pressable button attached to a buttons message.
// Postback buttons require Payload; web_url buttons require URL.
type Button struct {
	Type    ButtonType `json:"type" yaml:"type" mapstructure:"type"`
	Title   string     `json:"title" yaml:"title" mapstructure:"title"`
	Payload string     `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
	URL     string     `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
}

// QuickReply is a suggested short answer displayed alongside a message.
type QuickReply struct {
	ContentType string `json:"content_type" yaml:"content_type" mapstructure:"content_type"`
	Title       string `json:"title" yaml:"title" mapstructure:"title"`
	Payload     string `json:"payload" yaml:"payload" mapstructure:"payload"`
}

// ContentFields maps content-store element fields onto list/carousel slots.
type ContentFields struct {
	Title    string `json:"title" yaml:"title" mapstructure:"title"`
	Subtitle string `json:"subtitle,omitempty" yaml:"subtitle,omitempty" mapstructure:"subtitle"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty" mapstructure:"image_url"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
}

// ContentOptions configures the content-store projection of a list/carousel
// block: which entity to query, the page size, and the field mapping.
type ContentOptions struct {
	Display Format         `json:"display" yaml:"display" mapstructure:"display"`
	Entity  string         `json:"entity,omitempty" yaml:"entity,omitempty" mapstructure:"entity"`
	Query   map[string]any `json:"query,omitempty" yaml:"query,omitempty" mapstructure:"query"`
	Limit   int            `json:"limit" yaml:"limit" mapstructure:"limit"`
	Fields  ContentFields  `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// AttachmentType classifies attachments for channels that care.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// AttachmentPayload references a stored attachment. The engine never embeds
// raw bytes; URL is filled in at render time by the attachment resolver.
type AttachmentPayload struct {
	AttachmentID string `json:"attachment_id,omitempty" yaml:"attachment_id,omitempty" mapstructure:"attachment_id"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
}

// AttachmentMessage is a file reference with optional quick replies.
type AttachmentMessage struct {
	Type         AttachmentType    `json:"type" yaml:"type" mapstructure:"type"`
	Payload      AttachmentPayload `json:"payload" yaml:"payload" mapstructure:"payload"`
	QuickReplies []QuickReply      `json:"quick_replies,omitempty" yaml:"quick_replies,omitempty" mapstructure:"quick_replies"`
}

// PluginMessage delegates envelope production to a registered plugin.
type PluginMessage struct {
	Name string         `json:"plugin" yaml:"plugin" mapstructure:"plugin"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
}

// Message is a block's authored message definition. Exactly one variant is
// populated; Kind reports which.
type Message struct {
	// Text holds one or more text variants; rendering picks one at random.
	Text []string `json:"text,omitempty" yaml:"text,omitempty"`

	// WithQuickReplies / WithButtons decorate a text with suggestions.
	QuickReplies *QuickRepliesDef `json:"quick_replies,omitempty" yaml:"quick_replies,omitempty"`
	Buttons      *ButtonsDef      `json:"buttons,omitempty" yaml:"buttons,omitempty"`

	// Attachment references a stored file.
	Attachment *AttachmentMessage `json:"attachment,omitempty" yaml:"attachment,omitempty"`

	// Content marks a list/carousel projection; the query lives in
	// BlockOptions.Content.
	Content bool `json:"content,omitempty" yaml:"content,omitempty"`

	// Plugin delegates to a registered plugin.
	Plugin *PluginMessage `json:"plugin,omitempty" yaml:"plugin,omitempty"`
}

// QuickRepliesDef is the authored form of a quick-replies message.
type QuickRepliesDef struct {
	Text         string       `json:"text" yaml:"text" mapstructure:"text"`
	QuickReplies []QuickReply `json:"quick_replies" yaml:"quick_replies" mapstructure:"quick_replies"`
}

// ButtonsDef is the authored form of a buttons message.
type ButtonsDef struct {
	Text    string   `json:"text" yaml:"text" mapstructure:"text"`
	Buttons []Button `json:"buttons" yaml:"buttons" mapstructure:"buttons"`
}

// MessageKind identifies the populated variant of a Message.
type MessageKind int

const (
	KindInvalid MessageKind = iota
	KindText
	KindQuickReplies
	KindButtons
	KindAttachment
	KindContent
	KindPlugin
)

// Kind returns the populated variant, or KindInvalid when zero or more than
// one variant is set.
func (m Message) Kind() MessageKind {
	kind := KindInvalid
	set := 0
	if len(m.Text) > 0 {
		kind, set = KindText, set+1
	}
	if m.QuickReplies != nil {
		kind, set = KindQuickReplies, set+1
	}
	if m.Buttons != nil {
		kind, set = KindButtons, set+1
	}
	if m.Attachment != nil {
		kind, set = KindAttachment, set+1
	}
	if m.Content {
		kind, set = KindContent, set+1
	}
	if m.Plugin != nil {
		kind, set = KindPlugin, set+1
	}
	if set != 1 {
		return KindInvalid
	}
	return kind
}
