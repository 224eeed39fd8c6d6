package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/ports"
)

// Default envelope cardinality caps. Both are soft, platform-agnostic limits:
// exceeding them is a block configuration error that truncates with a
// warning, never a runtime failure.
const (
	DefaultMaxQuickReplies = 10
	DefaultMaxButtons      = 3
)

// ViewMoreTitle is the label of the pagination button appended to
// list/carousel pages that have more elements.
const ViewMoreTitle = "View More"

// Renderer turns a matched block's message definition into a concrete
// envelope. Rendering never mutates the graph; it reads the session and may
// perform content/attachment lookups.
type Renderer struct {
	content     ports.ContentStore
	attachments ports.AttachmentResolver
	settings    ports.SettingsProvider

	maxQuickReplies int
	maxButtons      int
	pick            func(n int) int
	logger          *slog.Logger
}

// Option configures the Renderer.
type Option func(*Renderer)

// WithLogger sets the logger for configuration warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithContentStore wires the content store used for list/carousel blocks.
func WithContentStore(store ports.ContentStore) Option {
	return func(r *Renderer) {
		r.content = store
	}
}

// WithAttachmentResolver wires attachment resolution.
func WithAttachmentResolver(resolver ports.AttachmentResolver) Option {
	return func(r *Renderer) {
		r.attachments = resolver
	}
}

// WithSettings wires the settings provider used for {contact.*} tokens.
func WithSettings(settings ports.SettingsProvider) Option {
	return func(r *Renderer) {
		r.settings = settings
	}
}

// WithCaps overrides the quick-reply/button cardinality caps.
func WithCaps(maxQuickReplies, maxButtons int) Option {
	return func(r *Renderer) {
		r.maxQuickReplies = maxQuickReplies
		r.maxButtons = maxButtons
	}
}

// WithPicker overrides the random variant picker (tests).
func WithPicker(pick func(n int) int) Option {
	return func(r *Renderer) {
		r.pick = pick
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		maxQuickReplies: DefaultMaxQuickReplies,
		maxButtons:      DefaultMaxButtons,
		pick:            rand.Intn,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the envelope for a block. When fallback is set, the
// block's local fallback messages are rendered instead of its main message.
func (r *Renderer) Render(ctx context.Context, block *domain.Block, sess *domain.Session, fallback bool) (domain.Envelope, error) {
	contact := r.contactSettings(ctx)

	if fallback {
		fb := block.Options.Fallback
		if fb == nil || len(fb.Message) == 0 {
			return domain.Envelope{}, fmt.Errorf("block %s: %w: fallback render without fallback messages", block.ID, domain.ErrInvalidMessage)
		}
		env := domain.NewTextEnvelope(Interpolate(r.pickVariant(fb.Message), sess, contact))
		env.TypingDelay = block.Options.Typing
		return env, nil
	}

	var (
		env domain.Envelope
		err error
	)
	switch block.Message.Kind() {
	case domain.KindText:
		env = domain.NewTextEnvelope(Interpolate(r.pickVariant(block.Message.Text), sess, contact))
	case domain.KindQuickReplies:
		env = r.renderQuickReplies(block, sess, contact)
	case domain.KindButtons:
		env = r.renderButtons(block, sess, contact)
	case domain.KindContent:
		env, err = r.renderContent(ctx, block, sess)
	case domain.KindAttachment:
		env, err = r.renderAttachment(ctx, block)
	case domain.KindPlugin:
		err = fmt.Errorf("block %s: plugin messages are executed by the plugin runtime, not rendered", block.ID)
	default:
		err = fmt.Errorf("block %s: %w", block.ID, domain.ErrInvalidMessage)
	}
	if err != nil {
		return domain.Envelope{}, err
	}

	env.TypingDelay = block.Options.Typing
	return env, nil
}

func (r *Renderer) pickVariant(variants []string) string {
	if len(variants) == 1 {
		return variants[0]
	}
	return variants[r.pick(len(variants))]
}

func (r *Renderer) renderQuickReplies(block *domain.Block, sess *domain.Session, contact map[string]any) domain.Envelope {
	def := block.Message.QuickReplies
	replies := def.QuickReplies
	if len(replies) > r.maxQuickReplies {
		r.logger.Warn("quick replies exceed cap, truncating",
			"block_id", block.ID,
			"count", len(replies),
			"cap", r.maxQuickReplies,
		)
		replies = replies[:r.maxQuickReplies]
	}

	out := make([]domain.QuickReply, len(replies))
	for i, qr := range replies {
		out[i] = qr
		if qr.Title != "" {
			out[i].Title = Interpolate(qr.Title, sess, contact)
		}
		if out[i].ContentType == "" {
			out[i].ContentType = "text"
		}
	}

	return domain.Envelope{
		Format: domain.FormatQuickReplies,
		QuickReplies: &domain.QuickRepliesMessage{
			Text:         Interpolate(def.Text, sess, contact),
			QuickReplies: out,
		},
	}
}

func (r *Renderer) renderButtons(block *domain.Block, sess *domain.Session, contact map[string]any) domain.Envelope {
	def := block.Message.Buttons
	out := make([]domain.Button, 0, r.maxButtons)
	for _, btn := range def.Buttons {
		if !validButton(btn) {
			r.logger.Warn("button missing required field, skipping",
				"block_id", block.ID,
				"type", string(btn.Type),
				"title", btn.Title,
			)
			continue
		}
		if len(out) == r.maxButtons {
			r.logger.Warn("buttons exceed cap, truncating",
				"block_id", block.ID,
				"count", len(def.Buttons),
				"cap", r.maxButtons,
			)
			break
		}
		btn.Title = Interpolate(btn.Title, sess, contact)
		out = append(out, btn)
	}

	return domain.Envelope{
		Format: domain.FormatButtons,
		Buttons: &domain.ButtonsMessage{
			Text:    Interpolate(def.Text, sess, contact),
			Buttons: out,
		},
	}
}

func validButton(btn domain.Button) bool {
	switch btn.Type {
	case domain.ButtonPostback:
		return btn.Title != "" && btn.Payload != ""
	case domain.ButtonWebURL:
		return btn.Title != "" && btn.URL != ""
	default:
		return false
	}
}

// renderContent resolves a list/carousel projection against the content
// store. The pagination cursor comes from the session's per-block skip
// offset, which the coordinator refreshes from VIEW_MORE postbacks so a page
// request is reconstructible from the incoming event alone.
//
// A failing or empty content lookup degrades to an empty page ("no results"),
// never a crash.
func (r *Renderer) renderContent(ctx context.Context, block *domain.Block, sess *domain.Session) (domain.Envelope, error) {
	opts := block.Options.Content
	if opts == nil {
		return domain.Envelope{}, fmt.Errorf("block %s: content message without content options: %w", block.ID, domain.ErrInvalidMessage)
	}
	format := opts.Display
	if format != domain.FormatList && format != domain.FormatCarousel {
		format = domain.FormatList
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	skip := sess.Context.Skip[block.ID]

	empty := domain.Envelope{
		Format: format,
		List: &domain.ListMessage{
			Elements:   []domain.ContentElement{},
			Pagination: domain.Pagination{Total: 0, Skip: skip, Limit: limit},
		},
	}

	if r.content == nil {
		r.logger.Warn("content block without a content store", "block_id", block.ID)
		return empty, nil
	}

	page, err := r.content.Search(ctx, ports.ContentQuery{Entity: opts.Entity, Filter: opts.Query}, skip, limit)
	if err != nil {
		if !errors.Is(err, domain.ErrNoContent) {
			r.logger.Error("content lookup failed, rendering empty page",
				"block_id", block.ID,
				"err", err,
			)
		}
		return empty, nil
	}

	elements := make([]domain.ContentElement, 0, len(page.Elements))
	for _, raw := range page.Elements {
		elements = append(elements, r.projectElement(ctx, block, opts, raw))
	}

	msg := &domain.ListMessage{
		Elements:   elements,
		Pagination: domain.Pagination{Total: page.Total, Skip: skip, Limit: limit},
	}
	if skip+limit < page.Total {
		msg.Buttons = []domain.Button{{
			Type:    domain.ButtonPostback,
			Title:   ViewMoreTitle,
			Payload: domain.ViewMorePayload(skip + limit),
		}}
	}

	return domain.Envelope{Format: format, List: msg}, nil
}

// projectElement maps a raw content element onto the block's field template.
func (r *Renderer) projectElement(ctx context.Context, block *domain.Block, opts *domain.ContentOptions, raw ports.ContentElementData) domain.ContentElement {
	el := domain.ContentElement{
		Title:   fieldString(raw, opts.Fields.Title, raw.Title),
		Payload: raw.Title + ":" + raw.ID,
	}
	if opts.Fields.Subtitle != "" {
		el.Subtitle = fieldString(raw, opts.Fields.Subtitle, "")
	}
	if opts.Fields.URL != "" {
		el.URL = fieldString(raw, opts.Fields.URL, "")
	}
	if opts.Fields.ImageURL != "" {
		el.ImageURL = r.resolveImage(ctx, block, fieldString(raw, opts.Fields.ImageURL, ""))
	}
	return el
}

// resolveImage accepts either a direct URL or an attachment ID.
func (r *Renderer) resolveImage(ctx context.Context, block *domain.Block, value string) string {
	if value == "" || strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	if r.attachments == nil {
		return ""
	}
	ref, err := r.attachments.Resolve(ctx, value)
	if err != nil {
		r.logger.Warn("unable to resolve content image attachment",
			"block_id", block.ID,
			"attachment_id", value,
			"err", err,
		)
		return ""
	}
	return ref.URL
}

func fieldString(raw ports.ContentElementData, field, fallback string) string {
	if field == "" {
		return fallback
	}
	if field == "title" {
		return raw.Title
	}
	if v, ok := raw.Fields[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return fallback
}

func (r *Renderer) renderAttachment(ctx context.Context, block *domain.Block) (domain.Envelope, error) {
	def := block.Message.Attachment
	if def.Payload.AttachmentID == "" {
		// Remote URLs in authored blocks are a legacy form; stored
		// attachments are the only supported reference.
		return domain.Envelope{}, fmt.Errorf("block %s: attachment message without attachment_id: %w", block.ID, domain.ErrInvalidMessage)
	}
	if r.attachments == nil {
		return domain.Envelope{}, fmt.Errorf("block %s: no attachment resolver configured", block.ID)
	}

	ref, err := r.attachments.Resolve(ctx, def.Payload.AttachmentID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("block %s: resolve attachment %s: %w", block.ID, def.Payload.AttachmentID, err)
	}

	msg := &domain.AttachmentMessage{
		Type: def.Type,
		Payload: domain.AttachmentPayload{
			AttachmentID: def.Payload.AttachmentID,
			URL:          ref.URL,
		},
		QuickReplies: append([]domain.QuickReply(nil), def.QuickReplies...),
	}
	return domain.Envelope{Format: domain.FormatAttachment, Attachment: msg}, nil
}

func (r *Renderer) contactSettings(ctx context.Context) map[string]any {
	if r.settings == nil {
		return nil
	}
	contact, err := r.settings.Settings(ctx, "contact")
	if err != nil {
		r.logger.Warn("unable to load contact settings", "err", err)
		return nil
	}
	return contact
}
