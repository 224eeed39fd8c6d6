package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/wattlebot/wattle/pkg/domain"
)

// Renderer formats envelope batches for an interactive terminal chat.
type Renderer struct {
	markdown *glamour.TermRenderer
	profile  termenv.Profile
}

// NewRenderer builds a terminal renderer. Markdown styling auto-detects the
// terminal background.
func NewRenderer() *Renderer {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	return &Renderer{
		markdown: r,
		profile:  termenv.ColorProfile(),
	}
}

// Render formats one envelope as terminal output.
func (r *Renderer) Render(env domain.Envelope) string {
	var b strings.Builder

	switch env.Format {
	case domain.FormatText:
		b.WriteString(r.md(env.Text.Text))
	case domain.FormatQuickReplies:
		b.WriteString(r.md(env.QuickReplies.Text))
		for _, qr := range env.QuickReplies.QuickReplies {
			b.WriteString(r.chip(qr.Title))
			b.WriteString(" ")
		}
		b.WriteString("\n")
	case domain.FormatButtons:
		b.WriteString(r.md(env.Buttons.Text))
		for _, btn := range env.Buttons.Buttons {
			b.WriteString("  ")
			b.WriteString(r.button(btn))
			b.WriteString("\n")
		}
	case domain.FormatList, domain.FormatCarousel:
		for i, el := range env.List.Elements {
			b.WriteString(fmt.Sprintf("  %d. %s", env.List.Pagination.Skip+i+1, r.title(el.Title)))
			if el.Subtitle != "" {
				b.WriteString(" " + r.dim(el.Subtitle))
			}
			b.WriteString("\n")
		}
		p := env.List.Pagination
		b.WriteString(r.dim(fmt.Sprintf("  (%d-%d of %d)\n", p.Skip+1, p.Skip+len(env.List.Elements), p.Total)))
		for _, btn := range env.List.Buttons {
			b.WriteString("  ")
			b.WriteString(r.button(btn))
			b.WriteString("\n")
		}
	case domain.FormatAttachment:
		b.WriteString(r.dim(fmt.Sprintf("[%s] %s\n", env.Attachment.Type, env.Attachment.Payload.URL)))
	default:
		b.WriteString(r.dim("[unrenderable message]\n"))
	}

	return b.String()
}

// RenderBatch formats a full turn's envelopes.
func (r *Renderer) RenderBatch(envs []domain.Envelope) string {
	var b strings.Builder
	for _, env := range envs {
		b.WriteString(r.Render(env))
	}
	return b.String()
}

func (r *Renderer) md(text string) string {
	if r.markdown == nil {
		return text + "\n"
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (r *Renderer) chip(title string) string {
	return termenv.String("[" + title + "]").Foreground(r.profile.Color("#818cf8")).String()
}

func (r *Renderer) button(btn domain.Button) string {
	label := termenv.String("(" + btn.Title + ")").Foreground(r.profile.Color("#a78bfa")).String()
	if btn.Type == domain.ButtonWebURL {
		return label + " " + r.dim(btn.URL)
	}
	return label
}

func (r *Renderer) title(text string) string {
	return termenv.String(text).Bold().String()
}

func (r *Renderer) dim(text string) string {
	return termenv.String(text).Faint().String()
}

// PrintBanner outputs a startup banner for the chat mode.
func PrintBanner() {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`                 _   _   _      `, "#818cf8"},
		{` __      ____ _| |_| |_| | ___ `, "#a78bfa"},
		{` \ \ /\ / / _' | __| __| |/ _ \`, "#c084fc"},
		{`  \ V  V / (_| | |_| |_| |  __/`, "#e879f9"},
		{`   \_/\_/ \__,_|\__|\__|_|\___|`, "#f472b6"},
	}

	fmt.Println()
	for _, l := range lines {
		fmt.Println(termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Println()
}
