// Package llm provides the retrieval-augmented answer plugin: it searches
// the content store for documents related to the incoming text and asks an
// OpenAI-compatible chat model to answer grounded in them.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"
	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/plugin"
	"github.com/wattlebot/wattle/pkg/ports"
	"github.com/wattlebot/wattle/pkg/schema"
)

// Name is the registry key of this plugin.
const Name = "llm-answer"

// ragLimit bounds the number of retrieved documents folded into the prompt.
const ragLimit = 5

type settings struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	Temperature     float64 `mapstructure:"temperature"`
	Context         string  `mapstructure:"context"`
	Instructions    string  `mapstructure:"instructions"`
	FallbackMessage string  `mapstructure:"fallback_message"`
}

// Plugin implements the RAG answer flow. The OpenAI client is built lazily
// and cached keyed by (api_key, base_url), so a settings change rebuilds it.
type Plugin struct {
	content ports.ContentStore
	clients *plugin.Clients
	logger  *slog.Logger
}

// Option configures the Plugin.
type Option func(*Plugin)

// WithLogger sets the plugin logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) {
		p.logger = logger
	}
}

// New creates the plugin over a content store.
func New(content ports.ContentStore, opts ...Option) *Plugin {
	p := &Plugin{
		content: content,
		clients: plugin.NewClients(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return Name }

// Schema implements plugin.Plugin.
func (p *Plugin) Schema() schema.Schema {
	return schema.Schema{
		{Name: "api_key", Label: "API Key", Type: schema.TypeSecret},
		{Name: "base_url", Label: "Base URL", Type: schema.TypeText},
		{Name: "model", Label: "Model", Type: schema.TypeText, Default: "gpt-4o-mini"},
		{Name: "temperature", Label: "Temperature", Type: schema.TypeNumber, Default: 0.8},
		{Name: "context", Label: "Context", Type: schema.TypeTextarea,
			Default: "You are a helpful assistant answering questions for this organization."},
		{Name: "instructions", Label: "Instructions", Type: schema.TypeTextarea,
			Default: "Answer the user QUESTION using the DOCUMENTS above. " +
				"Keep your answer grounded in the facts of the DOCUMENTS. " +
				"If the DOCUMENTS do not contain the facts needed, apologize briefly. " +
				"Do not mention the DOCUMENTS or their existence."},
		{Name: plugin.FallbackMessageSetting, Label: "Fallback Message", Type: schema.TypeText},
	}
}

// Process implements plugin.Plugin.
func (p *Plugin) Process(ctx context.Context, in plugin.Input) (domain.Envelope, error) {
	var cfg settings
	if err := mapstructure.WeakDecode(in.Args, &cfg); err != nil {
		return domain.Envelope{}, fmt.Errorf("llm: decode settings: %w", err)
	}
	if cfg.Model == "" {
		return domain.Envelope{}, fmt.Errorf("llm: no model configured")
	}

	question := strings.TrimSpace(in.Session.Context.Text)
	documents := p.retrieve(ctx, question)

	client, err := p.client(cfg)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("llm: build client: %w", err)
	}

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(cfg.Model),
		Temperature: openai.Float(cfg.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(cfg.Context),
			openai.UserMessage(p.prompt(cfg, documents, question)),
		},
	})
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.Envelope{}, fmt.Errorf("llm: empty completion")
	}

	return domain.NewTextEnvelope(completion.Choices[0].Message.Content), nil
}

// retrieve runs the free-text search; an empty or failing lookup just means
// an unassisted answer.
func (p *Plugin) retrieve(ctx context.Context, question string) []ports.ContentElementData {
	if p.content == nil || question == "" {
		return nil
	}
	page, err := p.content.Search(ctx, ports.ContentQuery{Text: question}, 0, ragLimit)
	if err != nil {
		p.logger.Warn("llm content retrieval failed", "err", err)
		return nil
	}
	return page.Elements
}

func (p *Plugin) prompt(cfg settings, documents []ports.ContentElementData, question string) string {
	var sb strings.Builder
	sb.WriteString("DOCUMENTS:\n")
	for i, doc := range documents {
		fmt.Fprintf(&sb, "\tDOCUMENT %d\n\t\tTitle: %s\n\t\tData: %s\n", i, doc.Title, docBody(doc))
	}
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString(cfg.Instructions)
	sb.WriteString("\nQUESTION:\n")
	sb.WriteString(question)
	return sb.String()
}

func docBody(doc ports.ContentElementData) string {
	if body, ok := doc.Fields["body"].(string); ok {
		return body
	}
	if desc, ok := doc.Fields["description"].(string); ok {
		return desc
	}
	return doc.Title
}

func (p *Plugin) client(cfg settings) (*openai.Client, error) {
	key := cfg.APIKey + "|" + cfg.BaseURL
	cached, err := p.clients.GetOrCreate(key, func() (any, error) {
		opts := []openaiopt.RequestOption{}
		if cfg.APIKey != "" {
			opts = append(opts, openaiopt.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		return &client, nil
	})
	if err != nil {
		return nil, err
	}
	return cached.(*openai.Client), nil
}
