package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wattlebot/wattle"
	"github.com/wattlebot/wattle/internal/console"
	"github.com/wattlebot/wattle/pkg/adapters/memory"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/plugin/llm"
	"github.com/wattlebot/wattle/pkg/plugin/script"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a flow from the terminal",
	Long:  `Runs the engine against an in-memory session store and connects your terminal as the channel. Type messages to converse; typing the title of a displayed quick reply or button sends its payload as a postback. Commands: /reset, /quit.`,
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("subscriber", "console", "Subscriber id used for the chat session")
}

func runChat(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	flowPath, _ := cmd.Flags().GetString("flow")
	subscriber, _ := cmd.Flags().GetString("subscriber")

	content := memory.NewContentStore()
	engine, err := wattle.New(flowPath,
		wattle.WithLogger(logger),
		wattle.WithContentStore(content),
		wattle.WithPlugins(llm.New(content, llm.WithLogger(logger)), script.New()),
	)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	console.PrintBanner()
	fmt.Printf("Flow: %s\n\n", engine.Name)

	renderer := console.NewRenderer()
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)

	// Suggestions from the last batch let a typed title stand in for a
	// payload click.
	var suggestions map[string]string

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := engine.Reset(ctx, subscriber); err != nil {
				fmt.Printf("reset failed: %v\n", err)
			}
			suggestions = nil
			continue
		}

		ev := domain.Event{
			SubscriberID: subscriber,
			Channel:      "console",
			Type:         domain.IncomingMessage,
			Text:         line,
		}
		if payload, ok := suggestions[strings.ToLower(line)]; ok {
			ev.Type = domain.IncomingPostback
			ev.Text = ""
			ev.Payload = payload
		}

		envelopes, err := engine.Handle(ctx, ev)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		fmt.Print(renderer.RenderBatch(envelopes))
		suggestions = collectSuggestions(envelopes)
	}

	return scanner.Err()
}

// collectSuggestions indexes clickable titles and payloads from a reply
// batch, lowercased for case-insensitive lookup.
func collectSuggestions(envelopes []domain.Envelope) map[string]string {
	out := make(map[string]string)
	add := func(title, payload string) {
		if payload == "" {
			return
		}
		if title != "" {
			out[strings.ToLower(title)] = payload
		}
		out[strings.ToLower(payload)] = payload
	}
	for _, env := range envelopes {
		if env.QuickReplies != nil {
			for _, qr := range env.QuickReplies.QuickReplies {
				add(qr.Title, qr.Payload)
			}
		}
		if env.Buttons != nil {
			for _, btn := range env.Buttons.Buttons {
				add(btn.Title, btn.Payload)
			}
		}
		if env.List != nil {
			for _, el := range env.List.Elements {
				add(el.Title, el.Payload)
			}
			for _, btn := range env.List.Buttons {
				add(btn.Title, btn.Payload)
			}
		}
	}
	return out
}
