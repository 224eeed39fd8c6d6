/*
Package wattle is a conversation flow engine for chatbots. It executes a
graph of blocks authored in an external visual editor: incoming subscriber
events are matched against block triggers, the matched block (and anything
attached to it) renders outgoing message envelopes, and the subscriber's
position in the flow is persisted between turns.

# Concept

A flow is a directed graph of blocks. Each block declares the patterns that
activate it (payloads, text or regex, NLP entity constraints), the message
it sends (text variants, quick replies, buttons, content lists, attachments,
or a plugin call), and its successors. The engine is deliberately stateless
about authoring: the graph is read-only, may change between turns, and every
turn revalidates the session's position against it.

Turns for one subscriber are strictly serialized, in-process and, with the
Redis locker, across replicas.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/wattlebot/wattle"
		"github.com/wattlebot/wattle/pkg/domain"
	)

	func main() {
		engine, err := wattle.New("./flows/onboarding.yaml")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		envelopes, err := engine.Handle(ctx, domain.Event{
			SubscriberID: "subscriber-1",
			Type:         domain.IncomingMessage,
			Text:         "hi",
		})
		if err != nil {
			log.Fatal(err)
		}

		for _, env := range envelopes {
			fmt.Printf("%+v\n", env)
		}
	}
*/
package wattle
