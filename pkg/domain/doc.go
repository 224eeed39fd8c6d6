/*
Package domain contains the core domain models of the Wattle flow engine.

It defines the entities of the conversation graph and its execution, free of
I/O and persistence concerns, following Hexagonal Architecture principles.

# Key Entities

  - Block: a node in the dialogue graph (message, triggers, transitions).
  - Pattern: a trigger alternative (text/regexp, payload, NLP constraints).
  - Message: the authored message definition, a tagged union over formats.
  - Envelope: the rendered outgoing message handed to channel adapters.
  - Session: the per-subscriber position, context, and labels.
  - Event: the normalized incoming user event.
*/
package domain
