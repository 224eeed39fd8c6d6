package domain

import "errors"

// ErrSessionNotFound is returned when a subscriber ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrBlockNotFound is returned when a block ID is not present in the graph.
var ErrBlockNotFound = errors.New("block not found")

// ErrPluginNotFound is returned when a block references an unregistered plugin.
var ErrPluginNotFound = errors.New("plugin not found")

// ErrPluginTimeout is returned when a plugin invocation exceeds its deadline.
var ErrPluginTimeout = errors.New("plugin timed out")

// ErrNoContent is returned by content stores when a query yields nothing.
var ErrNoContent = errors.New("no content found")

// ErrAttachmentNotFound is returned when an attachment ID cannot be resolved.
var ErrAttachmentNotFound = errors.New("attachment not found")

// ErrInvalidMessage is returned when a block message has zero or several
// variants populated.
var ErrInvalidMessage = errors.New("invalid message format")
