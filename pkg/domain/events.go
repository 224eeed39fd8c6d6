package domain

import (
	"context"
	"time"
)

// HookEventType defines the category of a lifecycle event.
type HookEventType string

const (
	EventBlockEnter   HookEventType = "block_enter"
	EventBlockLeave   HookEventType = "block_leave"
	EventPluginCall   HookEventType = "plugin_call"
	EventPluginReturn HookEventType = "plugin_return"
	EventTurnEnd      HookEventType = "turn_end"
)

// HookBase contains common fields for all lifecycle events.
type HookBase struct {
	Timestamp    time.Time     `json:"timestamp"`
	Type         HookEventType `json:"type"`
	SubscriberID string        `json:"subscriber_id"`
}

// BlockEvent represents entering or leaving a block during a turn.
type BlockEvent struct {
	HookBase
	BlockID  string `json:"block_id"`
	Name     string `json:"name"`
	Fallback bool   `json:"fallback,omitempty"`
	Chained  bool   `json:"chained,omitempty"`
}

// PluginEvent represents a plugin invocation.
type PluginEvent struct {
	HookBase
	BlockID  string        `json:"block_id"`
	Plugin   string        `json:"plugin"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// TurnEvent summarizes one processed incoming event.
type TurnEvent struct {
	HookBase
	Matched   bool `json:"matched"`
	Envelopes int  `json:"envelopes"`
}

// LifecycleHooks defines callbacks for coordinator observability.
// Hooks run synchronously on the turn path; keep them cheap.
type LifecycleHooks struct {
	OnBlockEnter   func(context.Context, *BlockEvent)
	OnBlockLeave   func(context.Context, *BlockEvent)
	OnPluginCall   func(context.Context, *PluginEvent)
	OnPluginReturn func(context.Context, *PluginEvent)
	OnTurnEnd      func(context.Context, *TurnEvent)
}
