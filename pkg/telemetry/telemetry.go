// Package telemetry emits side observations at dispatch stage boundaries.
// Sinks are fire-and-forget: an unavailable sink must never block or fail
// the core path.
package telemetry

import (
	"context"
	"time"

	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
)

// CacheEvent is emitted per cache lookup
type CacheEvent struct {
	Key        model.CacheKey
	FeedbackID model.FeedbackID
	Hit        bool
	At         time.Time
}

// ResolutionEvent is emitted per instruction resolution
type ResolutionEvent struct {
	FeedbackID model.FeedbackID
	Reason     model.PlanReason
	Duration   time.Duration
	At         time.Time
}

// ToolEvent is emitted per tool call
type ToolEvent struct {
	FeedbackID model.FeedbackID
	ToolID     model.ToolID
	Status     model.ToolStatus
	Duration   time.Duration
	At         time.Time
}

// Sink consumes observations. Implementations must return promptly and
// swallow their own delivery failures.
type Sink interface {
	CacheLookup(ctx context.Context, ev CacheEvent)
	Resolution(ctx context.Context, ev ResolutionEvent)
	ToolCall(ctx context.Context, ev ToolEvent)
}

// Discard is a Sink that drops everything
type Discard struct{}

func (Discard) CacheLookup(context.Context, CacheEvent)     {}
func (Discard) Resolution(context.Context, ResolutionEvent) {}
func (Discard) ToolCall(context.Context, ToolEvent)         {}

// Logger is a Sink that writes observations to the context logger at debug
// level
type Logger struct{}

func (Logger) CacheLookup(ctx context.Context, ev CacheEvent) {
	logging.From(ctx).Debug("cache lookup",
		"key", ev.Key,
		"feedback_id", ev.FeedbackID,
		"hit", ev.Hit,
	)
}

func (Logger) Resolution(ctx context.Context, ev ResolutionEvent) {
	logging.From(ctx).Debug("instruction resolution",
		"feedback_id", ev.FeedbackID,
		"reason", ev.Reason,
		"duration", ev.Duration,
	)
}

func (Logger) ToolCall(ctx context.Context, ev ToolEvent) {
	logging.From(ctx).Debug("tool call",
		"feedback_id", ev.FeedbackID,
		"tool", ev.ToolID,
		"status", ev.Status,
		"duration", ev.Duration,
	)
}
