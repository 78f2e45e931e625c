package dispatch

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/telemetry"
	"github.com/m-mizutani/murmur/pkg/tool"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
)

// Dispatcher executes a ToolPlan against one feedback text. Tool failures
// are isolated: each tool gets its own timeout and a failure is recorded in
// the result instead of aborting the remaining tools.
type Dispatcher struct {
	registry *tool.Registry
	timeout  time.Duration
	sink     telemetry.Sink
}

func NewDispatcher(registry *tool.Registry, timeout time.Duration, sink telemetry.Sink) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		sink:     sink,
	}
}

// Dispatch runs the plan's tools in order and returns one ToolResult per
// planned tool. The returned slice always has len(plan.Tools) elements.
func (d *Dispatcher) Dispatch(ctx context.Context, feedbackID model.FeedbackID, feedbackText string, plan model.ToolPlan) []model.ToolResult {
	results := make([]model.ToolResult, 0, len(plan.Tools))

	for _, id := range plan.Tools {
		startedAt := time.Now()
		result := d.runOne(ctx, id, feedbackText)
		results = append(results, result)

		d.sink.ToolCall(ctx, telemetry.ToolEvent{
			FeedbackID: feedbackID,
			ToolID:     id,
			Status:     result.Status,
			Duration:   time.Since(startedAt),
			At:         startedAt,
		})

		if result.Status == model.ToolStatusFailed {
			logging.From(ctx).Warn("tool call failed",
				"feedback_id", feedbackID,
				"tool", id,
				"error", result.Error,
			)
		}
	}

	return results
}

func (d *Dispatcher) runOne(ctx context.Context, id model.ToolID, feedbackText string) model.ToolResult {
	// A record whose context already died skips its remaining tools
	// instead of burning timeouts one by one.
	if err := ctx.Err(); err != nil {
		return model.ToolResult{
			ToolID: id,
			Status: model.ToolStatusSkipped,
			Error:  err.Error(),
		}
	}

	target, ok := d.registry.Lookup(id)
	if !ok {
		return model.ToolResult{
			ToolID: id,
			Status: model.ToolStatusFailed,
			Error:  goerr.Wrap(model.ErrInvalidTool, "tool not registered", goerr.V("tool", id)).Error(),
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	payload, err := target.Run(toolCtx, feedbackText)
	if err != nil {
		return model.ToolResult{
			ToolID: id,
			Status: model.ToolStatusFailed,
			Error:  err.Error(),
		}
	}

	return model.ToolResult{
		ToolID:  id,
		Status:  model.ToolStatusOK,
		Payload: payload,
	}
}
