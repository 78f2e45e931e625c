package dispatch

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/adapter"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/telemetry"
	"github.com/m-mizutani/murmur/pkg/tool"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/resolve.md
var resolvePromptRaw string

var resolvePrompt = template.Must(template.New("resolve").Parse(resolvePromptRaw))

// resolveSchema constrains the interpretation output to a closed enum of
// known tool identifiers.
func resolveSchema(ids []model.ToolID) *genai.Schema {
	enum := make([]string, len(ids))
	for i, id := range ids {
		enum[i] = string(id)
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"tools": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeString,
					Enum: enum,
				},
			},
		},
		Required: []string{"tools"},
	}
}

// Resolver turns free-text processing instructions into a ToolPlan. It never
// returns an error: any rejected or failed interpretation falls back to the
// full default plan so one odd instruction cannot sink a record.
type Resolver struct {
	gemini   adapter.Gemini
	registry *tool.Registry
	timeout  time.Duration
	sink     telemetry.Sink
}

// NewResolver builds a resolver over the given analysis registry
func NewResolver(gemini adapter.Gemini, registry *tool.Registry, timeout time.Duration, sink telemetry.Sink) *Resolver {
	return &Resolver{
		gemini:   gemini,
		registry: registry,
		timeout:  timeout,
		sink:     sink,
	}
}

// Resolve produces the plan for one record. Blank instructions short-circuit
// to the default plan without any interpretation call.
func (r *Resolver) Resolve(ctx context.Context, record model.FeedbackRecord) model.ToolPlan {
	startedAt := time.Now()
	plan := r.resolve(ctx, record)
	r.sink.Resolution(ctx, telemetry.ResolutionEvent{
		FeedbackID: record.ID,
		Reason:     plan.Reason,
		Duration:   time.Since(startedAt),
		At:         startedAt,
	})
	return plan
}

func (r *Resolver) resolve(ctx context.Context, record model.FeedbackRecord) model.ToolPlan {
	instructions := record.TrimmedInstructions()
	if instructions == "" {
		return model.DefaultPlan(model.PlanDefaultFallback)
	}

	tools, err := r.interpret(ctx, instructions)
	if err != nil {
		logging.From(ctx).Warn("instruction interpretation rejected, using default plan",
			"feedback_id", record.ID,
			"error", err,
		)
		return model.DefaultPlan(model.PlanGuardrailFallback)
	}

	return model.ToolPlan{Tools: tools, Reason: model.PlanExplicit}
}

func (r *Resolver) interpret(ctx context.Context, instructions string) ([]model.ToolID, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var buf bytes.Buffer
	if err := resolvePrompt.Execute(&buf, map[string]any{
		"Instructions": instructions,
		"Tools":        r.registry.Descriptions(),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute resolve prompt template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		ResponseSchema: resolveSchema(r.registry.IDs()),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := r.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to interpret instructions")
	}

	rawJSON, err := adapter.TextPart(resp)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Tools []model.ToolID `json:"tools"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &parsed); err != nil {
		return nil, goerr.Wrap(err, "interpretation output is not valid JSON")
	}

	plan := model.ToolPlan{Tools: parsed.Tools, Reason: model.PlanExplicit}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return parsed.Tools, nil
}
