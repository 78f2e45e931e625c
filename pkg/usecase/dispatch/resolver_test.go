package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/telemetry"
	"github.com/m-mizutani/murmur/pkg/tool"
	"github.com/m-mizutani/murmur/pkg/usecase/dispatch"
	"google.golang.org/genai"
)

// mockGemini returns a fixed response, or blocks until the context dies
type mockGemini struct {
	response string
	err      error
	block    bool
	calls    int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: m.response}},
				},
			},
		},
	}, nil
}

func newResolver(gemini *mockGemini) *dispatch.Resolver {
	registry := tool.NewAnalysis(gemini)
	return dispatch.NewResolver(gemini, registry, time.Second, telemetry.Discard{})
}

func record(instructions string) model.FeedbackRecord {
	return model.FeedbackRecord{
		ID:           "fb-001",
		Text:         "The checkout flow is confusing",
		Instructions: instructions,
		Timestamp:    time.Now(),
	}
}

func TestResolveBlankInstructionsSkipsInterpretation(t *testing.T) {
	for _, instructions := range []string{"", "   ", "\n\t"} {
		gemini := &mockGemini{response: `{"tools":["sentiment"]}`}
		plan := newResolver(gemini).Resolve(context.Background(), record(instructions))

		gt.Equal(t, gemini.calls, 0)
		gt.Equal(t, plan.Reason, model.PlanDefaultFallback)
		gt.Equal(t, plan.Tools, model.AllTools)
	}
}

func TestResolveExplicitSubset(t *testing.T) {
	gemini := &mockGemini{response: `{"tools":["sentiment","keywords"]}`}
	plan := newResolver(gemini).Resolve(context.Background(), record("sentiment and keywords only"))

	gt.Equal(t, gemini.calls, 1)
	gt.Equal(t, plan.Reason, model.PlanExplicit)
	gt.Equal(t, plan.Tools, []model.ToolID{model.ToolSentiment, model.ToolKeywords})
}

func TestResolveUnknownToolFallsBack(t *testing.T) {
	gemini := &mockGemini{response: `{"tools":["sentiment","translation"]}`}
	plan := newResolver(gemini).Resolve(context.Background(), record("translate this"))

	gt.Equal(t, plan.Reason, model.PlanGuardrailFallback)
	gt.Equal(t, plan.Tools, model.AllTools)
}

func TestResolveEmptyToolListFallsBack(t *testing.T) {
	gemini := &mockGemini{response: `{"tools":[]}`}
	plan := newResolver(gemini).Resolve(context.Background(), record("do nothing"))

	gt.Equal(t, plan.Reason, model.PlanGuardrailFallback)
	gt.Equal(t, plan.Tools, model.AllTools)
}

func TestResolveMalformedOutputFallsBack(t *testing.T) {
	gemini := &mockGemini{response: `the tools you want are sentiment`}
	plan := newResolver(gemini).Resolve(context.Background(), record("analyze sentiment"))

	gt.Equal(t, plan.Reason, model.PlanGuardrailFallback)
	gt.Equal(t, plan.Tools, model.AllTools)
}

func TestResolveDuplicateToolsFallBack(t *testing.T) {
	gemini := &mockGemini{response: `{"tools":["sentiment","sentiment"]}`}
	plan := newResolver(gemini).Resolve(context.Background(), record("sentiment twice"))

	gt.Equal(t, plan.Reason, model.PlanGuardrailFallback)
}

func TestResolveInterpretationErrorFallsBack(t *testing.T) {
	gemini := &mockGemini{err: errors.New("model unavailable")}
	plan := newResolver(gemini).Resolve(context.Background(), record("summarize"))

	gt.Equal(t, plan.Reason, model.PlanGuardrailFallback)
	gt.Equal(t, plan.Tools, model.AllTools)
}

func TestResolveTimeoutFallsBack(t *testing.T) {
	gemini := &mockGemini{block: true}
	registry := tool.NewAnalysis(gemini)
	resolver := dispatch.NewResolver(gemini, registry, 20*time.Millisecond, telemetry.Discard{})

	plan := resolver.Resolve(context.Background(), record("summarize"))
	gt.Equal(t, plan.Reason, model.PlanGuardrailFallback)
	gt.Equal(t, plan.Tools, model.AllTools)
}
