package tool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/tool"
	"google.golang.org/genai"
)

// mockGemini returns a fixed JSON document for every generation
type mockGemini struct {
	response string
	calls    int
	lastText string
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		m.lastText = contents[0].Parts[0].Text
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

func TestAnalysisRegistry(t *testing.T) {
	registry := tool.NewAnalysis(&mockGemini{response: `{}`})

	ids := registry.IDs()
	gt.A(t, ids).Length(4)
	gt.Equal(t, ids, model.AllTools)

	for _, id := range model.AllTools {
		_, ok := registry.Lookup(id)
		gt.True(t, ok)
	}

	_, ok := registry.Lookup("translation")
	gt.False(t, ok)

	descs := registry.Descriptions()
	gt.A(t, descs).Length(4)
	gt.S(t, descs[0]).Contains("**sentiment**")
}

func TestSentimentRun(t *testing.T) {
	mock := &mockGemini{response: `{"sentiment":"positive","confidence":0.92,"explanation":"upbeat wording"}`}
	registry := tool.NewAnalysis(mock)

	sentiment, ok := registry.Lookup(model.ToolSentiment)
	gt.True(t, ok)

	payload, err := sentiment.Run(context.Background(), "I love this product")
	gt.NoError(t, err)
	gt.Equal(t, mock.calls, 1)
	gt.S(t, mock.lastText).Contains("I love this product")

	var parsed struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
	}
	gt.NoError(t, json.Unmarshal(payload, &parsed))
	gt.Equal(t, parsed.Sentiment, "positive")
}

func TestToolRejectsInvalidJSON(t *testing.T) {
	mock := &mockGemini{response: `not json at all`}
	registry := tool.NewAnalysis(mock)

	summary, ok := registry.Lookup(model.ToolSummary)
	gt.True(t, ok)

	_, err := summary.Run(context.Background(), "some feedback")
	gt.Error(t, err)
}
