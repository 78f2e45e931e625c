package tool

import (
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/murmur/pkg/adapter"
	"github.com/m-mizutani/murmur/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/sentiment.md
var sentimentPromptRaw string

var sentimentPromptTmpl = template.Must(template.New("sentiment").Parse(sentimentPromptRaw))

var sentimentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sentiment": {
			Type:        genai.TypeString,
			Description: "Overall sentiment classification",
			Enum:        []string{"positive", "negative", "neutral", "mixed"},
		},
		"confidence": {
			Type:        genai.TypeNumber,
			Description: "Confidence score between 0 and 1",
		},
		"explanation": {
			Type:        genai.TypeString,
			Description: "Short explanation referring to the feedback wording",
		},
	},
	Required: []string{"sentiment", "confidence"},
}

// Sentiment classifies the overall sentiment of a feedback text
type Sentiment struct {
	gemini adapter.Gemini
}

func (t *Sentiment) ID() model.ToolID {
	return model.ToolSentiment
}

func (t *Sentiment) Description() string {
	return "Classifies the overall sentiment of the feedback (positive, negative, neutral, mixed) with a confidence score"
}

func (t *Sentiment) Run(ctx context.Context, feedbackText string) (json.RawMessage, error) {
	return generateJSON(ctx, t.gemini, sentimentPromptTmpl, feedbackText, sentimentSchema)
}
