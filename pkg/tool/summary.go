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

//go:embed prompt/summary.md
var summaryPromptRaw string

var summaryPromptTmpl = template.Must(template.New("summary").Parse(summaryPromptRaw))

var summarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {
			Type:        genai.TypeString,
			Description: "Summary of the feedback in at most three sentences",
		},
		"recommendations": {
			Type:        genai.TypeArray,
			Description: "Actionable steps the business could take",
			Items: &genai.Schema{
				Type: genai.TypeString,
			},
		},
	},
	Required: []string{"summary", "recommendations"},
}

// Summary condenses a feedback text and derives actionable recommendations
type Summary struct {
	gemini adapter.Gemini
}

func (t *Summary) ID() model.ToolID {
	return model.ToolSummary
}

func (t *Summary) Description() string {
	return "Summarizes the feedback and derives actionable recommendations"
}

func (t *Summary) Run(ctx context.Context, feedbackText string) (json.RawMessage, error) {
	return generateJSON(ctx, t.gemini, summaryPromptTmpl, feedbackText, summarySchema)
}
