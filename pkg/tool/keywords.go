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

//go:embed prompt/keywords.md
var keywordsPromptRaw string

var keywordsPromptTmpl = template.Must(template.New("keywords").Parse(keywordsPromptRaw))

var keywordsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"keywords": {
			Type:        genai.TypeArray,
			Description: "Significant keywords with their context",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"term": {
						Type:        genai.TypeString,
						Description: "The keyword",
					},
					"context": {
						Type:        genai.TypeString,
						Description: "What the customer said about it",
					},
					"tone": {
						Type:        genai.TypeString,
						Description: "Tone of the mention",
						Enum:        []string{"favorable", "unfavorable", "neutral"},
					},
				},
				Required: []string{"term"},
			},
		},
	},
	Required: []string{"keywords"},
}

// Keywords extracts significant terms and their surrounding context
type Keywords struct {
	gemini adapter.Gemini
}

func (t *Keywords) ID() model.ToolID {
	return model.ToolKeywords
}

func (t *Keywords) Description() string {
	return "Extracts significant keywords from the feedback together with the context they appear in"
}

func (t *Keywords) Run(ctx context.Context, feedbackText string) (json.RawMessage, error) {
	return generateJSON(ctx, t.gemini, keywordsPromptTmpl, feedbackText, keywordsSchema)
}
