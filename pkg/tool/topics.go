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

//go:embed prompt/topics.md
var topicsPromptRaw string

var topicsPromptTmpl = template.Must(template.New("topics").Parse(topicsPromptRaw))

var topicsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"topics": {
			Type:        genai.TypeArray,
			Description: "Topics ordered by relevance",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name": {
						Type:        genai.TypeString,
						Description: "Short topic name",
					},
					"relevance": {
						Type:        genai.TypeNumber,
						Description: "Relevance score between 0 and 1",
					},
				},
				Required: []string{"name"},
			},
		},
		"primary_topic": {
			Type:        genai.TypeString,
			Description: "The single most prominent topic",
		},
	},
	Required: []string{"topics"},
}

// Topics identifies the subjects a feedback text talks about
type Topics struct {
	gemini adapter.Gemini
}

func (t *Topics) ID() model.ToolID {
	return model.ToolTopics
}

func (t *Topics) Description() string {
	return "Identifies the topics discussed in the feedback, ordered by relevance"
}

func (t *Topics) Run(ctx context.Context, feedbackText string) (json.RawMessage, error) {
	return generateJSON(ctx, t.gemini, topicsPromptTmpl, feedbackText, topicsSchema)
}
