package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/adapter"
	"google.golang.org/genai"
)

// generateJSON runs one structured-output generation: the prompt template
// is rendered with the feedback text, the response is constrained by the
// schema, and the returned document is checked to be valid JSON before
// being handed back as an opaque payload.
func generateJSON(ctx context.Context, gemini adapter.Gemini, tmpl *template.Template, feedbackText string, schema *genai.Schema) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{
		"FeedbackText": feedbackText,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute tool prompt template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		ResponseSchema: schema,
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate tool output")
	}

	rawJSON, err := adapter.TextPart(resp)
	if err != nil {
		return nil, err
	}

	var check any
	if err := json.Unmarshal([]byte(rawJSON), &check); err != nil {
		return nil, goerr.Wrap(err, "tool output is not valid JSON", goerr.V("json", rawJSON))
	}

	return json.RawMessage(rawJSON), nil
}
