package tool

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/murmur/pkg/model"
)

// Tool is a single analysis capability executed against one feedback text.
// The dispatcher treats the payload as opaque; each tool guarantees its
// payload is a valid JSON document.
type Tool interface {
	// ID returns the tool identifier from the closed tool set
	ID() model.ToolID

	// Description explains what the tool does, used when asking the LLM to
	// select tools from free-text instructions
	Description() string

	// Run executes the tool against the feedback text
	Run(ctx context.Context, feedbackText string) (json.RawMessage, error)
}
