package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrEmptyFeedbackID   = goerr.New("feedback_id is empty")
	ErrEmptyFeedbackText = goerr.New("feedback_text is empty")
	ErrInvalidTool       = goerr.New("invalid tool")
)

type FeedbackID string

// FeedbackRecord is a single customer feedback entry submitted for analysis.
// It is immutable once accepted; the engine only reads it.
type FeedbackRecord struct {
	ID           FeedbackID `json:"feedback_id"`
	CustomerName string     `json:"customer_name,omitempty"`
	Text         string     `json:"feedback_text"`
	Instructions string     `json:"instructions,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Validate checks the record satisfies the input contract
func (r *FeedbackRecord) Validate() error {
	if r.ID == "" {
		return ErrEmptyFeedbackID
	}
	if strings.TrimSpace(r.Text) == "" {
		return goerr.Wrap(ErrEmptyFeedbackText, "invalid record", goerr.V("feedback_id", r.ID))
	}
	return nil
}

// TrimmedInstructions returns the processing instructions with surrounding
// whitespace removed. A blank value means no instructions were given.
func (r *FeedbackRecord) TrimmedInstructions() string {
	return strings.TrimSpace(r.Instructions)
}

type ToolID string

const (
	ToolSentiment ToolID = "sentiment"
	ToolTopics    ToolID = "topics"
	ToolKeywords  ToolID = "keywords"
	ToolSummary   ToolID = "summary"
)

// AllTools is the closed tool set in canonical execution order. The default
// plan runs all of them in this order.
var AllTools = []ToolID{ToolSentiment, ToolTopics, ToolKeywords, ToolSummary}

// Validate checks if the tool ID belongs to the closed tool set
func (t ToolID) Validate() error {
	for _, known := range AllTools {
		if t == known {
			return nil
		}
	}
	return goerr.Wrap(ErrInvalidTool, "unknown tool", goerr.V("tool", t))
}
