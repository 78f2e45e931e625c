package model

import (
	"encoding/json"
	"time"
)

// ToolStatus is the terminal state of one tool execution
type ToolStatus string

const (
	ToolStatusOK      ToolStatus = "ok"
	ToolStatusFailed  ToolStatus = "failed"
	ToolStatusSkipped ToolStatus = "skipped"
)

// ToolResult is the output of a single tool run. Payload is opaque to the
// dispatcher; Error is set iff Status is failed.
type ToolResult struct {
	ToolID  ToolID          `json:"tool_id"`
	Status  ToolStatus      `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// AnalysisResult is the assembled per-record analysis. A field is null when
// its tool was not planned, was skipped, or failed; failures are noted in
// Errors so a degraded record is marked rather than silently truncated.
type AnalysisResult struct {
	Sentiment       json.RawMessage   `json:"sentiment"`
	Topics          json.RawMessage   `json:"topics"`
	Keywords        json.RawMessage   `json:"keywords"`
	Summary         json.RawMessage   `json:"summary"`
	Recommendations json.RawMessage   `json:"recommendations"`
	Errors          map[string]string `json:"errors,omitempty"`
}

// summaryPayload is the expected shape of the summary tool output. The
// summarization tool emits both the summary and actionable recommendations.
type summaryPayload struct {
	Summary         json.RawMessage `json:"summary"`
	Recommendations json.RawMessage `json:"recommendations"`
}

// AssembleResult maps ordered tool results onto the output result object
func AssembleResult(results []ToolResult) *AnalysisResult {
	assembled := &AnalysisResult{}
	for _, r := range results {
		if r.Status != ToolStatusOK {
			if r.Error != "" {
				if assembled.Errors == nil {
					assembled.Errors = make(map[string]string)
				}
				assembled.Errors[string(r.ToolID)] = r.Error
			}
			continue
		}

		switch r.ToolID {
		case ToolSentiment:
			assembled.Sentiment = r.Payload
		case ToolTopics:
			assembled.Topics = r.Payload
		case ToolKeywords:
			assembled.Keywords = r.Payload
		case ToolSummary:
			var s summaryPayload
			if err := json.Unmarshal(r.Payload, &s); err == nil && len(s.Summary) > 0 {
				assembled.Summary = s.Summary
				assembled.Recommendations = s.Recommendations
			} else {
				assembled.Summary = r.Payload
			}
		}
	}
	return assembled
}

// RecordOutcome is the final per-record result. Every accepted record
// produces exactly one outcome, degraded or not.
type RecordOutcome struct {
	FeedbackID  FeedbackID      `json:"feedback_id"`
	CacheHit    bool            `json:"cache_hit"`
	Plan        ToolPlan        `json:"plan"`
	ToolResults []ToolResult    `json:"tool_results"`
	Results     *AnalysisResult `json:"results"`
	ProcessedAt time.Time       `json:"processed_timestamp"`
}
