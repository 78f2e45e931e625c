package cli

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/model"
)

// BatchRequest is the input document: a set of feedback records to analyze
type BatchRequest struct {
	Feedback []model.FeedbackRecord `json:"feedback"`
}

// RecordResponse is the per-record output document
type RecordResponse struct {
	FeedbackID  model.FeedbackID      `json:"feedback_id"`
	CacheHit    bool                  `json:"cache_hit"`
	Results     *model.AnalysisResult `json:"results"`
	ProcessedAt time.Time             `json:"processed_timestamp"`
}

// BatchResponse is the full batch output, one entry per input record in
// input order
type BatchResponse struct {
	Results []RecordResponse `json:"results"`
}

var batchSchema = mustBatchSchema()

// mustBatchSchema resolves the input validation schema. Record-level rules
// (batch size, duplicate IDs, blank text) stay with the coordinator; the
// schema only rejects structurally broken documents early.
func mustBatchSchema() *jsonschema.Resolved {
	schema := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"feedback"},
		Properties: map[string]*jsonschema.Schema{
			"feedback": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"feedback_id", "feedback_text"},
					Properties: map[string]*jsonschema.Schema{
						"feedback_id":   {Type: "string"},
						"customer_name": {Type: "string"},
						"feedback_text": {Type: "string"},
						"instructions":  {Type: "string"},
						"timestamp":     {Type: "string", Format: "date-time"},
					},
				},
			},
		},
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(err)
	}
	return resolved
}

// ParseBatchRequest validates raw JSON against the batch schema and decodes
// it. Both the `{"feedback": [...]}` envelope and a bare top-level array are
// accepted. Schema violations are reported before any record-level
// validation.
func ParseBatchRequest(data []byte) (*BatchRequest, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		data = append([]byte(`{"feedback":`), append(data, '}')...)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "batch request is not valid JSON")
	}
	if err := batchSchema.Validate(doc); err != nil {
		return nil, goerr.Wrap(err, "batch request does not match the input schema")
	}

	var req BatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, goerr.Wrap(err, "failed to decode batch request")
	}
	if len(req.Feedback) == 0 {
		return nil, goerr.New("batch request has no feedback records")
	}
	return &req, nil
}

// NewBatchResponse projects record outcomes onto the output document
func NewBatchResponse(outcomes []*model.RecordOutcome) *BatchResponse {
	resp := &BatchResponse{
		Results: make([]RecordResponse, 0, len(outcomes)),
	}
	for _, outcome := range outcomes {
		resp.Results = append(resp.Results, RecordResponse{
			FeedbackID:  outcome.FeedbackID,
			CacheHit:    outcome.CacheHit,
			Results:     outcome.Results,
			ProcessedAt: outcome.ProcessedAt,
		})
	}
	return resp
}
