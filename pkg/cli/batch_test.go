package cli_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/cli"
	"github.com/m-mizutani/murmur/pkg/model"
)

func TestParseBatchRequest(t *testing.T) {
	raw := []byte(`{
		"feedback": [
			{
				"feedback_id": "fb-001",
				"customer_name": "Jane Smith",
				"feedback_text": "The checkout flow is confusing",
				"instructions": "only sentiment",
				"timestamp": "2026-08-20T10:30:00Z"
			},
			{
				"feedback_id": "fb-002",
				"feedback_text": "Shipping was fast"
			}
		]
	}`)

	req, err := cli.ParseBatchRequest(raw)
	gt.NoError(t, err)
	gt.A(t, req.Feedback).Length(2)
	gt.Equal(t, req.Feedback[0].ID, model.FeedbackID("fb-001"))
	gt.Equal(t, req.Feedback[0].Instructions, "only sentiment")
	gt.Equal(t, req.Feedback[1].CustomerName, "")
}

func TestParseBatchRequestBareArray(t *testing.T) {
	raw := []byte(`[{"feedback_id": "fb-001", "feedback_text": "Shipping was fast"}]`)

	req, err := cli.ParseBatchRequest(raw)
	gt.NoError(t, err)
	gt.A(t, req.Feedback).Length(1)
	gt.Equal(t, req.Feedback[0].ID, model.FeedbackID("fb-001"))
}

func TestParseBatchRequestRejectsInvalidJSON(t *testing.T) {
	_, err := cli.ParseBatchRequest([]byte(`{"feedback": [`))
	gt.Error(t, err)
}

func TestParseBatchRequestRejectsWrongShape(t *testing.T) {
	_, err := cli.ParseBatchRequest([]byte(`{"feedback": "not an array"}`))
	gt.Error(t, err)
}

func TestParseBatchRequestRejectsEmptyBatch(t *testing.T) {
	_, err := cli.ParseBatchRequest([]byte(`{"feedback": []}`))
	gt.Error(t, err)
}
