package telemetry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/telemetry"
)

type mockBigQuery struct {
	mu   sync.Mutex
	rows []any
	err  error
}

func (m *mockBigQuery) Insert(ctx context.Context, datasetID, tableID string, rows []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *mockBigQuery) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func TestBigQuerySinkDelivers(t *testing.T) {
	mock := &mockBigQuery{}
	sink := telemetry.NewBigQuery(mock, "telemetry", "observations")

	ctx := context.Background()
	sink.CacheLookup(ctx, telemetry.CacheEvent{
		Key:        "abc",
		FeedbackID: "fb-1",
		Hit:        true,
		At:         time.Now(),
	})
	sink.Resolution(ctx, telemetry.ResolutionEvent{
		FeedbackID: "fb-1",
		Reason:     model.PlanExplicit,
		Duration:   40 * time.Millisecond,
		At:         time.Now(),
	})
	sink.ToolCall(ctx, telemetry.ToolEvent{
		FeedbackID: "fb-1",
		ToolID:     model.ToolSentiment,
		Status:     model.ToolStatusOK,
		Duration:   120 * time.Millisecond,
		At:         time.Now(),
	})

	sink.Close()
	gt.Equal(t, mock.count(), 3)
}

func TestBigQuerySinkNeverBlocks(t *testing.T) {
	mock := &mockBigQuery{err: goerr.New("warehouse down")}
	sink := telemetry.NewBigQuery(mock, "telemetry", "observations", telemetry.WithBufferSize(1))

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			sink.ToolCall(ctx, telemetry.ToolEvent{
				FeedbackID: "fb-flood",
				ToolID:     model.ToolTopics,
				Status:     model.ToolStatusFailed,
				At:         time.Now(),
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink emission blocked the caller")
	}
	sink.Close()
}
