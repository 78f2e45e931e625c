package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/murmur/pkg/adapter"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
)

// observationRow is the streamed warehouse record. One table carries all
// observation kinds, discriminated by Kind.
type observationRow struct {
	ID         string    `bigquery:"id"`
	Kind       string    `bigquery:"kind"`
	FeedbackID string    `bigquery:"feedback_id"`
	CacheKey   string    `bigquery:"cache_key"`
	CacheHit   bool      `bigquery:"cache_hit"`
	Tool       string    `bigquery:"tool"`
	Status     string    `bigquery:"status"`
	Reason     string    `bigquery:"reason"`
	DurationMS int64     `bigquery:"duration_ms"`
	ObservedAt time.Time `bigquery:"observed_at"`
}

const (
	kindCacheLookup = "cache_lookup"
	kindResolution  = "resolution"
	kindToolCall    = "tool_call"
)

// BigQuery streams observation rows to a warehouse table through a bounded
// buffer. Emission never blocks: when the buffer is full the row is
// dropped, which is acceptable for telemetry and mandatory for the core
// path.
type BigQuery struct {
	client    adapter.BigQuery
	datasetID string
	tableID   string

	rows chan *observationRow
	done chan struct{}
	once sync.Once
}

// BigQueryOption is a functional option for the BigQuery sink
type BigQueryOption func(*BigQuery)

// WithBufferSize overrides the default row buffer size
func WithBufferSize(n int) BigQueryOption {
	return func(b *BigQuery) {
		b.rows = make(chan *observationRow, n)
	}
}

// NewBigQuery starts a sink streaming into datasetID.tableID
func NewBigQuery(client adapter.BigQuery, datasetID, tableID string, opts ...BigQueryOption) *BigQuery {
	b := &BigQuery{
		client:    client,
		datasetID: datasetID,
		tableID:   tableID,
		rows:      make(chan *observationRow, 256),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *BigQuery) run() {
	defer close(b.done)

	// Detached from request contexts: delivery outlives the batch call
	ctx := context.Background()
	for row := range b.rows {
		if err := b.client.Insert(ctx, b.datasetID, b.tableID, []any{row}); err != nil {
			logging.Default().Warn("failed to stream telemetry row",
				"kind", row.Kind, "error", err)
		}
	}
}

// Close stops accepting rows and waits for the buffer to drain
func (b *BigQuery) Close() {
	b.once.Do(func() {
		close(b.rows)
	})
	<-b.done
}

func (b *BigQuery) emit(row *observationRow) {
	row.ID = uuid.New().String()
	select {
	case b.rows <- row:
	default:
		// Buffer full; telemetry is droppable
	}
}

func (b *BigQuery) CacheLookup(ctx context.Context, ev CacheEvent) {
	b.emit(&observationRow{
		Kind:       kindCacheLookup,
		FeedbackID: string(ev.FeedbackID),
		CacheKey:   string(ev.Key),
		CacheHit:   ev.Hit,
		ObservedAt: ev.At,
	})
}

func (b *BigQuery) Resolution(ctx context.Context, ev ResolutionEvent) {
	b.emit(&observationRow{
		Kind:       kindResolution,
		FeedbackID: string(ev.FeedbackID),
		Reason:     string(ev.Reason),
		DurationMS: ev.Duration.Milliseconds(),
		ObservedAt: ev.At,
	})
}

func (b *BigQuery) ToolCall(ctx context.Context, ev ToolEvent) {
	b.emit(&observationRow{
		Kind:       kindToolCall,
		FeedbackID: string(ev.FeedbackID),
		Tool:       string(ev.ToolID),
		Status:     string(ev.Status),
		DurationMS: ev.Duration.Milliseconds(),
		ObservedAt: ev.At,
	})
}
