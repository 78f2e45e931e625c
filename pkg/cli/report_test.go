package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/murmur/pkg/model"
)

// memStorage is an in-memory object store for archive tests
type memStorage struct {
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

type memWriter struct {
	bytes.Buffer
	store *memStorage
	key   string
}

func (w *memWriter) Close() error {
	w.store.objects[w.key] = w.Bytes()
	return nil
}

func (m *memStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &memWriter{store: m, key: key}, nil
}

func (m *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, goerr.New("object not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestReportArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()

	resp := &BatchResponse{
		Results: []RecordResponse{
			{
				FeedbackID:  "fb-001",
				CacheHit:    true,
				Results:     &model.AnalysisResult{Sentiment: json.RawMessage(`{"sentiment":"positive"}`)},
				ProcessedAt: time.Now().UTC(),
			},
		},
	}

	key, err := archiveReport(ctx, storage, resp)
	gt.NoError(t, err)
	gt.S(t, key).Contains("reports/")

	var buf bytes.Buffer
	gt.NoError(t, fetchReport(ctx, storage, key, &buf))

	var fetched BatchResponse
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &fetched))
	gt.A(t, fetched.Results).Length(1)
	gt.Equal(t, fetched.Results[0].FeedbackID, model.FeedbackID("fb-001"))
	gt.True(t, fetched.Results[0].CacheHit)
}

func TestFetchReportMissingObject(t *testing.T) {
	var buf bytes.Buffer
	err := fetchReport(context.Background(), newMemStorage(), "reports/nope.json", &buf)
	gt.Error(t, err)
}
