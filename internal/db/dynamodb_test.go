package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatchWriter struct {
	calls []int
	// unprocessed is how many items of each call to hand back.
	unprocessed []int
	err         error
	written     []map[string]types.AttributeValue
}

func (f *fakeBatchWriter) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	call := len(f.calls)
	var table string
	var reqs []types.WriteRequest
	for t, r := range in.RequestItems {
		table, reqs = t, r
	}
	f.calls = append(f.calls, len(reqs))

	keep := 0
	if call < len(f.unprocessed) {
		keep = min(f.unprocessed[call], len(reqs))
	}
	for _, r := range reqs[:len(reqs)-keep] {
		f.written = append(f.written, r.PutRequest.Item)
	}

	out := &dynamodb.BatchWriteItemOutput{}
	if keep > 0 {
		out.UnprocessedItems = map[string][]types.WriteRequest{table: reqs[len(reqs)-keep:]}
	}
	return out, nil
}

func reportWith(n int) models.Report {
	r := models.Report{
		ID:          "report-1",
		Handle:      "acme",
		Language:    "en",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		r.Records = append(r.Records, models.ClassifiedRecord{
			ID:          fmt.Sprintf("t%d", i),
			CleanedText: "text",
			Polarity:    0.25,
			Label:       models.LabelPositive,
		})
	}
	r.Counts = models.AggregateCounts{models.LabelNegative: 0, models.LabelNeutral: 0, models.LabelPositive: n}
	return r
}

func newTestStore(w BatchWriter) *RecordStore {
	s := NewRecordStore(w, "records")
	s.backoff = time.Millisecond
	return s
}

func TestExportWritesInBatchesOf25(t *testing.T) {
	w := &fakeBatchWriter{}
	require.NoError(t, newTestStore(w).Export(context.Background(), reportWith(60)))

	assert.Equal(t, []int{25, 25, 10}, w.calls)
	require.Len(t, w.written, 60)

	var first RecordItem
	require.NoError(t, attributevalue.UnmarshalMap(w.written[0], &first))
	assert.Equal(t, "report-1", first.ReportID)
	assert.Equal(t, "t0", first.RecordID)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, "Positive", first.Label)
	assert.Equal(t, int64(1709294400), first.GeneratedAt)
	assert.Equal(t, first.GeneratedAt+int64(RECORD_TTL/time.Second), first.ExpiresAt)
}

func TestExportRetriesUnprocessedItems(t *testing.T) {
	w := &fakeBatchWriter{unprocessed: []int{3, 1}}
	require.NoError(t, newTestStore(w).Export(context.Background(), reportWith(5)))

	assert.Equal(t, []int{5, 3, 1}, w.calls)
	assert.Len(t, w.written, 5)
}

func TestExportFailsWhenItemsStayUnprocessed(t *testing.T) {
	w := &fakeBatchWriter{unprocessed: []int{2, 2, 2, 2}}
	err := newTestStore(w).Export(context.Background(), reportWith(4))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 items unprocessed")
	assert.Len(t, w.calls, 1+MAX_RETRIES)
}

func TestExportSurfacesClientError(t *testing.T) {
	w := &fakeBatchWriter{err: errors.New("throttled")}
	err := newTestStore(w).Export(context.Background(), reportWith(1))
	assert.ErrorContains(t, err, "throttled")
}

func TestExportEmptyReport(t *testing.T) {
	w := &fakeBatchWriter{}
	require.NoError(t, newTestStore(w).Export(context.Background(), reportWith(0)))
	assert.Empty(t, w.calls)
}

func TestRecordItemsRequiresIDs(t *testing.T) {
	r := reportWith(2)
	r.Records[1].ID = ""
	_, err := RecordItems(r, time.Hour)
	assert.Error(t, err)
}
