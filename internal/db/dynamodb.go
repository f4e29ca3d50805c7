package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/spacesedan/sentiscope/internal/utils"
)

const (
	MAX_BATCH_SIZE  = 25
	MAX_RETRIES     = 3
	INITIAL_BACKOFF = 500 * time.Millisecond
	RECORD_TTL      = 30 * 24 * time.Hour
)

// BatchWriter is the part of *dynamodb.Client the record store needs.
type BatchWriter interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// RecordItem is the stored shape of one classified record. The table key is
// (report_id, record_id).
type RecordItem struct {
	ReportID     string  `dynamodbav:"report_id"`
	RecordID     string  `dynamodbav:"record_id"`
	Handle       string  `dynamodbav:"handle"`
	Language     string  `dynamodbav:"language"`
	Position     int     `dynamodbav:"position"`
	CleanedText  string  `dynamodbav:"cleaned_text"`
	Subjectivity float64 `dynamodbav:"subjectivity"`
	Polarity     float64 `dynamodbav:"polarity"`
	Label        string  `dynamodbav:"label"`
	GeneratedAt  int64   `dynamodbav:"generated_at"`
	ExpiresAt    int64   `dynamodbav:"ttl"`
}

// RecordStore writes report records to a DynamoDB table.
type RecordStore struct {
	client  BatchWriter
	table   string
	ttl     time.Duration
	backoff time.Duration
}

func NewRecordStore(client BatchWriter, table string) *RecordStore {
	return &RecordStore{
		client:  client,
		table:   table,
		ttl:     RECORD_TTL,
		backoff: INITIAL_BACKOFF,
	}
}

func (s *RecordStore) Name() string {
	return "dynamodb"
}

func RecordItems(report models.Report, ttl time.Duration) ([]RecordItem, error) {
	expiresAt := report.GeneratedAt.Add(ttl).Unix()
	items := make([]RecordItem, 0, len(report.Records))
	for i, rec := range report.Records {
		if rec.ID == "" {
			return nil, fmt.Errorf("[DynamoDB] record at position %d has no id", i)
		}
		items = append(items, RecordItem{
			ReportID:     report.ID,
			RecordID:     rec.ID,
			Handle:       report.Handle,
			Language:     report.Language,
			Position:     i,
			CleanedText:  rec.CleanedText,
			Subjectivity: rec.Subjectivity,
			Polarity:     rec.Polarity,
			Label:        string(rec.Label),
			GeneratedAt:  report.GeneratedAt.Unix(),
			ExpiresAt:    expiresAt,
		})
	}
	return items, nil
}

// Export writes every record of report in batches of MAX_BATCH_SIZE,
// retrying unprocessed items with doubling backoff.
func (s *RecordStore) Export(ctx context.Context, report models.Report) error {
	items, err := RecordItems(report, s.ttl)
	if err != nil {
		return err
	}

	writeRequests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to marshal record %q: %w", item.RecordID, err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: av},
		})
	}

	for _, batch := range utils.Chunk(writeRequests, MAX_BATCH_SIZE) {
		if err := ctx.Err(); err != nil {
			slog.Warn("[DynamoDB] context canceled")
			return err
		}
		if err := s.writeBatch(ctx, batch); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Successfully stored records",
		slog.String("table", s.table),
		slog.String("report_id", report.ID),
		slog.Int("count", len(items)))
	return nil
}

func (s *RecordStore) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{s.table: batch},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write records: %w", err)
	}

	backoff := s.backoff
	for retry := 0; len(out.UnprocessedItems[s.table]) > 0 && retry < MAX_RETRIES; retry++ {
		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retry+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[s.table])))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			slog.Error("[DynamoDB] Error retrying batch write", slog.String("error", err.Error()))
			return fmt.Errorf("[DynamoDB] Failed to retry batch write: %w", err)
		}
	}

	if remaining := len(out.UnprocessedItems[s.table]); remaining > 0 {
		slog.Error("[DynamoDB] Some items were not written even after retries",
			slog.Int("remaining_items", remaining))
		return fmt.Errorf("[DynamoDB] %d items unprocessed after %d retries", remaining, MAX_RETRIES)
	}
	return nil
}
