package kafka_client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/sentiscope/internal/models"
)

// ReportSummary is the last message published for a report.
type ReportSummary struct {
	ReportID    string                 `json:"report_id"`
	Handle      string                 `json:"handle"`
	Language    string                 `json:"language"`
	GeneratedAt time.Time              `json:"generated_at"`
	Counts      models.AggregateCounts `json:"counts"`
	Total       int                    `json:"total"`
	Skipped     int                    `json:"skipped"`
}

// BuildMessages encodes report as one message per record, keyed by record ID,
// followed by a summary keyed by report ID.
func BuildMessages(topic string, report models.Report) ([]*kafka.Message, error) {
	msgs := make([]*kafka.Message, 0, len(report.Records)+1)

	for _, rec := range report.Records {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record %q: %w", rec.ID, err)
		}
		msgs = append(msgs, newMessage(topic, rec.ID, value, MESSAGE_TYPE_RECORD, report.ID))
	}

	summary := ReportSummary{
		ReportID:    report.ID,
		Handle:      report.Handle,
		Language:    report.Language,
		GeneratedAt: report.GeneratedAt,
		Counts:      report.Counts,
		Total:       report.Counts.Total(),
		Skipped:     len(report.Skipped),
	}
	value, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	msgs = append(msgs, newMessage(topic, report.ID, value, MESSAGE_TYPE_SUMMARY, report.ID))

	return msgs, nil
}

func newMessage(topic, key string, value []byte, msgType, reportID string) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
		Headers: []kafka.Header{
			{Key: MESSAGE_TYPE_HEADER, Value: []byte(msgType)},
			{Key: REPORT_ID_HEADER, Value: []byte(reportID)},
		},
	}
}
