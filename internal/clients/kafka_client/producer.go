package kafka_client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/sentiscope/internal/models"
)

// ResultsProducer publishes finished reports transactionally, so a report's
// records and summary become visible together or not at all.
type ResultsProducer struct {
	producer *kafka.Producer
	topic    string
}

func NewResultsProducer(ctx context.Context, cfg KafkaConfig) (*ResultsProducer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...", slog.String("broker", cfg.Broker))

	p, err := kafka.NewProducer(cfg.producerConfigMap())
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}

	rp := &ResultsProducer{producer: p, topic: cfg.Topic}
	go rp.logDeliveryFailures()

	slog.Info("[KafkaClient] Kafka Producer initialized successfully", slog.String("topic", cfg.Topic))
	return rp, nil
}

func (rp *ResultsProducer) logDeliveryFailures() {
	for e := range rp.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				slog.Warn("[KafkaClient] Delivery failed",
					slog.String("key", string(ev.Key)),
					slog.String("error", ev.TopicPartition.Error.Error()))
			}
		case kafka.Error:
			slog.Warn("[KafkaClient] Producer error", slog.String("error", ev.Error()))
		}
	}
}

func (rp *ResultsProducer) Name() string {
	return "kafka"
}

func (rp *ResultsProducer) Export(ctx context.Context, report models.Report) error {
	msgs, err := BuildMessages(rp.topic, report)
	if err != nil {
		return err
	}

	if err := rp.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("[KafkaClient] failed to begin transaction: %w", err)
	}

	for _, msg := range msgs {
		if err := rp.produce(msg); err != nil {
			return rp.abort(ctx, err)
		}
	}

	var commitErr error
	for i := 0; i < MAX_RETRIES; i++ {
		commitErr = rp.producer.CommitTransaction(ctx)
		if commitErr == nil {
			break
		}
		if kerr, ok := commitErr.(kafka.Error); ok && kerr.TxnRequiresAbort() {
			return rp.abort(ctx, commitErr)
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
	}
	if commitErr != nil {
		return fmt.Errorf("[KafkaClient] failed to commit transaction after %d retries: %w", MAX_RETRIES, commitErr)
	}

	slog.Info("[KafkaClient] Published report to Kafka transactionally",
		slog.String("topic", rp.topic),
		slog.String("report_id", report.ID),
		slog.Int("messages", len(msgs)))
	return nil
}

func (rp *ResultsProducer) produce(msg *kafka.Message) error {
	var err error
	for i := 0; i < MAX_RETRIES; i++ {
		err = rp.producer.Produce(msg, nil)
		if err == nil {
			return nil
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		// Local queue full; give librdkafka a chance to drain it.
		rp.producer.Flush(100)
	}
	return err
}

func (rp *ResultsProducer) abort(ctx context.Context, cause error) error {
	if abortErr := rp.producer.AbortTransaction(ctx); abortErr != nil {
		return fmt.Errorf("[KafkaClient] failed to abort transaction after %v: %w", cause, abortErr)
	}
	return fmt.Errorf("[KafkaClient] transaction aborted: %w", cause)
}

// Ping asks the broker for cluster metadata.
func (rp *ResultsProducer) Ping(ctx context.Context) error {
	timeout := FLUSH_TIMEOUT
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	if _, err := rp.producer.GetMetadata(&rp.topic, false, int(timeout.Milliseconds())); err != nil {
		return fmt.Errorf("[KafkaClient] metadata request failed: %w", err)
	}
	return nil
}

func (rp *ResultsProducer) Close() {
	slog.Info("[KafkaClient] Shutting down Kafka producer...")
	if remaining := rp.producer.Flush(int(FLUSH_TIMEOUT.Milliseconds())); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	rp.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}
