package kafka_client

import "time"

const (
	KAFKA_TOPIC_SENTIMENT_RESULTS = "sentiment.results" // classified records and report summaries
)

const (
	MESSAGE_TYPE_HEADER  = "type"
	REPORT_ID_HEADER     = "report_id"
	MESSAGE_TYPE_RECORD  = "record"
	MESSAGE_TYPE_SUMMARY = "summary"
)

const (
	MAX_RETRIES   = 3
	FLUSH_TIMEOUT = 5 * time.Second
)
