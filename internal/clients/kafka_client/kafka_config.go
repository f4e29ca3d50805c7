package kafka_client

import (
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/sentiscope/config"
)

type KafkaConfig struct {
	Broker          string
	Topic           string
	TransactionalID string
}

func NewKafkaConfig(cfg config.KafkaConfig) KafkaConfig {
	topic := cfg.ResultsTopic
	if topic == "" {
		topic = KAFKA_TOPIC_SENTIMENT_RESULTS
	}
	return KafkaConfig{
		Broker:          cfg.Broker,
		Topic:           topic,
		TransactionalID: "sentiscope-results-producer",
	}
}

func (c KafkaConfig) producerConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":                     c.Broker,
		"security.protocol":                     "PLAINTEXT",
		"api.version.request":                   "true",
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
		"transactional.id":                      c.TransactionalID,
	}
}
