package kafka

import (
	"strings"
	"time"
)

// ProducerConfig holds configuration for the Kafka producer.
type ProducerConfig struct {
	Brokers         string
	ClientID        string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// DefaultProducerConfig returns production defaults: full ISR acks and a
// bounded delivery timeout so a dead broker surfaces as a delivery failure.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		ClientID:        "consentd",
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}
}

// BrokerList splits a comma separated broker string.
func BrokerList(brokers string) []string {
	var out []string
	for b := range strings.SplitSeq(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
