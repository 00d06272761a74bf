package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"consentd/internal/platform/kafka/producer"
	"consentd/pkg/platform/privacy"
)

// DefaultTopic is consumed by the SMS and email gateway.
const DefaultTopic = "consent.notifications"

// Producer is the subset of the Kafka producer the sender needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

type notification struct {
	ConsentID   string `json:"consent_id"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	Body        string `json:"body"`
}

// KafkaSender enqueues notifications on the gateway topic. Send returns once
// the broker has acknowledged the record.
type KafkaSender struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

func NewKafkaSender(p Producer, topic string, logger *slog.Logger) *KafkaSender {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSender{producer: p, topic: topic, logger: logger}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(notification{
		ConsentID:   string(msg.ConsentID),
		Channel:     string(msg.Channel),
		Destination: msg.Destination,
		Body:        msg.Body,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	err = s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(msg.ConsentID),
		Value: payload,
		Headers: map[string]string{
			"channel": string(msg.Channel),
		},
	})
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "notification enqueue failed",
				"consent_id", msg.ConsentID,
				"channel", msg.Channel,
				"destination", maskFor(msg),
				"error", err,
			)
		}
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func maskFor(msg Message) string {
	if msg.Channel == ChannelEmail {
		return privacy.MaskEmail(msg.Destination)
	}
	return privacy.MaskPhone(msg.Destination)
}
