package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each report as one message on a topic.
type KafkaNotifier struct {
	Writer MessageWriter
	Key    string
	now    func() time.Time
}

func NewKafkaNotifier(brokers []string, topic, key string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaNotifier{Writer: w, Key: key, now: time.Now}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Send(ctx context.Context, text string) error {
	now := time.Now
	if k.now != nil {
		now = k.now
	}
	msg := kafka.Message{
		Key:   []byte(k.Key),
		Value: []byte(text),
		Time:  now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("text/plain; charset=utf-8")},
		},
	}
	if err := k.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error { return k.Writer.Close() }
