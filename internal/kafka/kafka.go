package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"brandsite/internal/model"
)

// NewWriter returns a kafka-go writer keyed by session so a session's
// envelopes stay ordered on one partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
		BatchSize:    100,
	}
}

// NewReader constructs a reader bound to a consumer group.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		Topic:           topic,
		GroupID:         group,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		StartOffset:     kafka.FirstOffset,
		CommitInterval:  time.Second,
		ReadLagInterval: 5 * time.Second,
		MaxWait:         time.Second,
	})
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends telemetry envelopes to the telemetry topic.
type Publisher struct {
	w messageWriter
}

// NewPublisher publishes through w.
func NewPublisher(w *kafka.Writer) *Publisher {
	return &Publisher{w: w}
}

// Send encodes env and writes it keyed by session id.
func (p *Publisher) Send(ctx context.Context, env model.Envelope) error {
	msg, err := Encode(env)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// Encode builds the message for env.
func Encode(env model.Envelope) (kafka.Message, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return kafka.Message{Key: []byte(env.SessionID()), Value: payload}, nil
}

// Decode parses a telemetry message. Envelopes without a payload are
// rejected.
func Decode(msg kafka.Message) (model.Envelope, error) {
	var env model.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return model.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.PageView == nil && env.ButtonClick == nil && env.FunnelEvent == nil {
		return model.Envelope{}, fmt.Errorf("decode envelope: %q has no payload", env.Kind)
	}
	return env, nil
}
