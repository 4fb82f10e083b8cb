package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/models"
)

// DecisionProducer publishes ride decisions keyed by booking id. Keying
// by booking id keeps all decisions for one booking on one partition, so
// a consumer group serializes them per booking.
type DecisionProducer struct {
	writer *kafka.Writer
}

func NewDecisionProducer(brokers []string, topic string) *DecisionProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &DecisionProducer{writer: w}
}

func (p *DecisionProducer) Publish(ctx context.Context, d models.RideDecision) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(d.BookingID), Value: b})
}

func (p *DecisionProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// LocationProducer feeds driver position reports to the index consumer,
// keyed by driver id for per-driver ordering.
type LocationProducer struct {
	writer *kafka.Writer
}

func NewLocationProducer(brokers []string, topic string) *LocationProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &LocationProducer{writer: w}
}

func (p *LocationProducer) Publish(ctx context.Context, loc models.DriverLocation) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(loc.DriverID), Value: b})
}

func (p *LocationProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NewReader builds a consumer-group reader with the batch sizes used
// across the binaries.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}
