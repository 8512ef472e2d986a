// Package redpanda publishes result events to a Kafka-compatible broker.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// EventTypeResultCompleted is the event_type header of result events.
const EventTypeResultCompleted = "interview.result.completed"

// kafkaClient is the subset of *kgo.Client the publisher needs.
type kafkaClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
	Ping(ctx context.Context) error
	Close()
}

// Publisher produces one record per written result. Delivery is
// at-least-once; consumers dedupe on result_id.
type Publisher struct {
	client kafkaClient
	topic  string
}

// NewPublisher connects to brokers and ensures topic exists.
func NewPublisher(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	slog.Info("creating redpanda publisher", slog.Any("brokers", brokers), slog.String("topic", topic))

	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	kt := kotel.NewKotel(kotel.WithTracer(tracer))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kt.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	p := newPublisher(client, topic)
	if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist", slog.String("topic", topic), slog.Any("error", err))
	}
	return p, nil
}

func newPublisher(c kafkaClient, topic string) *Publisher {
	return &Publisher{client: c, topic: topic}
}

// PublishResultCompleted implements domain.ResultPublisher.
func (p *Publisher) PublishResultCompleted(ctx domain.Context, ev domain.ResultCompletedEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=events.publish: marshal: %w", err)
	}
	headers := []kgo.RecordHeader{{Key: "event_type", Value: []byte(EventTypeResultCompleted)}}
	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		headers = append(headers, kgo.RecordHeader{Key: "request_id", Value: []byte(rid)})
	}
	rec := &kgo.Record{
		Topic:   p.topic,
		Key:     []byte(ev.InterviewID + ":" + ev.CandidateID),
		Value:   b,
		Headers: headers,
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		observability.RecordResultEvent("failed")
		return fmt.Errorf("op=events.publish: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	observability.RecordResultEvent("published")
	return nil
}

// Ping checks broker connectivity for readiness.
func (p *Publisher) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

// Close flushes and closes the client.
func (p *Publisher) Close() { p.client.Close() }

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

// PublishResultCompleted drops the event.
func (NoopPublisher) PublishResultCompleted(domain.Context, domain.ResultCompletedEvent) error {
	observability.RecordResultEvent("disabled")
	return nil
}
