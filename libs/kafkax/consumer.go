package kafkax

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox records processed event ids. Record returns false for an event seen before.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
	topic   string
}

func NewConsumer(logger *slog.Logger, inbox Inbox, cfg ConsumerConfig, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, logger, inbox, cfg.Topic, handler)
}

func newConsumer(reader MessageReader, logger *slog.Logger, inbox Inbox, topic string, handler Handler) *Consumer {
	return &Consumer{reader: reader, logger: logger, inbox: inbox, handler: handler, topic: topic}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()
	c.logger.Info("kafka consumer started", "topic", c.topic)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "topic", c.topic, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle runs one message through the inbox and the handler. Handler errors are logged, not retried.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	ctxSpan, span := otel.Tracer("kafka").Start(ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := ExtractEventMeta(msg)
	if c.inbox != nil {
		fresh, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "event_id", meta.EventID, "err", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "inbox")
			return
		}
		if !fresh {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			return
		}
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "event_id", meta.EventID, "event_type", meta.EventType, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
	}
}
