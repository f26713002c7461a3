package kafkax

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallbacks(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "booking.appointment.booked.v1", Key: []byte("appt-1")})
	if meta.EventID != "appt-1" || meta.EventType != "booking.appointment.booked.v1" {
		t.Fatalf("unexpected fallback meta %#v", meta)
	}

	meta = ExtractEventMeta(kafka.Message{
		Topic: "t",
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte("evt-1")},
			{Key: HeaderEventType, Value: []byte("x.v1")},
		},
	})
	if meta.EventID != "evt-1" || meta.EventType != "x.v1" {
		t.Fatalf("unexpected header meta %#v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %#v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(" , ")(context.Background()); !errors.Is(err, errNoBrokers) {
		t.Fatalf("expected errNoBrokers, got %v", err)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	parent := propagation.MapCarrier{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), parent)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: HeaderEventID, Value: []byte("e")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header, got %#v", headers)
	}

	out := ExtractTraceContext(context.Background(), kafka.Message{Headers: headers})
	if trace.SpanContextFromContext(out).TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace id not propagated")
	}
}

type memInbox struct {
	seen map[string]bool
	err  error
}

func (m *memInbox) Record(_ context.Context, eventID, _ string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func TestConsumerHandleDeduplicates(t *testing.T) {
	calls := 0
	inbox := &memInbox{seen: map[string]bool{}}
	c := newConsumer(nil, slog.New(slog.NewJSONHandler(io.Discard, nil)), inbox, "t", func(context.Context, kafka.Message) error {
		calls++
		return nil
	})

	msg := kafka.Message{Topic: "t", Headers: []kafka.Header{{Key: HeaderEventID, Value: []byte("evt-1")}}}
	c.Handle(context.Background(), msg)
	c.Handle(context.Background(), msg)
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}

	inbox.err = errors.New("db down")
	c.Handle(context.Background(), kafka.Message{Topic: "t", Key: []byte("evt-2")})
	if calls != 1 {
		t.Fatalf("handler must not run when the inbox fails")
	}
}
