package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

var errNoBrokers = errors.New("kafka brokers not configured")

// ReadyCheck succeeds once any broker accepts a connection. When topics are
// given, that broker must also know every one of them.
func ReadyCheck(brokers string, topics ...string) func(context.Context) error {
	dialer := &kafka.Dialer{Timeout: 2 * time.Second}
	return func(ctx context.Context) error {
		addrs := SplitBrokers(brokers)
		if len(addrs) == 0 {
			return errNoBrokers
		}
		var err error
		for _, addr := range addrs {
			if err = probe(ctx, dialer, addr, topics); err == nil {
				return nil
			}
		}
		return err
	}
}

func probe(ctx context.Context, dialer *kafka.Dialer, addr string, topics []string) error {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if len(topics) == 0 {
		return nil
	}
	partitions, err := conn.ReadPartitions(topics...)
	if err != nil {
		return fmt.Errorf("read partitions from %s: %w", addr, err)
	}
	known := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		known[p.Topic] = true
	}
	for _, t := range topics {
		if !known[t] {
			return fmt.Errorf("topic %s missing on %s", t, addr)
		}
	}
	return nil
}
