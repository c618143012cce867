// Package events carries slot change events out of the process: to
// RabbitMQ or NATS for other services, and back in for the audit trail.
package events

import (
	"context"
	"errors"
)

// Publisher is the interface for emitting events.  It matches
// slot.Publisher plus Close.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher drops every event.  Used when EVENTS_BACKEND=none or the
// broker is unreachable at startup.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, event any) error { return nil }

func (NoopPublisher) Close() error { return nil }

// Sink is anything that accepts events but owns no connection, such as the
// websocket hub or the cache purger.
type Sink interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Multi fans an event out to every sink.  All sinks are tried; their errors
// are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks that are also Publishers.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if p, ok := s.(Publisher); ok {
			if err := p.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
