package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
)

var (
	ErrPublishBufferFull = errors.New("event buffer full")
	ErrPublisherClosed   = errors.New("publisher closed")
)

const (
	minPublishBackoff = 500 * time.Millisecond
	maxPublishBackoff = 30 * time.Second
)

// AMQPPublisher publishes JSON events to a durable topic exchange with the
// event topic as routing key.  Publish only enqueues; a background goroutine
// owns the connection and reconnects with backoff, so a dead broker never
// holds up the caller.
type AMQPPublisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration
	log         *logging.Logger

	queue     chan outgoing
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

type outgoing struct {
	topic string
	msg   amqp.Publishing
}

// NewAMQPPublisher dials once so a misconfigured URL is reported at startup,
// then starts the delivery loop.
func NewAMQPPublisher(cfg config.EventsConfig, log *logging.Logger) (*AMQPPublisher, error) {
	p := newAMQPPublisher(cfg, log)
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.run()
	return p, nil
}

func newAMQPPublisher(cfg config.EventsConfig, log *logging.Logger) *AMQPPublisher {
	buf := cfg.PublishBuffer
	if buf <= 0 {
		buf = 256
	}
	return &AMQPPublisher{
		url:         cfg.RabbitURL,
		exchange:    cfg.Exchange,
		dialTimeout: dialTimeoutOr(cfg.RabbitDialTimeout),
		log:         log.With("component", "amqp-publisher"),
		queue:       make(chan outgoing, buf),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

func dialTimeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

// dialAMQP bounds both the TCP connect and the AMQP handshake by timeout.
func dialAMQP(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeoutOr(timeout)),
	})
}

func (p *AMQPPublisher) connect() error {
	conn, err := dialAMQP(p.url, p.dialTimeout)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel open: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	// durable, not auto-deleted, not internal, wait for confirmation
	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return nil
}

// Publish queues the event and returns at once.  When the queue is full the
// event is dropped and ErrPublishBufferFull returned.
func (p *AMQPPublisher) Publish(ctx context.Context, topic string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	out := outgoing{topic: topic, msg: amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         topic,
		Body:         body,
	}}

	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.queue <- out:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrPublishBufferFull, topic)
	}
}

func (p *AMQPPublisher) run() {
	defer close(p.stopped)
	defer p.closeConn()

	wait := minPublishBackoff
	for {
		select {
		case <-p.done:
			p.flush()
			return
		case out := <-p.queue:
			for !p.send(out) {
				select {
				case <-p.done:
					p.log.Warn("publisher closed while broker unavailable", "dropped", len(p.queue)+1)
					return
				case <-time.After(wait):
				}
				if wait < maxPublishBackoff {
					wait *= 2
				}
			}
			wait = minPublishBackoff
		}
	}
}

// flush makes one attempt at whatever is still queued.
func (p *AMQPPublisher) flush() {
	for {
		select {
		case out := <-p.queue:
			if !p.send(out) {
				p.log.Warn("dropping queued events on close", "dropped", len(p.queue)+1)
				return
			}
		default:
			return
		}
	}
}

func (p *AMQPPublisher) send(out outgoing) bool {
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.closeConn()
		if err := p.connect(); err != nil {
			p.log.Warn("broker unavailable", "topic", out.topic, "error", err)
			return false
		}
		p.log.Info("reconnected to broker")
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()
	if err := p.ch.PublishWithContext(ctx, p.exchange, out.topic, false, false, out.msg); err != nil {
		p.log.Warn("publish failed", "topic", out.topic, "error", err)
		p.closeConn()
		return false
	}
	return true
}

func (p *AMQPPublisher) closeConn() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close stops the delivery loop after one last attempt at queued events.
func (p *AMQPPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	<-p.stopped
	return nil
}
