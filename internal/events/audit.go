package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/slot"
)

// auditBinding matches every slot topic on the exchange.
const auditBinding = "parking.slot.#"

// AuditLog appends one human readable line per slot event to a file.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog { return &AuditLog{path: path} }

// Append decodes a slot.Change and writes it.  Undecodable bodies are
// returned as errors so the caller can reject the message.
func (a *AuditLog) Append(body []byte) error {
	var ev slot.Change
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.SlotID <= 0 || ev.Action == "" {
		return fmt.Errorf("incomplete event %q", ev.EventID)
	}
	actor := ev.ActorID
	if actor == "" {
		actor = "-"
	}
	line := fmt.Sprintf("[%s] slot %d %s | %s -> %s | actor=%s role=%s | gate=%s light=%s | event_id=%s\n",
		ev.OccurredAt, ev.SlotID, ev.Action, ev.From, ev.To, actor, ev.ActorRole,
		ev.Slot.GateStatus, ev.Slot.LightStatus, ev.EventID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// RunAMQPAudit binds cfg.AuditQueue to the slot exchange and appends every
// delivery to the audit log.  It reconnects with backoff and returns only
// when ctx is cancelled.
func RunAMQPAudit(ctx context.Context, cfg config.EventsConfig, log *logging.Logger) error {
	log = log.With("component", "audit-consumer", "backend", "amqp")
	audit := NewAuditLog(cfg.AuditLog)
	backoff := time.Second
	for {
		conn, err := dialAMQP(cfg.RabbitURL, cfg.RabbitDialTimeout)
		if err != nil {
			log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		log.Info("audit consumer connected", "queue", cfg.AuditQueue)

		err = consumeAMQP(ctx, conn, cfg, audit, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeAMQP(ctx context.Context, conn *amqp.Connection, cfg config.EventsConfig, audit *AuditLog, log *logging.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", "error", err)
	}
	if err := declareExchange(ch, cfg.Exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(cfg.AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(cfg.AuditQueue, auditBinding, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(cfg.AuditQueue, "parkd-audit", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := audit.Append(d.Body); err != nil {
				log.Error("audit append failed", "routing_key", d.RoutingKey, "error", err)
				_ = d.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// RunNATSAudit subscribes to every slot subject under cfg.NATSSubject and
// appends each message to the audit log until ctx is cancelled.  NATS core
// has no redelivery, so failures are only logged.
func RunNATSAudit(ctx context.Context, cfg config.EventsConfig, log *logging.Logger) error {
	log = log.With("component", "audit-consumer", "backend", "nats")
	audit := NewAuditLog(cfg.AuditLog)

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("parkd-audit"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(*nats.Conn) { log.Info("nats reconnected") }),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS at %s: %w", cfg.NATSURL, err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(Subject(cfg.NATSSubject, "parking.slot.>"), msgs)
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("flushing subscription: %w", err)
	}
	log.Info("audit consumer subscribed", "subject", sub.Subject)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-msgs:
			if err := audit.Append(m.Data); err != nil {
				log.Error("audit append failed", "subject", m.Subject, "error", err)
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
