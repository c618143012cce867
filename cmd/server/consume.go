package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parking-slot-reservation/internal/events"
)

var consumeEventsCmd = &cobra.Command{
	Use:   "consume-events",
	Short: "Append every slot event to the audit log",
	Long: `Subscribes to the configured event backend (EVENTS_BACKEND) and writes
one line per slot event to AUDIT_LOG_FILE until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var err error
		switch cfg.Events.Backend {
		case "amqp":
			err = events.RunAMQPAudit(ctx, cfg.Events, logger)
		case "nats":
			err = events.RunNATSAudit(ctx, cfg.Events, logger)
		default:
			return fmt.Errorf("consume-events needs EVENTS_BACKEND=amqp or nats, got %q", cfg.Events.Backend)
		}
		if errors.Is(err, context.Canceled) {
			logger.Info("audit consumer stopped")
			return nil
		}
		return err
	},
}
