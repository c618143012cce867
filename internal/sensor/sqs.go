package sensor

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
)

// SQSAPI is the subset of *sqs.Client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls a queue of occupancy reports.  A message is deleted
// once applied or once it is known to be permanently bad; anything else is
// left for redelivery after the visibility timeout.
type SQSConsumer struct {
	client   SQSAPI
	queueURL string
	wait     int32
	batch    int32
	reporter Reporter
	log      *logging.Logger
	retry    time.Duration
}

// NewSQSClient loads AWS credentials from the default chain.
func NewSQSClient(ctx context.Context, cfg config.SensorConfig) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg), nil
}

func NewSQSConsumer(client SQSAPI, cfg config.SensorConfig, reporter Reporter, log *logging.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:   client,
		queueURL: cfg.SQSQueueURL,
		wait:     int32(cfg.SQSWait / time.Second),
		batch:    cfg.SQSBatch,
		reporter: reporter,
		log:      log.With("component", "sqs-sensor"),
		retry:    5 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (c *SQSConsumer) Run(ctx context.Context) {
	c.log.Info("sqs consumer started", "queue", c.queueURL)
	for {
		if ctx.Err() != nil {
			c.log.Info("sqs consumer stopped")
			return
		}
		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.batch,
			WaitTimeSeconds:     c.wait,
			VisibilityTimeout:   60,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Warn("receive failed", "error", err, "retry_in", c.retry.String())
			select {
			case <-time.After(c.retry):
			case <-ctx.Done():
			}
			continue
		}
		for _, m := range out.Messages {
			c.process(ctx, aws.ToString(m.MessageId), aws.ToString(m.Body), m.ReceiptHandle)
		}
	}
}

func (c *SQSConsumer) process(ctx context.Context, id, body string, receipt *string) {
	r, err := ParseReport([]byte(body), 0)
	if err == nil {
		_, err = c.reporter.ReportOccupancy(ctx, r.SlotID, r.Occupied)
	}
	switch {
	case err == nil:
		c.delete(ctx, receipt)
	case Permanent(err):
		c.log.Warn("dropping occupancy report", "message_id", id, "error", err)
		c.delete(ctx, receipt)
	default:
		c.log.Error("occupancy report failed, leaving for redelivery", "message_id", id, "error", err)
	}
}

func (c *SQSConsumer) delete(ctx context.Context, receipt *string) {
	if receipt == nil {
		return
	}
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receipt,
	}); err != nil {
		c.log.Warn("delete message failed", "error", err)
	}
}
