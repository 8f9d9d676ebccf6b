package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/store"
	"github.com/reporover/backend/pkg/workflow"

	"github.com/rabbitmq/amqp091-go"
)

// StartConsumer opens a prefetch-1 channel on conn and processes ingest
// deliveries in a background goroutine until ctx is done. The consumer must
// run in the process that serves queries: the graph and entity records live
// in process memory, so a separate worker would ingest into stores no query
// can read.
func StartConsumer(
	ctx context.Context,
	conn *amqp091.Connection,
	engine *workflow.Engine,
	knowledge *store.KnowledgeStore,
) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	consumerTag := fmt.Sprintf("%s_consumer", IngestQueue)
	msgs, err := ch.Consume(
		IngestQueue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", IngestQueue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", IngestQueue)
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", IngestQueue)

				processingErr := ProcessIngestMessage(ctx, engine, knowledge, string(msg.Body))
				if processingErr != nil {
					logger.Error("Error processing message", "queue", IngestQueue, "err", processingErr)
					HandleProcessingError(ch, msg, IngestQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", IngestQueue)
				}

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
			}
		}
	}()

	return nil
}
