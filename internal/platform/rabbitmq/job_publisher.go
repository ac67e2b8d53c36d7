package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherai-slides/internal/model"
)

// GenerationJobPublisher enqueues asynchronous generation runs.
type GenerationJobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewGenerationJobPublisher(conn *amqp.Connection, queueName string) *GenerationJobPublisher {
	return &GenerationJobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *GenerationJobPublisher) Publish(ctx context.Context, job model.GenerationJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal generation job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.PresentationID,
		},
	); err != nil {
		return fmt.Errorf("publish generation job failed: %w", err)
	}
	return nil
}
