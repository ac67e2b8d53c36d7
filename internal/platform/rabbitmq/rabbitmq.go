package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func New(ctx context.Context, url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}
	if err := Ping(ctx, conn, 3*time.Second); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Ping opens and closes a channel within timeout, which proves the broker answers.
func Ping(ctx context.Context, conn *amqp.Connection, timeout time.Duration) error {
	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		ch, err := conn.Channel()
		if err != nil {
			done <- fmt.Errorf("open rabbitmq channel failed: %w", err)
			return
		}
		done <- ch.Close()
	}()

	select {
	case <-checkCtx.Done():
		return fmt.Errorf("rabbitmq health check timeout: %w", checkCtx.Err())
	case err := <-done:
		return err
	}
}

// DeclareQueue declares a durable, non-exclusive queue.
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return nil
}
