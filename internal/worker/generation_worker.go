package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherai-slides/internal/logger"
	"gopherai-slides/internal/model"
	"gopherai-slides/internal/platform/rabbitmq"
)

// JobHandler runs one queued generation. Its error is already recorded on the
// presentation, so the worker only logs it, unless the error reports itself as
// Temporary: then the run never started and the job is requeued.
type JobHandler func(ctx context.Context, job model.GenerationJob) error

type GenerationWorker struct {
	conn      *amqp.Connection
	handler   JobHandler
	queueName string
	prefetch  int
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGenerationWorker(conn *amqp.Connection, handler JobHandler, queueName string, prefetch int, log *logger.Logger) *GenerationWorker {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &GenerationWorker{
		conn:      conn,
		handler:   handler,
		queueName: queueName,
		prefetch:  prefetch,
		log:       log.With("worker", "generation"),
	}
}

func (w *GenerationWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	for i := 0; i < w.prefetch; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.consume(workerCtx, deliveries)
		}()
	}
	go func() {
		w.wg.Wait()
		_ = ch.Close()
	}()

	w.log.Info("generation worker started", "queue", w.queueName, "prefetch", w.prefetch)
	return nil
}

func (w *GenerationWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, d)
		}
	}
}

func (w *GenerationWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job model.GenerationJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.PresentationID == "" {
		w.log.Error("decode generation job failed", "error", err)
		_ = d.Nack(false, false)
		return
	}

	err := w.handler(ctx, job)
	if isTemporary(err) {
		w.log.Warn("generation job requeued", "presentation_id", job.PresentationID, "error", err)
		_ = d.Nack(false, true)
		return
	}
	// other failures are terminal: the presentation is already marked failed
	if err != nil {
		w.log.Warn("generation job failed", "presentation_id", job.PresentationID, "error", err)
	}
	_ = d.Ack(false)
}

func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

func (w *GenerationWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
