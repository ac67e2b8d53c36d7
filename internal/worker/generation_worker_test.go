package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-slides/internal/logger"
	"gopherai-slides/internal/model"
)

type fakeAck struct {
	acks, nacks int
	requeued    bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acks++; return nil }

func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = requeue
	return nil
}

func (f *fakeAck) Reject(uint64, bool) error { return nil }

func TestHandleRunsJobAndAcks(t *testing.T) {
	var got model.GenerationJob
	w := NewGenerationWorker(nil, func(_ context.Context, job model.GenerationJob) error {
		got = job
		return nil
	}, "q", 1, logger.Nop())

	ack := &fakeAck{}
	w.handle(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"presentation_id":"p1","prompt":"solar","urls":["https://a"]}`),
	})

	assert.Equal(t, "p1", got.PresentationID)
	assert.Equal(t, []string{"https://a"}, got.URLs)
	assert.Equal(t, 1, ack.acks)
}

func TestHandleAcksFailedRun(t *testing.T) {
	w := NewGenerationWorker(nil, func(context.Context, model.GenerationJob) error {
		return errors.New("generation failed")
	}, "q", 1, logger.Nop())

	ack := &fakeAck{}
	w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(`{"presentation_id":"p1"}`)})
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

type retryableErr struct{}

func (retryableErr) Error() string   { return "database unavailable" }
func (retryableErr) Temporary() bool { return true }

func TestHandleRequeuesJobThatNeverStarted(t *testing.T) {
	w := NewGenerationWorker(nil, func(context.Context, model.GenerationJob) error {
		return fmt.Errorf("run: %w", retryableErr{})
	}, "q", 1, logger.Nop())

	ack := &fakeAck{}
	w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(`{"presentation_id":"p1"}`)})
	assert.Zero(t, ack.acks)
	require.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeued)
}

func TestHandleDropsUndecodableJob(t *testing.T) {
	called := false
	w := NewGenerationWorker(nil, func(context.Context, model.GenerationJob) error {
		called = true
		return nil
	}, "q", 1, logger.Nop())

	for _, body := range []string{`not json`, `{"prompt":"no id"}`} {
		ack := &fakeAck{}
		w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(body)})
		require.Equal(t, 1, ack.nacks, body)
		assert.False(t, ack.requeued)
	}
	assert.False(t, called)
}
