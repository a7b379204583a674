package amqp

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acker records how a delivery was settled.
type acker struct {
	acked, nacked, requeued bool
}

func (a *acker) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}
func (a *acker) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func delivery(t *testing.T, body []byte) (amqp091.Delivery, *acker) {
	t.Helper()
	a := &acker{}
	return amqp091.Delivery{Acknowledger: a, DeliveryTag: 1, Body: body}, a
}

func eventBody(t *testing.T, ev *LedgerEvent) []byte {
	t.Helper()
	b, err := ev.ToJSON()
	require.NoError(t, err)
	return b
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	ev := NewLedgerEvent(EventActualSaved, 3, 4)

	t.Run("handled events are acked", func(t *testing.T) {
		d, a := delivery(t, eventBody(t, ev))
		var got *LedgerEvent
		dispatch(ctx, d, func(_ context.Context, e *LedgerEvent) error {
			got = e
			return nil
		})
		require.NotNil(t, got)
		assert.Equal(t, ev.ID, got.ID)
		assert.True(t, a.acked)
		assert.False(t, a.nacked)
	})

	t.Run("handler failures are requeued", func(t *testing.T) {
		d, a := delivery(t, eventBody(t, ev))
		dispatch(ctx, d, func(context.Context, *LedgerEvent) error { return errors.New("store busy") })
		assert.False(t, a.acked)
		assert.True(t, a.nacked)
		assert.True(t, a.requeued)
	})

	t.Run("undecodable bodies are dropped", func(t *testing.T) {
		d, a := delivery(t, []byte("not json"))
		called := false
		dispatch(ctx, d, func(context.Context, *LedgerEvent) error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, a.nacked)
		assert.False(t, a.requeued)
	})
}

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, maxBackoff, maxBackoff}
	for attempt, d := range want {
		assert.Equal(t, d, exponentialBackoff(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, maxBackoff, exponentialBackoff(40))
}

func TestIsConnectionError(t *testing.T) {
	for _, err := range []error{
		amqp091.ErrClosed,
		errors.New("dial tcp: connection refused"),
		io.ErrUnexpectedEOF,
		errors.New("write: broken pipe"),
		errors.New("use of closed network connection"),
	} {
		assert.True(t, isConnectionError(err), "%v", err)
	}
	for _, err := range []error{nil, errors.New("PRECONDITION_FAILED - inequivalent arg"), errors.New("invalid input")} {
		assert.False(t, isConnectionError(err), "%v", err)
	}
}

func TestCircuitBreaker(t *testing.T) {
	c := &Client{exchangeName: "granttrack", queueName: "ledger-events"}
	require.False(t, c.isCircuitOpen())

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	assert.False(t, c.isCircuitOpen(), "below the failure threshold")

	c.recordFailure()
	assert.True(t, c.isCircuitOpen())

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	assert.False(t, c.isCircuitOpen(), "open circuit lets one attempt through after the timeout")
	assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&c.state))

	c.recordFailure()
	assert.True(t, c.isCircuitOpen(), "a failed half-open attempt reopens the circuit")

	c.recordSuccess()
	assert.False(t, c.isCircuitOpen())
	assert.Zero(t, atomic.LoadInt64(&c.failureCount))
}

func TestPublishEventWithoutBroker(t *testing.T) {
	ev := NewLedgerEvent(EventLineItemAllocated, 1, 2)

	c := &Client{exchangeName: "granttrack", queueName: "ledger-events"}
	err := c.PublishEvent(context.Background(), ev)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&c.failureCount))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.PublishEvent(ctx, ev), context.Canceled)

	atomic.StoreInt32(&c.state, StateOpen)
	c.lastFailure = time.Now()
	assert.ErrorIs(t, c.PublishEvent(context.Background(), ev), ErrCircuitOpen)
}

func TestLedgerEventWireFormat(t *testing.T) {
	ev := NewLedgerEvent(EventActualSaved, 7, 9)
	other := NewLedgerEvent(EventActualSaved, 7, 9)
	assert.NotEmpty(t, ev.ID)
	assert.NotEqual(t, ev.ID, other.ID)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Second)

	ev.Month, ev.QBCode, ev.AmountCents = "2024-02", "6000", 12345
	data := eventBody(t, ev)
	assert.Contains(t, string(data), `"type":"actual_expense.saved"`)

	parsed, err := LedgerEventFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, ev.Month, parsed.Month)
	assert.Equal(t, ev.QBCode, parsed.QBCode)
	assert.Equal(t, ev.AmountCents, parsed.AmountCents)
	assert.True(t, parsed.Timestamp.Equal(ev.Timestamp))

	reset := eventBody(t, NewLedgerEvent(EventForecastReset, 7, 0))
	assert.NotContains(t, string(reset), "line_item_id", "zero line item is omitted")

	_, err = LedgerEventFromJSON([]byte(`{"grant_id": "seven"}`))
	assert.Error(t, err)
}
