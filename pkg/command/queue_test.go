package command

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
)

func ackCommand(t *testing.T, timeout time.Duration) *Command {
	t.Helper()
	c, err := NewCreateDatapoint(Datapoint{Name: "p", Value: 1, BaseType: "integer", DSN: "d", AckEnabled: true}, timeout)
	require.NoError(t, err)
	return c
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(QueueConfig{})
	a, b, c := NewGetProperty("a"), NewGetProperty("b"), NewGetProperty("c")
	q.Enqueue(a, b, c)

	var order []*Command
	for i := 0; i < 3; i++ {
		d := q.Next()
		require.NotNil(t, d)
		order = append(order, d.Command)

		// A concurrent follow-up for an earlier command must not disturb order.
		if i == 0 {
			assert.Same(t, a, q.TakeByID(a.ID))
		}
	}
	assert.Equal(t, []*Command{a, b, c}, order)
	assert.Nil(t, q.Next())
}

func TestQueueDepth(t *testing.T) {
	q := NewQueue(QueueConfig{})
	q.Enqueue(NewGetProperty("a"), NewGetProperty("b"))
	assert.Equal(t, 2, q.Depth())

	require.NotNil(t, q.Next())
	assert.Equal(t, 1, q.Depth())
	assert.Equal(t, 2, q.Len())

	require.NotNil(t, q.Next())
	assert.Equal(t, 0, q.Depth())
}

func TestQueueResolvesWithoutFollowUp(t *testing.T) {
	q := NewQueue(QueueConfig{})
	del := NewDeleteSession()
	dp, err := NewCreateDatapoint(Datapoint{Name: "p", Value: 1, DSN: "d"}, 0)
	require.NoError(t, err)
	q.Enqueue(del, dp)

	d := q.Next()
	require.NotNil(t, d)
	assert.Same(t, del, d.Command)
	assert.True(t, del.Resolved())
	assert.Contains(t, string(d.Payload), "delete_session")

	require.NotNil(t, q.Next())
	assert.True(t, dp.Resolved())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.AwaitingAck())
}

func TestQueueTakeByIDSearchesFromTail(t *testing.T) {
	q := NewQueue(QueueConfig{})
	first := NewGetProperty("a")
	dup := NewGetProperty("a")
	dup.ID = first.ID
	q.Enqueue(first, dup)

	assert.Same(t, dup, q.TakeByID(first.ID))
	assert.Same(t, first, q.TakeByID(first.ID))
	assert.Nil(t, q.TakeByID(first.ID))
}

func TestQueueAckMatch(t *testing.T) {
	q := NewQueue(QueueConfig{})
	c := ackCommand(t, time.Second)
	q.Enqueue(c)

	d := q.Next()
	require.NotNil(t, d)
	assert.False(t, c.Resolved(), "ack-enabled commands resolve on the ack")
	assert.Equal(t, 1, q.AwaitingAck())

	assert.Nil(t, q.TakeAck("nope"))
	assert.Nil(t, q.TakeAck(""))
	assert.Same(t, c, q.TakeAck(c.Datapoint().ID))
	assert.Equal(t, 0, q.AwaitingAck())
}

func TestQueueAckTimeout(t *testing.T) {
	var fired atomic.Int32
	q := NewQueue(QueueConfig{OnAckTimeout: func(*Command) { fired.Add(1) }})
	c := ackCommand(t, 50*time.Millisecond)
	q.Enqueue(c)
	require.NotNil(t, q.Next())

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("ack timeout did not fire")
	}
	_, err := c.Result()
	assert.ErrorIs(t, err, lanerr.ErrTimeout)
	assert.Equal(t, int32(1), fired.Load())

	// A late ack finds nothing.
	assert.Nil(t, q.TakeAck(c.Datapoint().ID))
	_, err = c.Result()
	assert.ErrorIs(t, err, lanerr.ErrTimeout)
}

func TestQueueAckBeforeTimeoutIsNotFailed(t *testing.T) {
	q := NewQueue(QueueConfig{})
	c := ackCommand(t, 30*time.Millisecond)
	q.Enqueue(c)
	require.NotNil(t, q.Next())

	got := q.TakeAck(c.Datapoint().ID)
	require.NotNil(t, got)
	got.SetResponse([]byte(`{}`))

	time.Sleep(60 * time.Millisecond)
	_, err := c.Result()
	assert.NoError(t, err)
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue(QueueConfig{})
	a, b := NewGetProperty("a"), NewGetProperty("b")
	q.Enqueue(a, b)
	q.Remove(a)

	d := q.Next()
	require.NotNil(t, d)
	assert.Same(t, b, d.Command)
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(QueueConfig{})
	a := NewGetProperty("a")
	ack := ackCommand(t, 20*time.Millisecond)
	q.Enqueue(ack, a)
	require.NotNil(t, q.Next())

	n := q.Clear(lanerr.New(lanerr.ErrSessionStopped, ""))
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.AwaitingAck())

	for _, c := range []*Command{a, ack} {
		_, err := c.Result()
		assert.ErrorIs(t, err, lanerr.ErrSessionStopped)
	}

	// The cancelled ack timer must not fire afterwards.
	time.Sleep(40 * time.Millisecond)
	_, err := ack.Result()
	assert.ErrorIs(t, err, lanerr.ErrSessionStopped)
}

func TestQueueConcurrentEnqueueKeepsBatches(t *testing.T) {
	q := NewQueue(QueueConfig{})

	var wg sync.WaitGroup
	batches := make([][]*Command, 8)
	for i := range batches {
		batches[i] = []*Command{NewGetProperty("x"), NewGetProperty("y"), NewGetProperty("z")}
		wg.Add(1)
		go func(b []*Command) {
			defer wg.Done()
			q.Enqueue(b...)
		}(batches[i])
	}
	wg.Wait()

	var delivered []*Command
	for d := q.Next(); d != nil; d = q.Next() {
		delivered = append(delivered, d.Command)
	}
	require.Len(t, delivered, 24)
	for i := 0; i < len(delivered); i += 3 {
		assert.Equal(t, delivered[i].ID+1, delivered[i+1].ID)
		assert.Equal(t, delivered[i+1].ID+1, delivered[i+2].ID)
	}
}
