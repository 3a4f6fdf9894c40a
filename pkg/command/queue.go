package command

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
)

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger

	// OnAckTimeout is called after a command has been failed because its
	// ack did not arrive in time.
	OnAckTimeout func(*Command)
}

// Queue holds the commands of one session: a FIFO of commands waiting for
// delivery or for their follow-up request, and the set of delivered
// commands waiting for an ack.
type Queue struct {
	config QueueConfig

	mu       sync.Mutex
	pending  []*Command
	awaiting []*Command
	timers   map[*Command]*time.Timer
}

// NewQueue creates an empty queue.
func NewQueue(config QueueConfig) *Queue {
	return &Queue{
		config: config,
		timers: make(map[*Command]*time.Timer),
	}
}

// Enqueue appends commands in order. Commands from one call are never
// interleaved with those of another.
func (q *Queue) Enqueue(cmds ...*Command) {
	q.mu.Lock()
	q.pending = append(q.pending, cmds...)
	q.mu.Unlock()
}

// Remove drops the given commands from the pending FIFO, whether or not
// they were delivered.
func (q *Queue) Remove(cmds ...*Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range cmds {
		q.pending = without(q.pending, c)
	}
}

// Delivery is the result of a poll.
type Delivery struct {
	Command *Command
	Payload []byte
}

// Next returns the oldest undelivered command and its payload, or nil
// when there is nothing to send.
//
// A command that expects no follow-up request leaves the FIFO at once; it
// resolves with an empty response unless it waits for an ack, in which
// case it moves to the ack set and its ack timer starts. Commands that
// expect a follow-up stay in the FIFO, marked delivered, until the
// follow-up takes them.
func (q *Queue) Next() *Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		c := q.headLocked()
		if c == nil {
			return nil
		}

		payload, err := c.Payload()
		if err != nil {
			q.pending = without(q.pending, c)
			c.SetError(lanerr.Wrap(lanerr.ErrPayloadParse, "encode "+c.String(), err))
			continue
		}

		c.delivered = true
		if !c.ExpectsFollowUp() {
			q.pending = without(q.pending, c)
			if c.NeedsAck() {
				q.awaitAckLocked(c)
			} else {
				c.SetResponse(nil)
			}
		}
		q.debugLog("command delivered", "cmd", c.String(), "remaining", q.depthLocked())
		return &Delivery{Command: c, Payload: payload}
	}
}

func (q *Queue) headLocked() *Command {
	for _, c := range q.pending {
		if !c.delivered {
			return c
		}
	}
	return nil
}

func (q *Queue) awaitAckLocked(c *Command) {
	q.awaiting = append(q.awaiting, c)
	timeout := c.AckTimeout
	if timeout <= 0 {
		timeout = c.Timeout
	}
	q.timers[c] = time.AfterFunc(timeout, func() { q.ackExpired(c) })
}

func (q *Queue) ackExpired(c *Command) {
	q.mu.Lock()
	found := slices.Contains(q.awaiting, c)
	if found {
		q.awaiting = without(q.awaiting, c)
		delete(q.timers, c)
	}
	q.mu.Unlock()

	if !found {
		return
	}
	if c.SetError(lanerr.New(lanerr.ErrTimeout, "timed out waiting for datapoint ack")) {
		q.debugLog("ack timeout", "cmd", c.String())
		if q.config.OnAckTimeout != nil {
			q.config.OnAckTimeout(c)
		}
	}
}

// TakeByID removes and returns the most recently queued command with the
// given cmd_id, or nil.
func (q *Queue) TakeByID(id uint32) *Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.pending) - 1; i >= 0; i-- {
		c := q.pending[i]
		if c.kind == KindRequest && c.ID == id {
			q.pending = slices.Delete(q.pending, i, i+1)
			return c
		}
	}
	return nil
}

// TakeAck removes and returns the command waiting for the ack with the
// given id, or nil. Its ack timer is stopped.
func (q *Queue) TakeAck(id string) *Command {
	if id == "" {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, c := range q.awaiting {
		if c.datapoint != nil && c.datapoint.ID == id {
			q.awaiting = without(q.awaiting, c)
			if t, ok := q.timers[c]; ok {
				t.Stop()
				delete(q.timers, c)
			}
			return c
		}
	}
	return nil
}

// Depth returns the number of commands not yet delivered.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

func (q *Queue) depthLocked() int {
	n := 0
	for _, c := range q.pending {
		if !c.delivered {
			n++
		}
	}
	return n
}

// Len returns the number of commands in the FIFO, delivered or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// AwaitingAck returns the number of commands waiting for an ack.
func (q *Queue) AwaitingAck() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.awaiting)
}

// Clear stops every ack timer, empties both collections and resolves the
// removed commands with err. It returns the number of commands removed.
func (q *Queue) Clear(err error) int {
	q.mu.Lock()
	for _, t := range q.timers {
		t.Stop()
	}
	q.timers = make(map[*Command]*time.Timer)
	removed := slices.Concat(q.pending, q.awaiting)
	q.pending = nil
	q.awaiting = nil
	q.mu.Unlock()

	for _, c := range removed {
		c.SetError(err)
	}
	if len(removed) > 0 {
		q.debugLog("queue cleared", "commands", len(removed), "reason", fmt.Sprint(err))
	}
	return len(removed)
}

func (q *Queue) debugLog(msg string, args ...any) {
	if q.config.Logger != nil {
		q.config.Logger.Debug(msg, args...)
	}
}

func without(list []*Command, c *Command) []*Command {
	if i := slices.Index(list, c); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return list
}
