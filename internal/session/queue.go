package session

import (
	"sync"

	"github.com/eapache/queue"
)

// DefaultQueueCapacity is used when Config.QueueCapacity is not positive.
const DefaultQueueCapacity = 16

// Queue is a bounded FIFO of outbound messages that drops the oldest entry
// on overflow.
//
// A message that failed in the transport goes back to the front through
// Requeue so ordering survives a failed delivery. Len never exceeds Cap.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	capacity  int
	ring      *queue.Queue
	redeliver *Message
	dropped   uint64
}

// NewQueue creates a queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{capacity: capacity, ring: queue.New()}
}

// Push appends msg, evicting the oldest message when full.
//
// Returns:
//   - bool: true if a message was dropped to make room
func (q *Queue) Push(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := false
	if q.lenLocked() >= q.capacity {
		q.dropOldestLocked()
		dropped = true
	}
	q.ring.Add(msg)
	return dropped
}

// Requeue returns msg to the front of the queue. When the queue is full msg
// is the oldest entry, so it is dropped instead.
//
// Returns:
//   - bool: false if msg was dropped
func (q *Queue) Requeue(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.redeliver != nil || q.lenLocked() >= q.capacity {
		q.dropped++
		return false
	}
	q.redeliver = &msg
	return true
}

// Pop removes and returns the oldest message.
func (q *Queue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.redeliver != nil {
		msg := *q.redeliver
		q.redeliver = nil
		return msg, true
	}
	if q.ring.Length() == 0 {
		return Message{}, false
	}
	return q.ring.Remove().(Message), true
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Cap returns the capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Dropped returns how many messages were evicted since creation.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Stats returns a consistent snapshot of length, capacity and drops.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Len: q.lenLocked(), Capacity: q.capacity, Dropped: q.dropped}
}

func (q *Queue) lenLocked() int {
	n := q.ring.Length()
	if q.redeliver != nil {
		n++
	}
	return n
}

func (q *Queue) dropOldestLocked() {
	q.dropped++
	if q.redeliver != nil {
		q.redeliver = nil
		return
	}
	if q.ring.Length() > 0 {
		q.ring.Remove()
	}
}
