package server

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// OverflowPolicy selects which frame Broadcast discards when a
// subscriber's queue is full.
type OverflowPolicy int

const (
	// DropOldest discards the head of the queue to make room, so slow
	// readers converge on recent frames.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming frame and leaves the queue as is.
	DropNewest
)

func ParseOverflowPolicy(name string) (OverflowPolicy, error) {
	switch name {
	case "drop-oldest":
		return DropOldest, nil
	case "drop-newest":
		return DropNewest, nil
	default:
		return DropOldest, fmt.Errorf("unknown overflow policy: %s", name)
	}
}

type Subscriber struct {
	id      string
	queue   chan []byte
	dropped atomic.Uint64
}

func (subscriber *Subscriber) ID() string {
	return subscriber.id
}

func (subscriber *Subscriber) Queue() <-chan []byte {
	return subscriber.queue
}

func (subscriber *Subscriber) Dropped() uint64 {
	return subscriber.dropped.Load()
}

// StreamHub fans broadcast frames out to every registered subscriber.
// Frames are delivered per subscriber in broadcast order; a slow
// subscriber only ever loses its own frames.
type StreamHub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	buffer      int
	overflow    OverflowPolicy
}

func NewStreamHub(buffer int, overflow OverflowPolicy) *StreamHub {
	if buffer < 1 {
		buffer = 64
	}
	return &StreamHub{
		subscribers: make(map[*Subscriber]struct{}),
		buffer:      buffer,
		overflow:    overflow,
	}
}

func (hub *StreamHub) Register() *Subscriber {
	subscriber := &Subscriber{
		id:    uuid.New().String(),
		queue: make(chan []byte, hub.buffer),
	}

	hub.mu.Lock()
	hub.subscribers[subscriber] = struct{}{}
	hub.mu.Unlock()

	subscriberGauge.Inc()
	return subscriber
}

// Unregister removes the subscriber; calling it again is a no-op. The
// queue is never closed because a broadcast snapshot may still hold a
// reference to it.
func (hub *StreamHub) Unregister(subscriber *Subscriber) {
	if subscriber == nil {
		return
	}

	hub.mu.Lock()
	_, registered := hub.subscribers[subscriber]
	if registered {
		delete(hub.subscribers, subscriber)
	}
	hub.mu.Unlock()

	if registered {
		subscriberGauge.Dec()
	}
}

func (hub *StreamHub) Broadcast(frame []byte) {
	hub.mu.RLock()
	subscribers := make([]*Subscriber, 0, len(hub.subscribers))
	for subscriber := range hub.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	hub.mu.RUnlock()

	for _, subscriber := range subscribers {
		hub.deliver(subscriber, frame)
	}
	broadcastCounter.Inc()
}

func (hub *StreamHub) deliver(subscriber *Subscriber, frame []byte) {
	select {
	case subscriber.queue <- frame:
		return
	default:
	}

	if hub.overflow == DropOldest {
		select {
		case <-subscriber.queue:
		default:
		}
		select {
		case subscriber.queue <- frame:
			subscriber.dropped.Add(1)
			droppedCounter.Inc()
			return
		default:
		}
	}

	subscriber.dropped.Add(1)
	droppedCounter.Inc()
}

func (hub *StreamHub) Count() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscribers)
}
