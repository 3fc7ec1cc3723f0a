package eventbus

import (
	"sync"
)

// EventBus is a small typed topic based publish/subscribe bus. Publishing
// never blocks: a subscriber whose queue is full misses the message.
type EventBus[T any] interface {
	Publish(topic string, message T)
	Subscribe(topic string, bufSize int, filter func(T) bool) Subscriber[T]
}

// Subscriber receives the messages of one subscription.
type Subscriber[T any] interface {
	C() <-chan T
	Unsubscribe()
}

type eventBus[T any] struct {
	subscribers map[string]map[*subscriber[T]]func(T) bool
	mu          sync.Mutex
}

type subscriber[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// MatchAll is a filter accepting every message.
func MatchAll[T any](T) bool {
	return true
}

// New returns an initialized EventBus.
func New[T any]() EventBus[T] {
	return &eventBus[T]{
		subscribers: make(map[string]map[*subscriber[T]]func(T) bool),
	}
}

// Publish a message to a topic (best-effort). Unsubscribed subscribers are
// removed on the way.
func (eb *eventBus[T]) Publish(topic string, message T) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs, ok := eb.subscribers[topic]
	if !ok {
		return
	}

	for sub, filter := range subs {
		if !sub.deliver(message, filter) {
			delete(subs, sub)
		}
	}
	if len(subs) == 0 {
		delete(eb.subscribers, topic)
	}
}

// Subscribe to a topic with a filter function. Returns a channel with given buffer size.
func (eb *eventBus[T]) Subscribe(topic string, bufSize int, filter func(T) bool) Subscriber[T] {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &subscriber[T]{
		ch: make(chan T, bufSize),
	}

	if _, ok := eb.subscribers[topic]; !ok {
		eb.subscribers[topic] = make(map[*subscriber[T]]func(T) bool)
	}
	eb.subscribers[topic][sub] = filter

	return sub
}

// deliver reports false once the subscriber is closed.
func (s *subscriber[T]) deliver(message T, filter func(T) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if filter(message) {
		select {
		case s.ch <- message:
		default:
		}
	}
	return true
}

func (s *subscriber[T]) C() <-chan T {
	return s.ch
}

func (s *subscriber[T]) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	close(s.ch)
	s.closed = true
}
