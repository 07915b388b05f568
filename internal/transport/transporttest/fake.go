// Package transporttest provides an in-process broker for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arec-energy/pumpstream/internal/transport"
)

// Subscriber hands out Subscriptions that tests drive by hand.
type Subscriber struct {
	mu       sync.Mutex
	failures int
	calls    int
	subs     []*Subscription
	opened   chan *Subscription
}

func NewSubscriber() *Subscriber {
	return &Subscriber{opened: make(chan *Subscription, 32)}
}

// FailNext makes the next n Subscribe calls fail with a TransportError.
func (s *Subscriber) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string) (transport.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &transport.TransportError{Op: "connect", Err: err}
	}

	s.mu.Lock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return nil, &transport.TransportError{Op: "connect", Err: errors.New("connection refused")}
	}
	sub := &Subscription{
		Topic:  topic,
		msgs:   make(chan transport.Message, 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	select {
	case s.opened <- sub:
	default:
	}
	return sub, nil
}

// Calls returns how many times Subscribe was called.
func (s *Subscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Subscriptions returns every subscription opened so far.
func (s *Subscriber) Subscriptions() []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// Next waits for the next successful Subscribe.
func (s *Subscriber) Next(timeout time.Duration) (*Subscription, error) {
	select {
	case sub := <-s.opened:
		return sub, nil
	case <-time.After(timeout):
		return nil, errors.New("no subscription within timeout")
	}
}

// Subscription is a fake connection.
type Subscription struct {
	Topic string

	msgs      chan transport.Message
	done      chan struct{}
	closed    chan struct{}
	dropOnce  sync.Once
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Publish queues a payload as if the broker delivered it.
func (s *Subscription) Publish(payload string) {
	s.msgs <- transport.Message{Topic: s.Topic, Payload: []byte(payload), Received: time.Now()}
}

// Drop simulates a lost connection.
func (s *Subscription) Drop(err error) {
	s.dropOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Closed reports whether the owner released the subscription.
func (s *Subscription) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Subscription) Messages() <-chan transport.Message {
	return s.msgs
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.Drop(transport.ErrClosed)
	})
	return nil
}

var _ transport.Subscriber = (*Subscriber)(nil)
var _ transport.Subscription = (*Subscription)(nil)
