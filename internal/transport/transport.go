// Package transport connects to the message broker the pump controller
// publishes to.
//
// A Subscription covers exactly one broker connection. It does not
// reconnect on its own: when the connection drops, Done is closed and the
// owner decides when to subscribe again. Messages published while no
// subscription is active are not replayed.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed reports a subscription ended by its owner.
var ErrClosed = errors.New("subscription closed")

// Message is one payload received from the broker.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// Subscriber opens subscriptions on a broker.
type Subscriber interface {
	// Subscribe connects and subscribes to topic.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription delivers messages of one topic over one connection.
type Subscription interface {
	// Messages delivers payloads in broker order.
	Messages() <-chan Message
	// Done is closed when the connection is lost or the subscription is closed.
	Done() <-chan struct{}
	// Err reports why Done was closed.
	Err() error
	// Close unsubscribes and releases the connection. It may be called more
	// than once.
	Close() error
}

// TransportError reports a broker connectivity failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// pipe is the delivery half shared by the broker implementations.
type pipe struct {
	msgs chan Message
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

func newPipe(buffer int) *pipe {
	if buffer <= 0 {
		buffer = 64
	}
	return &pipe{
		msgs: make(chan Message, buffer),
		done: make(chan struct{}),
	}
}

// deliver blocks until the message is queued or the pipe has failed.
func (p *pipe) deliver(m Message) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.msgs <- m:
		return true
	case <-p.done:
		return false
	}
}

// fail closes Done. Only the first cause is kept.
func (p *pipe) fail(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *pipe) Messages() <-chan Message {
	return p.msgs
}

func (p *pipe) Done() <-chan struct{} {
	return p.done
}

func (p *pipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
