package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeDeliverAndFail(t *testing.T) {
	p := newPipe(2)

	assert.True(t, p.deliver(Message{Topic: "arec/pump", Payload: []byte("a")}))
	got := <-p.Messages()
	assert.Equal(t, "a", string(got.Payload))

	lost := &TransportError{Op: "connection lost", Err: errors.New("EOF")}
	p.fail(lost)
	p.fail(ErrClosed)

	select {
	case <-p.Done():
	default:
		t.Fatal("done should be closed")
	}
	assert.Equal(t, lost, p.Err())
	assert.False(t, p.deliver(Message{}))
}

func TestPipeDeliverUnblocksOnFail(t *testing.T) {
	p := newPipe(1)
	require.True(t, p.deliver(Message{}))

	result := make(chan bool)
	go func() { result <- p.deliver(Message{}) }()

	time.Sleep(10 * time.Millisecond)
	p.fail(ErrClosed)

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("deliver did not return after fail")
	}
}

func TestTransportError(t *testing.T) {
	err := &TransportError{Op: "connect", Err: errors.New("connection refused")}
	assert.Equal(t, "transport connect: connection refused", err.Error())

	var te *TransportError
	require.True(t, errors.As(error(err), &te))
	assert.Equal(t, "connect", te.Op)
}
