package nats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/medical-assistant/pkg/logger"
)

// fakeConn closes its channel some time after Drain, the way the NATS
// client fires its closed handler once pending messages are flushed.
type fakeConn struct {
	mu       sync.Mutex
	closed   chan struct{}
	flush    time.Duration
	drainErr error
	closes   int
}

func (f *fakeConn) Drain() error {
	if f.drainErr != nil {
		return f.drainErr
	}
	if f.flush >= 0 {
		go func() {
			time.Sleep(f.flush)
			close(f.closed)
		}()
	}
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
}

func (f *fakeConn) IsConnected() bool { return true }

func newTestClient(fc *fakeConn, timeout time.Duration) *Client {
	return &Client{conn: fc, closed: fc.closed, closeTimeout: timeout, logger: logger.NewNop()}
}

func TestClientClose_WaitsForDrain(t *testing.T) {
	fc := &fakeConn{closed: make(chan struct{}), flush: 100 * time.Millisecond}
	c := newTestClient(fc, time.Second)

	begin := time.Now()
	c.Close()

	require.GreaterOrEqual(t, time.Since(begin), 100*time.Millisecond)
	select {
	case <-fc.closed:
	default:
		t.Fatal("Close returned before the connection was closed")
	}
	require.Zero(t, fc.closes)
}

func TestClientClose_DrainTimeout(t *testing.T) {
	fc := &fakeConn{closed: make(chan struct{}), flush: -1}
	c := newTestClient(fc, 50*time.Millisecond)

	begin := time.Now()
	c.Close()

	require.Less(t, time.Since(begin), time.Second)
	require.Equal(t, 1, fc.closes)
}

func TestClientClose_DrainError(t *testing.T) {
	fc := &fakeConn{closed: make(chan struct{}), drainErr: errors.New("connection closed")}
	c := newTestClient(fc, time.Second)

	c.Close()
	require.Equal(t, 1, fc.closes)
}

func TestConnect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, Config{URL: "nats://127.0.0.1:1"}, logger.NewNop())
	require.ErrorIs(t, err, context.Canceled)
}
