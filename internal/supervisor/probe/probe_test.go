package probe

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testProber(t *testing.T) *Prober {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	t.Cleanup(func() { _ = logger.Sync() })
	return New(200*time.Millisecond, logger.Sugar())
}

// freePort grabs a port that nothing is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestAwaitReadyTimesOutOnClosedPort(t *testing.T) {
	p := testProber(t)
	port := freePort(t)

	timeout := 500 * time.Millisecond
	interval := 100 * time.Millisecond

	start := time.Now()
	err := p.AwaitReady(context.Background(), "127.0.0.1", port, timeout, interval)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrReadinessTimeout)
	// Bounded overshoot: fails no earlier than the deadline and within
	// one extra interval (plus scheduling slack).
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+interval+300*time.Millisecond)
}

func TestAwaitReadySucceedsOnOpenPort(t *testing.T) {
	p := testProber(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	err = p.AwaitReady(context.Background(), "127.0.0.1", port, 5*time.Second, 100*time.Millisecond)
	assert.NoError(t, err)
}

func TestAwaitReadySucceedsWhenPortOpensLate(t *testing.T) {
	p := testProber(t)
	port := freePort(t)

	listenerCh := make(chan net.Listener, 1)
	go func() {
		time.Sleep(400 * time.Millisecond)
		l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
		if err != nil {
			t.Errorf("failed to open port %d late: %v", port, err)
			return
		}
		listenerCh <- l
	}()
	t.Cleanup(func() {
		select {
		case l := <-listenerCh:
			_ = l.Close()
		default:
		}
	})

	err := p.AwaitReady(context.Background(), "127.0.0.1", port, 5*time.Second, 100*time.Millisecond)
	assert.NoError(t, err)
}

func TestAwaitReadyStopsProbingAfterSuccess(t *testing.T) {
	p := testProber(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	var conns atomic.Int32
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conns.Add(1)
			_ = conn.Close()
		}
	}()

	interval := 50 * time.Millisecond
	require.NoError(t, p.AwaitReady(context.Background(), "127.0.0.1", port, 5*time.Second, interval))

	after := conns.Load()
	time.Sleep(5 * interval)
	assert.Equal(t, after, conns.Load(), "no further connection attempts after success")
}

func TestAwaitReadyHonorsParentCancellation(t *testing.T) {
	p := testProber(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := p.AwaitReady(ctx, "127.0.0.1", port, 10*time.Second, 50*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReadinessTimeout)
}
