// Package probe implements the TCP readiness probe: a connection-only check
// against a port, retried on a fixed interval until an overall deadline.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrReadinessTimeout is returned when the port does not open within the
// overall deadline.
var ErrReadinessTimeout = errors.New("readiness timeout")

// Prober polls an endpoint for liveness.
type Prober struct {
	dialTimeout time.Duration
	logger      *zap.SugaredLogger
}

// New creates a Prober. dialTimeout bounds each individual connection
// attempt, independent of the overall deadline, so one hung dial cannot
// stall the probe.
func New(dialTimeout time.Duration, logger *zap.SugaredLogger) *Prober {
	if dialTimeout <= 0 {
		dialTimeout = time.Second
	}
	return &Prober{dialTimeout: dialTimeout, logger: logger}
}

// AwaitReady dials host:port until a connection succeeds or timeout elapses.
// A successful dial is closed immediately; nothing is read or written. Dial
// failures are retried every interval. On deadline the error wraps
// ErrReadinessTimeout.
func (p *Prober) AwaitReady(ctx context.Context, host string, port int, timeout, interval time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	attempts := 0

	operation := func() error {
		attempts++
		conn, err := net.DialTimeout("tcp", addr, p.dialTimeout)
		if err != nil {
			p.logger.Debugw("Readiness attempt failed", "addr", addr, "attempt", attempts, "error", err)
			return err
		}
		_ = conn.Close()
		return nil
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(interval), deadlineCtx)
	err := backoff.Retry(operation, bo)
	if err == nil {
		p.logger.Infow("Endpoint ready", "addr", addr, "attempts", attempts, "elapsed", time.Since(start))
		return nil
	}

	if deadlineCtx.Err() != nil && ctx.Err() == nil {
		p.logger.Errorw("Endpoint never became ready",
			"addr", addr, "attempts", attempts, "timeout", timeout)
		return fmt.Errorf("%s not ready within %s: %w", addr, timeout, ErrReadinessTimeout)
	}

	// Parent context cancelled (process shutting down).
	return err
}
