package netwatch

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"beamcast/pkg/retry"
)

// DialWatcher reports network reachability by dialing a well-known TCP
// address. It is the counterpart of a platform path monitor: one probe
// subscription per request, torn down after the first satisfied report.
type DialWatcher struct {
	address string
	dialer  net.Dialer
	retry   retry.Config
	logger  *zap.SugaredLogger
}

// NewDialWatcher creates a watcher probing the given host:port address.
func NewDialWatcher(address string, logger *zap.SugaredLogger) *DialWatcher {
	return &DialWatcher{
		address: address,
		dialer:  net.Dialer{Timeout: 3 * time.Second},
		retry: retry.Config{
			MaxAttempts:  120,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		logger: logger,
	}
}

// NotifyOnce probes the address in the background and invokes fn exactly
// once when a connection succeeds. Cancelling ctx abandons the probe
// without invoking fn.
func (w *DialWatcher) NotifyOnce(ctx context.Context, fn func()) {
	go func() {
		err := retry.Do(ctx, w.retry, func() error {
			conn, err := w.dialer.DialContext(ctx, "tcp", w.address)
			if err != nil {
				return err
			}
			conn.Close()
			return nil
		})
		if err != nil {
			w.logger.Warnw("network probe abandoned",
				"address", w.address,
				"error", err,
			)
			return
		}

		w.logger.Infow("network reachable", "address", w.address)
		fn()
	}()
}
