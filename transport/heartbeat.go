package transport

import (
	"context"
	"time"
)

// maxHeartbeatFailures is how many consecutive failed probes a connection
// tolerates before it is considered defunct and closed.
const maxHeartbeatFailures = 3

// startHeartbeat runs an OPTIONS probe on interval to detect a half-open
// socket the reader/writer loops wouldn't otherwise notice (spec §5's
// liveness check). It exits once the connection is closed.
func (c *Conn) startHeartbeat(interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.doneCh:
				return
			case <-ticker.C:
				probeCtx, probeCancel := context.WithTimeout(ctx, interval)
				_, err := c.options(probeCtx)
				probeCancel()
				if err != nil {
					failures++
					if failures >= maxHeartbeatFailures {
						c.Close()
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()
	return cancel
}
