// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryBaseDelay is the first wait between connection attempts to a
// database server. Each further attempt doubles it. Tests override it.
var RetryBaseDelay = time.Second

// defaultConnectRetries bounds the retries of a network database: waits of
// 1 s, 2 s, 4 s, and 8 s at the default base delay.
const defaultConnectRetries = 4

type pinger interface {
	PingContext(ctx context.Context) error
}

// pingWithRetry pings p, retrying up to retries times with exponential
// backoff. It returns the last ping error once retries are exhausted, or
// ctx.Err() if ctx ends during a wait.
func pingWithRetry(ctx context.Context, p pinger, retries int) error {
	for attempt := 0; ; attempt++ {
		err := p.PingContext(ctx)
		if err == nil {
			return nil
		}
		if attempt >= retries {
			return err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting to reconnect: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
}
