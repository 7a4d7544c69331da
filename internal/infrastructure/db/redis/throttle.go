package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultThrottleWindow = 5 * time.Minute

// DeniedThrottle lets one access-denied audit event per key through per window.
// Key format: throttle:denied:<key>
type DeniedThrottle struct {
	client *redis.Client
	window time.Duration
}

// NewDeniedThrottle creates a DeniedThrottle. A non-positive window uses the default.
func NewDeniedThrottle(client *redis.Client, window time.Duration) *DeniedThrottle {
	if window <= 0 {
		window = defaultThrottleWindow
	}
	return &DeniedThrottle{client: client, window: window}
}

// Allow reports whether key has not been seen within the window, marking it seen.
func (d *DeniedThrottle) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, "throttle:denied:"+key, "1", d.window).Result()
	if err != nil {
		return true, fmt.Errorf("denied throttle: %w", err)
	}
	return ok, nil
}
