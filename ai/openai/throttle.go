package openai

import (
	"context"

	"golang.org/x/time/rate"
)

// throttle gates outbound requests. A nil throttle never blocks.
type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(rps float64) *throttle {
	if rps <= 0 {
		return nil
	}
	return &throttle{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// wait blocks until a request may be issued or ctx is done.
func (t *throttle) wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
