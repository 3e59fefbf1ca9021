package email

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttled caps the outbound rate of next. Send blocks until a token is
// available or ctx ends.
type Throttled struct {
	next Sender
	lim  *rate.Limiter
}

// NewThrottled allows perMinute messages per minute with a burst of the same size.
func NewThrottled(next Sender, perMinute int) *Throttled {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Throttled{
		next: next,
		lim:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (t *Throttled) Send(ctx context.Context, m Message) error {
	if err := t.lim.Wait(ctx); err != nil {
		return err
	}
	return t.next.Send(ctx, m)
}
