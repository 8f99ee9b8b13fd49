package fleet

import (
	"context"
	"time"
)

// Pacing turns the shared speed setting into the delay between sub-steps.
// A bus that shares its waypoint index with another bus is paced with the
// conflict parameters; otherwise the free ones apply.
type Pacing struct {
	Base            time.Duration
	ConflictDivisor float64
	FreeDivisor     float64
	ConflictMin     time.Duration
	FreeMin         time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{
		Base:            500 * time.Millisecond,
		ConflictDivisor: 15,
		FreeDivisor:     10,
		ConflictMin:     50 * time.Millisecond,
		FreeMin:         30 * time.Millisecond,
	}
}

// Delay is max(min, base - speed/divisor seconds).
func (p Pacing) Delay(speed float64, conflict bool) time.Duration {
	div, floor := p.FreeDivisor, p.FreeMin
	if conflict {
		div, floor = p.ConflictDivisor, p.ConflictMin
	}
	if div <= 0 {
		return max(floor, p.Base)
	}
	d := p.Base - time.Duration(speed/div*float64(time.Second))
	return max(floor, d)
}

// Sleeper blocks the calling animator for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
