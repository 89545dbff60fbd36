package connection

import "time"

// Policy is the Reconnect Policy: delay(n) = BaseDelay * 2^n, giving up once
// n exceeds MaxAttempts.
type Policy struct {
	BaseDelay   time.Duration
	MaxAttempts int           // 0 = never give up
	MaxDelay    time.Duration // 0 = uncapped
}

// Next returns the delay before attempt n (1-based) and whether the attempt
// should be made at all.
func (p Policy) Next(attempt int) (time.Duration, bool) {
	if attempt < 0 {
		attempt = 0
	}
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, false
	}

	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if delay > maxDuration/2 {
			delay = maxDuration
			break
		}
		delay *= 2
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}

const maxDuration = time.Duration(1<<63 - 1)
