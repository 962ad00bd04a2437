package resocket

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newReconnectPolicy returns the retry policy for interval: the same wait
// before every attempt, or none at all when interval is negative.
func newReconnectPolicy(interval time.Duration) backoff.BackOff {
	if interval < 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.NewConstantBackOff(interval)
}

// reconnectScheduler arms the retry timer after a failed attempt or a lost
// connection. There is no maximum retry count; the policy alone decides.
type reconnectScheduler struct {
	policy backoff.BackOff
	timer  *callbackTimer
}

func newReconnectScheduler(policy backoff.BackOff, timer *callbackTimer) *reconnectScheduler {
	return &reconnectScheduler{
		policy: policy,
		timer:  timer,
	}
}

// ScheduleRetry arms the retry timer and returns the wait. It returns false,
// arming nothing, when the policy has retries disabled.
func (r *reconnectScheduler) ScheduleRetry() (time.Duration, bool) {
	delay := r.policy.NextBackOff()
	if delay == backoff.Stop {
		return 0, false
	}
	r.timer.Arm(delay)
	return delay, true
}

// Cancel clears a pending retry.
func (r *reconnectScheduler) Cancel() {
	r.timer.Cancel()
}

// Pending reports whether a retry is armed.
func (r *reconnectScheduler) Pending() bool {
	return r.timer.Armed()
}
