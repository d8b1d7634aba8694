package utils

import "time"

// Remaining is the time left until deadline, never negative, in whole seconds.
func Remaining(deadline, now time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}
