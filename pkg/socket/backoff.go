package socket

import "time"

// Backoff 第 attempt 次（从 0 开始）重连前的等待：min(base * 2^attempt, max)
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		return 0
	}
	if attempt >= 62 {
		return max
	}
	d := base << uint(attempt)
	if d <= 0 || (max > 0 && d > max) {
		return max
	}
	return d
}
