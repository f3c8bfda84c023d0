package rate

import "errors"

var (
	// ErrRateLimited is returned when the attempt budget for a window is
	// exhausted.
	ErrRateLimited = errors.New("too many attempts, try again later")

	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("rate limiter backend unavailable")
)
