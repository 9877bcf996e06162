package redis

import "errors"

var (
	// ErrMissingURL is returned when REDIS_URL is empty.
	ErrMissingURL = errors.New("redis: REDIS_URL is not set")
	// ErrInvalidURL is returned for a URL that is not redis:// or rediss://.
	ErrInvalidURL        = errors.New("redis: invalid connection URL")
	ErrConnect           = errors.New("redis: cannot reach server")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
