package fetch

import "errors"

var (
	ErrFetch        = errors.New("fetch failed")
	ErrNotFound     = errors.New("artifact not found")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream unavailable")
	ErrIntegrity    = errors.New("integrity check failed")
)
