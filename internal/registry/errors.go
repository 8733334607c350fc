package registry

import "errors"

var (
	ErrBadReference = errors.New("invalid image reference")
	ErrBadPlatform  = errors.New("invalid platform")
	ErrPull         = errors.New("image pull failed")
)
