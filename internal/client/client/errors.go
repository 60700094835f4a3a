package client

import "errors"

var (
	ErrUnavailable       = errors.New("server unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrElevationRequired = errors.New("one-time code required, run 'otp' first")
	ErrNotFound          = errors.New("entry not found")
)
