package fetcher

import (
	"errors"
)

var (
	ErrUnknownDevice    = errors.New("no endpoint configured for device")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrEmptyEndpoint    = errors.New("empty endpoint for device")
)
