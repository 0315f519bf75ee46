package monitor

import (
	"errors"
)

var (
	ErrTimeoutNotBelowInterval = errors.New("fetch timeout must be strictly shorter than poll interval")
	ErrInvalidFailureThreshold = errors.New("failure threshold must be positive")
	ErrInvalidBackoff          = errors.New("backoff bounds must be positive and initial <= max")
)
