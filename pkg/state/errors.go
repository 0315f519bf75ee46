package state

import (
	"errors"
)

var (
	ErrMissingDeviceID       = errors.New("fragment has no device id")
	ErrEmptyFragment         = errors.New("fragment touches no fields")
	ErrMissingLeafTimestamp  = errors.New("fragment leaf has no timestamp")
	ErrProgressOutOfRange    = errors.New("job progress outside 0-100")
	ErrNegativeRemainingTime = errors.New("job remaining time is negative")
	ErrNonFiniteTemperature  = errors.New("temperature reading is not finite")
	ErrUnknownStatusValue    = errors.New("unknown status value")
)
