package events

import (
	"fmt"
)

var ErrInvalidCapacity = fmt.Errorf("queue capacity must be between %d and %d", minQueueCapacity, maxQueueCapacity)
