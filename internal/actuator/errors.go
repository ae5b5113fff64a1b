package actuator

import "errors"

// ErrUnknownChannel indicates a channel index outside the configured bank.
var ErrUnknownChannel = errors.New("actuator: unknown channel")
