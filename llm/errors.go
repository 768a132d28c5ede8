package llm

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every message validation failure. Validation
// errors are never coerced: the operation that produced them is aborted.
var ErrValidation = errors.New("message validation failed")

var (
	ErrInvalidInput = fmt.Errorf("%w: invalid input format", ErrValidation)
	ErrSchema       = fmt.Errorf("%w: missing required field", ErrValidation)
	ErrRole         = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrType         = fmt.Errorf("%w: invalid field type", ErrValidation)
)

// ErrCompletion wraps every failure of the external completion call.
var ErrCompletion = errors.New("completion failed")
