package ml

import "errors"

var (
	// ErrUnknownModel is returned for a model name that was never loaded.
	ErrUnknownModel = errors.New("unknown model")

	// ErrInvalidInput marks observations rejected by bounds checks before encoding.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable wraps failures of the model backend itself.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrBadOutput is returned when a backend answers with something the
	// model kind cannot represent.
	ErrBadOutput = errors.New("bad model output")
)
