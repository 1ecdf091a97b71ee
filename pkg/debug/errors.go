package debug

import (
	"errors"
	"fmt"

	"github.com/stable-net/debugd/pkg/blockref"
	"github.com/stable-net/debugd/pkg/codec"
)

// MissingFieldError reports a mandatory wire field that was omitted.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// IsDecodeError reports whether err stems from malformed wire input.
// Decode failures map to an invalid-params RPC error; everything else
// surfaces as a server error.
func IsDecodeError(err error) bool {
	var (
		numErr  *codec.InvalidNumberError
		hashErr *codec.InvalidHashError
		refErr  *blockref.UnrecognizedRefError
		missErr *MissingFieldError
	)
	return errors.As(err, &numErr) ||
		errors.As(err, &hashErr) ||
		errors.As(err, &refErr) ||
		errors.As(err, &missErr)
}
