// Package codec parses loosely-typed numeric and byte-string wire input.
package codec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// InvalidNumberError reports text that could not be parsed as a bounded
// unsigned integer, recording the radix that was tried.
type InvalidNumberError struct {
	Text  string
	Radix int
	Err   error
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("invalid number %q (radix %d): %v", e.Text, e.Radix, e.Err)
}

func (e *InvalidNumberError) Unwrap() error {
	return e.Err
}

// InvalidHashError reports text that is not a 32-byte hex digest.
type InvalidHashError struct {
	Text string
}

func (e *InvalidHashError) Error() string {
	return fmt.Sprintf("invalid 32-byte hash %q", e.Text)
}

// ParseUint32 parses a 0x-prefixed hexadecimal or plain decimal string
// into a 32-bit unsigned integer. Values exceeding 32 bits fail; there
// is no truncation.
func ParseUint32(text string) (uint32, error) {
	radix := 10
	digits := text

	if stripped, ok := strings.CutPrefix(text, "0x"); ok {
		radix = 16
		digits = stripped
	}

	v, err := strconv.ParseUint(digits, radix, 32)
	if err != nil {
		return 0, &InvalidNumberError{Text: text, Radix: radix, Err: err}
	}
	return uint32(v), nil
}

// ParseHash parses an optionally 0x-prefixed hex string into a 256-bit
// hash. The input must decode to exactly 32 bytes.
func ParseHash(text string) (common.Hash, error) {
	digits := strings.TrimPrefix(text, "0x")
	if len(digits) != 2*common.HashLength {
		return common.Hash{}, &InvalidHashError{Text: text}
	}

	b, err := hex.DecodeString(digits)
	if err != nil {
		return common.Hash{}, &InvalidHashError{Text: text}
	}
	return common.BytesToHash(b), nil
}
