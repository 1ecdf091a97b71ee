// Package blockref resolves client-supplied block identifiers.
//
// The wire form is a single untagged JSON string that may hold a block
// height, a 32-byte hash, or a symbolic tag. Resolution tries the
// candidate shapes in a fixed order so that ambiguous input can never be
// interpreted nondeterministically: numbers first, full-length hashes
// second, tag literals third.
package blockref

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/stable-net/debugd/pkg/codec"
)

// Tag is a symbolic block position.
type Tag string

// Recognized tags, matched case-insensitively on the wire.
const (
	Earliest Tag = "earliest"
	Latest   Tag = "latest"
	Pending  Tag = "pending"
)

// ErrNotSingleVariant is returned when a Ref does not hold exactly one
// populated variant.
var ErrNotSingleVariant = errors.New("block reference must hold exactly one variant")

// UnrecognizedRefError reports wire input matching none of the candidate
// shapes.
type UnrecognizedRefError struct {
	Raw string
}

func (e *UnrecognizedRefError) Error() string {
	return fmt.Sprintf("unrecognized block reference %q", e.Raw)
}

// Ref is a tagged union addressing a block by height, hash, or tag.
// Exactly one variant is populated after resolution.
type Ref struct {
	Number *uint32
	Hash   *common.Hash
	Tag    *Tag
}

// Number builds a height reference.
func Number(height uint32) Ref {
	return Ref{Number: &height}
}

// Hash builds a hash reference.
func Hash(digest common.Hash) Ref {
	return Ref{Hash: &digest}
}

// ByTag builds a symbolic reference.
func ByTag(tag Tag) Ref {
	return Ref{Tag: &tag}
}

// Resolve interprets raw wire input as a block reference.
//
// Precedence is fixed: a string parsing as a 32-bit unsigned integer
// (hex or decimal) is a height; else a 64-hex-character digest is a
// hash; else one of the tag literals. Anything else fails — malformed
// input is never guessed into a default.
func Resolve(raw string) (Ref, error) {
	if n, err := codec.ParseUint32(raw); err == nil {
		return Number(n), nil
	}

	if h, err := codec.ParseHash(raw); err == nil {
		return Hash(h), nil
	}

	switch Tag(strings.ToLower(raw)) {
	case Earliest:
		return ByTag(Earliest), nil
	case Latest:
		return ByTag(Latest), nil
	case Pending:
		return ByTag(Pending), nil
	}

	return Ref{}, &UnrecognizedRefError{Raw: raw}
}

// UnmarshalJSON decodes the untagged single-string wire form.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &UnrecognizedRefError{Raw: string(data)}
	}

	ref, err := Resolve(raw)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// MarshalJSON encodes the reference back to its wire form. Heights
// encode as 0x-prefixed hex per chain convention.
func (r Ref) MarshalJSON() ([]byte, error) {
	s, err := r.text()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// String returns the wire form, or a placeholder for malformed refs.
func (r Ref) String() string {
	s, err := r.text()
	if err != nil {
		return "<invalid block reference>"
	}
	return s
}

func (r Ref) text() (string, error) {
	switch {
	case r.Number != nil && r.Hash == nil && r.Tag == nil:
		return hexutil.EncodeUint64(uint64(*r.Number)), nil
	case r.Hash != nil && r.Number == nil && r.Tag == nil:
		return r.Hash.Hex(), nil
	case r.Tag != nil && r.Number == nil && r.Hash == nil:
		return string(*r.Tag), nil
	}
	return "", ErrNotSingleVariant
}
