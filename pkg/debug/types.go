// Package debug defines the debug/introspection RPC contract: the wire
// types clients send, the normalization rules applied to them, and the
// six-operation service that delegates to the store and trace engine
// collaborators.
package debug

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// TraceOptions selects and configures a tracer for a trace call.
//
// The three disable flags default to false when absent. Tracer,
// TracerConfig and Timeout are opaque to this layer: the trace engine
// owns tracer-name resolution, configuration shape and timeout parsing.
type TraceOptions struct {
	DisableStorage *bool           `json:"disableStorage,omitempty"`
	DisableMemory  *bool           `json:"disableMemory,omitempty"`
	DisableStack   *bool           `json:"disableStack,omitempty"`
	Tracer         *string         `json:"tracer,omitempty"`
	TracerConfig   json.RawMessage `json:"tracerConfig,omitempty"`
	Timeout        *string         `json:"timeout,omitempty"`
}

// Normalize fills absent booleans to false and leaves the pass-through
// fields untouched. The receiver may be nil: absent options normalize
// to all-defaults.
func (o *TraceOptions) Normalize() TraceOptions {
	if o == nil {
		o = &TraceOptions{}
	}

	norm := *o
	f := false
	if norm.DisableStorage == nil {
		norm.DisableStorage = &f
	}
	if norm.DisableMemory == nil {
		norm.DisableMemory = &f
	}
	if norm.DisableStack == nil {
		norm.DisableStack = &f
	}
	return norm
}

// CallEnvelope describes a synthetic call to be traced. It is never
// submitted to the chain.
//
// To is mandatory: the contract models calls, not contract creation.
// Every other field is optional, and absence is preserved — an omitted
// value is not the same thing as an explicit zero; substituting
// defaults is the trace engine's job, not this layer's.
type CallEnvelope struct {
	From                 *common.Address   `json:"from,omitempty"`
	To                   *common.Address   `json:"to,omitempty"`
	GasPrice             *hexutil.Big      `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas,omitempty"`
	Gas                  *hexutil.Uint64   `json:"gas,omitempty"`
	Value                *hexutil.Big      `json:"value,omitempty"`
	Data                 *hexutil.Bytes    `json:"data,omitempty"`
	Nonce                *hexutil.Uint64   `json:"nonce,omitempty"`
	AccessList           *types.AccessList `json:"accessList,omitempty"`
	Type                 *hexutil.Uint64   `json:"type,omitempty"`
}

// Validate checks the envelope's mandatory fields.
func (c *CallEnvelope) Validate() error {
	if c.To == nil {
		return &MissingFieldError{Field: "to"}
	}
	return nil
}

// Input returns the call payload, or nil when absent.
func (c *CallEnvelope) Input() []byte {
	if c.Data == nil {
		return nil
	}
	return *c.Data
}
