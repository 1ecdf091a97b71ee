// Package tracing implements the execution collaborator: it replays a
// described call against a referenced block and records the execution
// through a selected tracer.
package tracing

import (
	"encoding/json"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Tracer records a call replay and produces a structured result.
type Tracer interface {
	CaptureTxStart(gasLimit uint64)
	CaptureStart(from common.Address, to common.Address, input []byte, gas uint64, value *big.Int)
	CaptureEnd(output []byte, gasUsed uint64, err error)
	CaptureTxEnd(restGas uint64)

	// GetResult returns the tracer's result, or the error the tracer
	// was stopped with.
	GetResult() (interface{}, error)

	// Stop aborts tracing with the given reason.
	Stop(err error)
}

// CallLog is an event log emitted inside a call frame.
type CallLog struct {
	Address  common.Address `json:"address"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
	Position uint           `json:"position"`
}

// CallFrame is the call-tracer result: one frame per call, nested
// frames under Calls.
type CallFrame struct {
	Type    string          `json:"type"`
	From    common.Address  `json:"from"`
	To      *common.Address `json:"to,omitempty"`
	Value   *hexutil.Big    `json:"value,omitempty"`
	Gas     hexutil.Uint64  `json:"gas"`
	GasUsed hexutil.Uint64  `json:"gasUsed"`
	Input   hexutil.Bytes   `json:"input,omitempty"`
	Output  hexutil.Bytes   `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
	Calls   []CallFrame     `json:"calls,omitempty"`
	Logs    []CallLog       `json:"logs,omitempty"`
}

// CallTracerConfig configures the call tracer.
type CallTracerConfig struct {
	OnlyTopCall bool `json:"onlyTopCall"`
	WithLog     bool `json:"withLog"`
}

// CallTracer records the top-level call frame of a replay.
type CallTracer struct {
	frame     CallFrame
	config    CallTracerConfig
	gasLimit  uint64
	interrupt atomic.Bool
	reason    error
}

// NewCallTracer creates a call tracer. The raw configuration comes from
// the client's tracerConfig operand and must be a JSON object when
// present.
func NewCallTracer(rawConfig json.RawMessage) (*CallTracer, error) {
	var config CallTracerConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, err
		}
	}
	return &CallTracer{config: config}, nil
}

// CaptureTxStart implements Tracer.
func (t *CallTracer) CaptureTxStart(gasLimit uint64) {
	t.gasLimit = gasLimit
}

// CaptureStart implements Tracer.
func (t *CallTracer) CaptureStart(from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
	if t.interrupt.Load() {
		return
	}

	toCopy := to
	t.frame = CallFrame{
		Type:  "CALL",
		From:  from,
		To:    &toCopy,
		Input: common.CopyBytes(input),
		Gas:   hexutil.Uint64(t.gasLimit),
	}
	if value != nil && value.Sign() > 0 {
		t.frame.Value = (*hexutil.Big)(value)
	}
	if t.config.WithLog {
		t.frame.Logs = []CallLog{}
	}
}

// CaptureEnd implements Tracer.
func (t *CallTracer) CaptureEnd(output []byte, gasUsed uint64, err error) {
	if len(output) > 0 {
		t.frame.Output = common.CopyBytes(output)
	}
	t.frame.GasUsed = hexutil.Uint64(gasUsed)
	if err != nil {
		t.frame.Error = err.Error()
	}
}

// CaptureTxEnd implements Tracer.
func (t *CallTracer) CaptureTxEnd(restGas uint64) {
	t.frame.GasUsed = hexutil.Uint64(t.gasLimit - restGas)
}

// GetResult returns the recorded top-level frame.
func (t *CallTracer) GetResult() (interface{}, error) {
	if t.reason != nil {
		return nil, t.reason
	}
	return &t.frame, nil
}

// Stop aborts tracing.
func (t *CallTracer) Stop(err error) {
	t.reason = err
	t.interrupt.Store(true)
}
