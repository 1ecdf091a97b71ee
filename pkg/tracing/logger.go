package tracing

import (
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
)

// StructLogConfig controls which parts of the machine state each step
// records.
type StructLogConfig struct {
	DisableStorage bool
	DisableMemory  bool
	DisableStack   bool
}

// StructLog is a single recorded execution step.
type StructLog struct {
	Pc      uint64                      `json:"pc"`
	Op      string                      `json:"op"`
	Gas     uint64                      `json:"gas"`
	GasCost uint64                      `json:"gasCost"`
	Depth   int                         `json:"depth"`
	Stack   []hexutil.Big               `json:"stack,omitempty"`
	Memory  []string                    `json:"memory,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

// ExecutionResult is the default tracer's result: the geth step-trace
// shape clients expect from debug_traceCall without a tracer selector.
type ExecutionResult struct {
	Gas         uint64      `json:"gas"`
	Failed      bool        `json:"failed"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []StructLog `json:"structLogs"`
}

// StructLogger is the default step tracer. It records one StructLog per
// executed opcode, trimming stack, memory and storage captures per its
// config.
type StructLogger struct {
	config StructLogConfig

	logs     []StructLog
	gasLimit uint64
	usedGas  uint64
	output   []byte
	err      error

	interrupt atomic.Bool
	reason    error
}

// NewStructLogger creates the default step tracer.
func NewStructLogger(config StructLogConfig) *StructLogger {
	return &StructLogger{
		config: config,
		logs:   []StructLog{},
	}
}

// CaptureTxStart implements Tracer.
func (l *StructLogger) CaptureTxStart(gasLimit uint64) {
	l.gasLimit = gasLimit
}

// CaptureStart implements Tracer.
func (l *StructLogger) CaptureStart(from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
}

// CaptureState records one execution step.
func (l *StructLogger) CaptureState(pc uint64, op vm.OpCode, gas, cost uint64, depth int, stack []*big.Int, memory []byte, storage map[common.Hash]common.Hash) {
	if l.interrupt.Load() {
		return
	}

	entry := StructLog{
		Pc:      pc,
		Op:      op.String(),
		Gas:     gas,
		GasCost: cost,
		Depth:   depth,
	}

	if !l.config.DisableStack {
		entry.Stack = make([]hexutil.Big, len(stack))
		for i, v := range stack {
			entry.Stack[i] = hexutil.Big(*v)
		}
	}
	if !l.config.DisableMemory {
		entry.Memory = formatMemory(memory)
	}
	if !l.config.DisableStorage && len(storage) > 0 {
		entry.Storage = storage
	}

	l.logs = append(l.logs, entry)
}

// CaptureEnd implements Tracer.
func (l *StructLogger) CaptureEnd(output []byte, gasUsed uint64, err error) {
	l.output = common.CopyBytes(output)
	l.usedGas = gasUsed
	l.err = err
}

// CaptureTxEnd implements Tracer.
func (l *StructLogger) CaptureTxEnd(restGas uint64) {
	l.usedGas = l.gasLimit - restGas
}

// GetResult returns the step-trace result.
func (l *StructLogger) GetResult() (interface{}, error) {
	if l.reason != nil {
		return nil, l.reason
	}

	result := &ExecutionResult{
		Gas:         l.usedGas,
		Failed:      l.err != nil,
		ReturnValue: hexutil.Encode(l.output)[2:],
		StructLogs:  l.logs,
	}
	return result, nil
}

// Stop aborts tracing.
func (l *StructLogger) Stop(err error) {
	l.reason = err
	l.interrupt.Store(true)
}

// formatMemory chunks memory into 32-byte hex words.
func formatMemory(memory []byte) []string {
	words := make([]string, 0, (len(memory)+31)/32)
	for i := 0; i+32 <= len(memory); i += 32 {
		words = append(words, common.Bytes2Hex(memory[i:i+32]))
	}
	return words
}
