package tracing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/stable-net/debugd/pkg/blockref"
	"github.com/stable-net/debugd/pkg/debug"
	"github.com/stable-net/debugd/pkg/store"
)

// Engine errors, surfaced to clients as server errors.
var (
	ErrUnsupportedTracer = errors.New("unsupported tracer")
	ErrBlockNotFound     = errors.New("trace block not found")
	ErrTraceTimeout      = errors.New("trace execution timeout")
)

// Built-in tracer selector accepted on the wire besides the default
// step tracer.
const callTracerName = "callTracer"

// Engine replays synthetic calls against stored blocks. The node keeps
// raw artifacts but no account state, so a replay models a plain call
// into stateless code: intrinsic gas accounting, no opcode execution.
type Engine struct {
	store *store.Store

	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

// NewEngine creates a trace engine over the chain store. defaultTimeout
// bounds traces whose options carry no timeout; maxTimeout caps
// client-supplied values.
func NewEngine(chain *store.Store, defaultTimeout, maxTimeout time.Duration) *Engine {
	return &Engine{
		store:          chain,
		defaultTimeout: defaultTimeout,
		maxTimeout:     maxTimeout,
	}
}

// TraceCall implements debug.TraceEngine.
func (e *Engine) TraceCall(ctx context.Context, call debug.CallEnvelope, ref blockref.Ref, opts debug.TraceOptions) (interface{}, error) {
	block := e.store.BlockByRef(ref)
	if block == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, ref)
	}

	timeout, err := e.timeout(opts)
	if err != nil {
		return nil, err
	}

	tracer, err := e.selectTracer(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		tracer.Stop(fmt.Errorf("%w after %s", ErrTraceTimeout, timeout))
	})
	defer stop()

	if err := e.replay(tracer, call, block); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w after %s", ErrTraceTimeout, timeout)
	}

	log.Debug("Traced call", "block", block.NumberU64(), "to", call.To, "timeout", timeout)
	return tracer.GetResult()
}

// timeout resolves the client-supplied bound against the engine's
// default and cap.
func (e *Engine) timeout(opts debug.TraceOptions) (time.Duration, error) {
	if opts.Timeout == nil {
		return e.defaultTimeout, nil
	}

	d, err := time.ParseDuration(*opts.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid trace timeout %q: %w", *opts.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid trace timeout %q: not positive", *opts.Timeout)
	}
	if d > e.maxTimeout {
		d = e.maxTimeout
	}
	return d, nil
}

// selectTracer resolves the tracer selector. An absent selector means
// the default step tracer; tracerConfig applies only to structured
// tracers and is ignored otherwise.
func (e *Engine) selectTracer(opts debug.TraceOptions) (Tracer, error) {
	if opts.Tracer == nil || *opts.Tracer == "" {
		return NewStructLogger(StructLogConfig{
			DisableStorage: *opts.DisableStorage,
			DisableMemory:  *opts.DisableMemory,
			DisableStack:   *opts.DisableStack,
		}), nil
	}

	switch *opts.Tracer {
	case callTracerName:
		tracer, err := NewCallTracer(opts.TracerConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid tracerConfig: %w", err)
		}
		return tracer, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedTracer, *opts.Tracer)
}

// replay drives the tracer through the synthetic call. Downstream
// defaults are substituted here, not in the decode layer: absent value
// means zero, absent gas means the block gas limit.
func (e *Engine) replay(tracer Tracer, call debug.CallEnvelope, block *types.Block) error {
	gasLimit := block.GasLimit()
	if call.Gas != nil {
		gasLimit = uint64(*call.Gas)
	}

	value := new(big.Int)
	if call.Value != nil {
		value = call.Value.ToInt()
	}

	var accessList types.AccessList
	if call.AccessList != nil {
		accessList = *call.AccessList
	}

	intrinsic := intrinsicGas(call.Input(), accessList)
	if intrinsic > gasLimit {
		return fmt.Errorf("intrinsic gas %d exceeds gas limit %d", intrinsic, gasLimit)
	}

	var sender common.Address
	if call.From != nil {
		sender = *call.From
	}

	tracer.CaptureTxStart(gasLimit)
	tracer.CaptureStart(sender, *call.To, call.Input(), gasLimit-intrinsic, value)
	tracer.CaptureEnd(nil, 0, nil)
	tracer.CaptureTxEnd(gasLimit - intrinsic)
	return nil
}

// intrinsicGas mirrors the protocol's pre-execution gas charge for a
// call with the given payload and access list.
func intrinsicGas(data []byte, accessList types.AccessList) uint64 {
	gas := params.TxGas

	for _, b := range data {
		if b == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += params.TxDataNonZeroGasEIP2028
		}
	}

	gas += uint64(len(accessList)) * params.TxAccessListAddressGas
	gas += uint64(accessList.StorageKeys()) * params.TxAccessListStorageKeyGas
	return gas
}
