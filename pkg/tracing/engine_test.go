package tracing

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/debugd/pkg/blockref"
	"github.com/stable-net/debugd/pkg/debug"
	"github.com/stable-net/debugd/pkg/store"
)

func setupEngine(t *testing.T) *Engine {
	t.Helper()

	chain := store.New(big.NewInt(31337))
	header := &types.Header{
		Number:     big.NewInt(0),
		Time:       1700000000,
		GasLimit:   30000000,
		Difficulty: big.NewInt(1),
	}
	genesis := types.NewBlock(header, nil, nil, nil, trie.NewStackTrie(nil))
	require.NoError(t, chain.SetGenesis(genesis))

	return NewEngine(chain, 5*time.Second, 30*time.Second)
}

func traceEnv(to common.Address) debug.CallEnvelope {
	return debug.CallEnvelope{To: &to}
}

func TestEngine_DefaultTracer(t *testing.T) {
	engine := setupEngine(t)

	env := traceEnv(common.HexToAddress("0x2222222222222222222222222222222222222222"))
	result, err := engine.TraceCall(context.Background(), env, blockref.ByTag(blockref.Latest), (*debug.TraceOptions)(nil).Normalize())
	require.NoError(t, err)

	exec, ok := result.(*ExecutionResult)
	require.True(t, ok)
	assert.Equal(t, params.TxGas, exec.Gas)
	assert.False(t, exec.Failed)
	assert.Empty(t, exec.StructLogs)
}

func TestEngine_CallTracer(t *testing.T) {
	engine := setupEngine(t)

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	gas := hexutil.Uint64(100000)
	value := (*hexutil.Big)(big.NewInt(7))
	data := hexutil.Bytes{0x00, 0x01}

	env := debug.CallEnvelope{From: &from, To: &to, Gas: &gas, Value: value, Data: &data}
	tracer := callTracerName
	opts := (&debug.TraceOptions{
		Tracer:       &tracer,
		TracerConfig: json.RawMessage(`{"withLog":true}`),
	}).Normalize()

	result, err := engine.TraceCall(context.Background(), env, blockref.Number(0), opts)
	require.NoError(t, err)

	frame, ok := result.(*CallFrame)
	require.True(t, ok)
	assert.Equal(t, from, frame.From)
	assert.Equal(t, to, *frame.To)
	assert.EqualValues(t, 100000, frame.Gas)

	// 21000 intrinsic + one zero byte + one non-zero byte.
	wantGas := params.TxGas + params.TxDataZeroGas + params.TxDataNonZeroGasEIP2028
	assert.EqualValues(t, wantGas, frame.GasUsed)
}

func TestEngine_AccessListGas(t *testing.T) {
	engine := setupEngine(t)

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	accessList := types.AccessList{{
		Address:     common.HexToAddress("0x3333333333333333333333333333333333333333"),
		StorageKeys: []common.Hash{common.HexToHash("0x1"), common.HexToHash("0x2")},
	}}
	env := debug.CallEnvelope{To: &to, AccessList: &accessList}

	result, err := engine.TraceCall(context.Background(), env, blockref.ByTag(blockref.Earliest), (*debug.TraceOptions)(nil).Normalize())
	require.NoError(t, err)

	wantGas := params.TxGas + params.TxAccessListAddressGas + 2*params.TxAccessListStorageKeyGas
	assert.Equal(t, wantGas, result.(*ExecutionResult).Gas)
}

func TestEngine_UnknownBlock(t *testing.T) {
	engine := setupEngine(t)

	env := traceEnv(common.Address{})
	_, err := engine.TraceCall(context.Background(), env, blockref.Number(42), (*debug.TraceOptions)(nil).Normalize())
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestEngine_UnsupportedTracer(t *testing.T) {
	engine := setupEngine(t)

	tracer := "prestateTracer"
	opts := (&debug.TraceOptions{Tracer: &tracer}).Normalize()

	env := traceEnv(common.Address{})
	_, err := engine.TraceCall(context.Background(), env, blockref.Number(0), opts)
	assert.ErrorIs(t, err, ErrUnsupportedTracer)
}

func TestEngine_InvalidTimeout(t *testing.T) {
	engine := setupEngine(t)

	for _, bad := range []string{"soon", "-5s", "0s"} {
		timeout := bad
		opts := (&debug.TraceOptions{Timeout: &timeout}).Normalize()

		env := traceEnv(common.Address{})
		_, err := engine.TraceCall(context.Background(), env, blockref.Number(0), opts)
		assert.Error(t, err, "timeout %q", bad)
	}
}

func TestEngine_GasLimitTooLow(t *testing.T) {
	engine := setupEngine(t)

	to := common.Address{}
	gas := hexutil.Uint64(100)
	env := debug.CallEnvelope{To: &to, Gas: &gas}

	_, err := engine.TraceCall(context.Background(), env, blockref.Number(0), (*debug.TraceOptions)(nil).Normalize())
	assert.ErrorContains(t, err, "intrinsic gas")
}

func TestEngine_CancelledContext(t *testing.T) {
	engine := setupEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := traceEnv(common.Address{})
	_, err := engine.TraceCall(ctx, env, blockref.Number(0), (*debug.TraceOptions)(nil).Normalize())
	assert.Error(t, err)
}
