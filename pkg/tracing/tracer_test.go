package tracing

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallTracer_RecordsTopFrame(t *testing.T) {
	tracer, err := NewCallTracer(nil)
	require.NoError(t, err)

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	input := []byte{0x01, 0x02, 0x03}

	tracer.CaptureTxStart(100000)
	tracer.CaptureStart(from, to, input, 79000, big.NewInt(1000))
	tracer.CaptureEnd(nil, 0, nil)
	tracer.CaptureTxEnd(79000)

	result, err := tracer.GetResult()
	require.NoError(t, err)

	frame, ok := result.(*CallFrame)
	require.True(t, ok)
	assert.Equal(t, "CALL", frame.Type)
	assert.Equal(t, from, frame.From)
	assert.Equal(t, to, *frame.To)
	assert.EqualValues(t, input, frame.Input)
	assert.EqualValues(t, 100000, frame.Gas)
	assert.EqualValues(t, 21000, frame.GasUsed)
	require.NotNil(t, frame.Value)
	assert.Equal(t, int64(1000), frame.Value.ToInt().Int64())
}

func TestCallTracer_ZeroValueOmitted(t *testing.T) {
	tracer, err := NewCallTracer(nil)
	require.NoError(t, err)

	tracer.CaptureTxStart(30000)
	tracer.CaptureStart(common.Address{}, common.Address{}, nil, 9000, new(big.Int))
	tracer.CaptureTxEnd(9000)

	result, err := tracer.GetResult()
	require.NoError(t, err)
	assert.Nil(t, result.(*CallFrame).Value)
}

func TestCallTracer_Config(t *testing.T) {
	tracer, err := NewCallTracer(json.RawMessage(`{"onlyTopCall":true,"withLog":true}`))
	require.NoError(t, err)
	assert.True(t, tracer.config.OnlyTopCall)
	assert.True(t, tracer.config.WithLog)

	tracer.CaptureTxStart(30000)
	tracer.CaptureStart(common.Address{}, common.Address{}, nil, 9000, nil)

	// withLog materializes an empty log list in the frame.
	result, err := tracer.GetResult()
	require.NoError(t, err)
	assert.NotNil(t, result.(*CallFrame).Logs)
}

func TestCallTracer_BadConfig(t *testing.T) {
	_, err := NewCallTracer(json.RawMessage(`{"onlyTopCall": "yes"}`))
	assert.Error(t, err)
}

func TestCallTracer_Stop(t *testing.T) {
	tracer, err := NewCallTracer(nil)
	require.NoError(t, err)

	tracer.Stop(errors.New("interrupted"))
	tracer.CaptureStart(common.Address{}, common.Address{}, nil, 0, nil)

	_, err = tracer.GetResult()
	assert.EqualError(t, err, "interrupted")
}

func TestStructLogger_EmptyTrace(t *testing.T) {
	logger := NewStructLogger(StructLogConfig{})

	logger.CaptureTxStart(50000)
	logger.CaptureStart(common.Address{}, common.Address{}, nil, 29000, nil)
	logger.CaptureEnd(nil, 0, nil)
	logger.CaptureTxEnd(29000)

	result, err := logger.GetResult()
	require.NoError(t, err)

	exec, ok := result.(*ExecutionResult)
	require.True(t, ok)
	assert.EqualValues(t, 21000, exec.Gas)
	assert.False(t, exec.Failed)
	assert.Equal(t, "", exec.ReturnValue)
	require.NotNil(t, exec.StructLogs)
	assert.Empty(t, exec.StructLogs)
}

func TestStructLogger_CaptureState(t *testing.T) {
	logger := NewStructLogger(StructLogConfig{})

	stack := []*big.Int{big.NewInt(1), big.NewInt(2)}
	memory := make([]byte, 64)
	storage := map[common.Hash]common.Hash{
		common.HexToHash("0x1"): common.HexToHash("0x2"),
	}
	logger.CaptureState(0, vm.PUSH1, 50000, 3, 1, stack, memory, storage)

	result, err := logger.GetResult()
	require.NoError(t, err)

	logs := result.(*ExecutionResult).StructLogs
	require.Len(t, logs, 1)
	assert.Equal(t, "PUSH1", logs[0].Op)
	assert.Len(t, logs[0].Stack, 2)
	assert.Len(t, logs[0].Memory, 2)
	assert.Len(t, logs[0].Storage, 1)
}

func TestStructLogger_DisableFlags(t *testing.T) {
	logger := NewStructLogger(StructLogConfig{
		DisableStorage: true,
		DisableMemory:  true,
		DisableStack:   true,
	})

	stack := []*big.Int{big.NewInt(1)}
	storage := map[common.Hash]common.Hash{common.HexToHash("0x1"): common.HexToHash("0x2")}
	logger.CaptureState(0, vm.SSTORE, 50000, 100, 1, stack, make([]byte, 32), storage)

	result, err := logger.GetResult()
	require.NoError(t, err)

	logs := result.(*ExecutionResult).StructLogs
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].Stack)
	assert.Nil(t, logs[0].Memory)
	assert.Nil(t, logs[0].Storage)
}
