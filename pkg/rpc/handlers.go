package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/stable-net/debugd/pkg/blockref"
	"github.com/stable-net/debugd/pkg/codec"
	"github.com/stable-net/debugd/pkg/debug"
)

// splitParams decodes the positional params array and checks arity.
func splitParams(params json.RawMessage, min int) ([]json.RawMessage, *ErrorObject) {
	var raws []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raws); err != nil {
			return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid params"}
		}
	}
	if len(raws) < min {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("Expected at least %d params, got %d", min, len(raws))}
	}
	return raws, nil
}

// decodeRef decodes a block reference operand.
func decodeRef(raw json.RawMessage) (blockref.Ref, *ErrorObject) {
	var ref blockref.Ref
	if err := json.Unmarshal(raw, &ref); err != nil {
		return blockref.Ref{}, &ErrorObject{Code: ErrCodeInvalidParams, Message: err.Error()}
	}
	return ref, nil
}

// errToRPC maps service errors to the wire taxonomy: malformed input is
// an invalid-params error, everything else a server error with the
// collaborator's message.
func errToRPC(err error) *ErrorObject {
	if debug.IsDecodeError(err) {
		return &ErrorObject{Code: ErrCodeInvalidParams, Message: err.Error()}
	}
	return &ErrorObject{Code: ErrCodeServerError, Message: err.Error()}
}

func (s *Server) debugGetRawHeader(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	raws, rpcErr := splitParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := decodeRef(raws[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	raw, err := s.api.RawHeader(ctx, ref)
	if err != nil {
		return nil, errToRPC(err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw, nil
}

func (s *Server) debugGetRawBlock(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	raws, rpcErr := splitParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := decodeRef(raws[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	raw, err := s.api.RawBlock(ctx, ref)
	if err != nil {
		return nil, errToRPC(err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw, nil
}

func (s *Server) debugGetRawTransaction(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	raws, rpcErr := splitParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var hashStr string
	if err := json.Unmarshal(raws[0], &hashStr); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: "Invalid transaction hash"}
	}
	hash, err := codec.ParseHash(hashStr)
	if err != nil {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: err.Error()}
	}

	raw, err := s.api.RawTransaction(ctx, hash)
	if err != nil {
		return nil, errToRPC(err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw, nil
}

func (s *Server) debugGetRawReceipts(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	raws, rpcErr := splitParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := decodeRef(raws[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	receipts, err := s.api.RawReceipts(ctx, ref)
	if err != nil {
		return nil, errToRPC(err)
	}
	return receipts, nil
}

func (s *Server) debugGetBadBlocks(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	raws, rpcErr := splitParams(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := decodeRef(raws[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	blocks, err := s.api.BadBlocks(ctx, ref)
	if err != nil {
		return nil, errToRPC(err)
	}
	return blocks, nil
}

func (s *Server) debugTraceCall(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	raws, rpcErr := splitParams(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var call debug.CallEnvelope
	if err := json.Unmarshal(raws[0], &call); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: err.Error()}
	}

	ref, rpcErr := decodeRef(raws[1])
	if rpcErr != nil {
		return nil, rpcErr
	}

	var opts *debug.TraceOptions
	if len(raws) >= 3 && string(raws[2]) != "null" {
		opts = new(debug.TraceOptions)
		if err := json.Unmarshal(raws[2], opts); err != nil {
			return nil, &ErrorObject{Code: ErrCodeInvalidParams, Message: err.Error()}
		}
	}

	// Trace execution is CPU-heavy; it runs on the bounded pool so a
	// burst of traces cannot starve the raw-retrieval path.
	task := s.traces.SubmitErr(func() (interface{}, error) {
		s.metrics.tracesInFlight.Inc()
		defer s.metrics.tracesInFlight.Dec()

		return s.api.TraceCall(ctx, call, ref, opts)
	})

	result, err := task.Wait()
	if err != nil {
		log.Debug("Trace call failed", "block", ref.String(), "err", err)
		return nil, errToRPC(err)
	}
	return result, nil
}
