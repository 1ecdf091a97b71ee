package debug

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/stable-net/debugd/pkg/blockref"
)

// Store is the read-only artifact store collaborator. A miss is not an
// error: lookups return (nil, nil) or an empty slice for unknown
// references.
type Store interface {
	RawHeader(ctx context.Context, ref blockref.Ref) ([]byte, error)
	RawBlock(ctx context.Context, ref blockref.Ref) ([]byte, error)
	RawTransaction(ctx context.Context, hash common.Hash) ([]byte, error)
	RawReceipts(ctx context.Context, ref blockref.Ref) ([][]byte, error)
}

// TraceEngine is the execution collaborator that replays a call and
// produces a structured trace. It receives normalized options and owns
// tracer-name resolution, configuration validation and timeout
// enforcement.
type TraceEngine interface {
	TraceCall(ctx context.Context, call CallEnvelope, ref blockref.Ref, opts TraceOptions) (interface{}, error)
}

// API is the debug service contract.
type API interface {
	// RawHeader returns the RLP-encoded header of the referenced block,
	// or nil when the block is unknown.
	RawHeader(ctx context.Context, ref blockref.Ref) (hexutil.Bytes, error)

	// RawBlock returns the RLP-encoded block, or nil when unknown.
	RawBlock(ctx context.Context, ref blockref.Ref) (hexutil.Bytes, error)

	// RawTransaction returns the EIP-2718 binary-encoded transaction
	// with the given hash, or nil when unknown.
	RawTransaction(ctx context.Context, hash common.Hash) (hexutil.Bytes, error)

	// RawReceipts returns the binary-encoded receipts of the referenced
	// block, in order. Unknown or receipt-less blocks yield an empty
	// slice.
	RawReceipts(ctx context.Context, ref blockref.Ref) ([]hexutil.Bytes, error)

	// BadBlocks returns recent invalid-block records. Reserved: the
	// result is always empty.
	BadBlocks(ctx context.Context, ref blockref.Ref) ([]interface{}, error)

	// TraceCall replays the described call at the referenced block and
	// returns the tracer's result.
	TraceCall(ctx context.Context, call CallEnvelope, ref blockref.Ref, opts *TraceOptions) (interface{}, error)
}

// Service implements API over the store and engine collaborators. It is
// stateless: every request is an independent unit of work built from
// immutable per-request values.
type Service struct {
	store  Store
	engine TraceEngine
}

// NewService creates the debug service.
func NewService(store Store, engine TraceEngine) *Service {
	return &Service{store: store, engine: engine}
}

func (s *Service) RawHeader(ctx context.Context, ref blockref.Ref) (hexutil.Bytes, error) {
	raw, err := s.store.RawHeader(ctx, ref)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) RawBlock(ctx context.Context, ref blockref.Ref) (hexutil.Bytes, error) {
	raw, err := s.store.RawBlock(ctx, ref)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) RawTransaction(ctx context.Context, hash common.Hash) (hexutil.Bytes, error) {
	raw, err := s.store.RawTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) RawReceipts(ctx context.Context, ref blockref.Ref) ([]hexutil.Bytes, error) {
	raws, err := s.store.RawReceipts(ctx, ref)
	if err != nil {
		return nil, err
	}

	out := make([]hexutil.Bytes, len(raws))
	for i, raw := range raws {
		out[i] = raw
	}
	return out, nil
}

func (s *Service) BadBlocks(ctx context.Context, ref blockref.Ref) ([]interface{}, error) {
	// Reserved. The node does not track invalid blocks; clients get an
	// empty list for any reference.
	return []interface{}{}, nil
}

func (s *Service) TraceCall(ctx context.Context, call CallEnvelope, ref blockref.Ref, opts *TraceOptions) (interface{}, error) {
	if err := call.Validate(); err != nil {
		return nil, err
	}

	norm := opts.Normalize()

	log.Debug("Tracing call", "to", call.To, "block", ref.String())
	return s.engine.TraceCall(ctx, call, ref, norm)
}
