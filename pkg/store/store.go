// Package store provides the in-memory chain store serving raw-encoded
// artifacts to the debug service.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/stable-net/debugd/pkg/blockref"
)

// Common errors.
var (
	ErrNoGenesis    = errors.New("no genesis block set")
	ErrInvalidBlock = errors.New("invalid block")
	ErrKnownBlock   = errors.New("block already known")
	ErrGapBlock     = errors.New("block does not extend the current head")
)

// Encoded-artifact cache size. Entries are keyed by artifact kind plus
// hash, so one block contributes at most a handful of entries.
const encodedCacheSize = 1024

type cacheKind byte

const (
	kindHeader cacheKind = iota
	kindBlock
	kindTx
	kindReceipts
)

type cacheKey struct {
	kind cacheKind
	hash common.Hash
}

// txLocation records where a transaction was included.
type txLocation struct {
	blockHash common.Hash
	index     uint64
}

// Store keeps the chain in memory and serves RLP/EIP-2718 encoded
// artifacts. Writes happen at seeding time; request handling only
// reads.
type Store struct {
	chainID *big.Int

	blocks       map[common.Hash]*types.Block
	blockNumbers map[uint64]common.Hash
	receipts     map[common.Hash]types.Receipts
	txIndex      map[common.Hash]txLocation

	currentBlock *types.Block
	genesis      *types.Block

	encoded *lru.Cache

	mu sync.RWMutex
}

// New creates an empty store for the given chain.
func New(chainID *big.Int) *Store {
	cache, _ := lru.New(encodedCacheSize)

	return &Store{
		chainID:      chainID,
		blocks:       make(map[common.Hash]*types.Block),
		blockNumbers: make(map[uint64]common.Hash),
		receipts:     make(map[common.Hash]types.Receipts),
		txIndex:      make(map[common.Hash]txLocation),
		encoded:      cache,
	}
}

// ChainID returns the chain ID.
func (s *Store) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// SetGenesis installs the genesis block.
func (s *Store) SetGenesis(block *types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.NumberU64() != 0 {
		return ErrInvalidBlock
	}

	s.genesis = block
	s.currentBlock = block
	s.blocks[block.Hash()] = block
	s.blockNumbers[0] = block.Hash()
	return nil
}

// AddBlock appends a block extending the current head, together with
// its receipts.
func (s *Store) AddBlock(block *types.Block, receipts types.Receipts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.genesis == nil {
		return ErrNoGenesis
	}
	if _, ok := s.blocks[block.Hash()]; ok {
		return ErrKnownBlock
	}
	if block.NumberU64() != s.currentBlock.NumberU64()+1 || block.ParentHash() != s.currentBlock.Hash() {
		return fmt.Errorf("%w: number %d parent %s", ErrGapBlock, block.NumberU64(), block.ParentHash())
	}

	s.blocks[block.Hash()] = block
	s.blockNumbers[block.NumberU64()] = block.Hash()
	s.receipts[block.Hash()] = receipts
	for i, tx := range block.Transactions() {
		s.txIndex[tx.Hash()] = txLocation{blockHash: block.Hash(), index: uint64(i)}
	}
	s.currentBlock = block
	return nil
}

// CurrentBlock returns the head block.
func (s *Store) CurrentBlock() *types.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentBlock
}

// BlockNumber returns the head height.
func (s *Store) BlockNumber() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentBlock == nil {
		return 0
	}
	return s.currentBlock.NumberU64()
}

// Genesis returns the genesis block.
func (s *Store) Genesis() *types.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.genesis
}

// blockByRef resolves a reference to a stored block, or nil when
// unknown. Pending resolves to the head: the store holds no unmined
// state.
func (s *Store) blockByRef(ref blockref.Ref) *types.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case ref.Number != nil:
		hash, ok := s.blockNumbers[uint64(*ref.Number)]
		if !ok {
			return nil
		}
		return s.blocks[hash]
	case ref.Hash != nil:
		return s.blocks[*ref.Hash]
	case ref.Tag != nil:
		switch *ref.Tag {
		case blockref.Earliest:
			return s.genesis
		case blockref.Latest, blockref.Pending:
			return s.currentBlock
		}
	}
	return nil
}

// BlockByRef resolves a reference to a block, or nil when unknown.
func (s *Store) BlockByRef(ref blockref.Ref) *types.Block {
	return s.blockByRef(ref)
}

// RawHeader implements debug.Store.
func (s *Store) RawHeader(_ context.Context, ref blockref.Ref) ([]byte, error) {
	block := s.blockByRef(ref)
	if block == nil {
		return nil, nil
	}
	return s.encodeCached(cacheKey{kindHeader, block.Hash()}, func() ([]byte, error) {
		return rlp.EncodeToBytes(block.Header())
	})
}

// RawBlock implements debug.Store.
func (s *Store) RawBlock(_ context.Context, ref blockref.Ref) ([]byte, error) {
	block := s.blockByRef(ref)
	if block == nil {
		return nil, nil
	}
	return s.encodeCached(cacheKey{kindBlock, block.Hash()}, func() ([]byte, error) {
		return rlp.EncodeToBytes(block)
	})
}

// RawTransaction implements debug.Store.
func (s *Store) RawTransaction(_ context.Context, hash common.Hash) ([]byte, error) {
	s.mu.RLock()
	loc, ok := s.txIndex[hash]
	var tx *types.Transaction
	if ok {
		if block := s.blocks[loc.blockHash]; block != nil {
			txs := block.Transactions()
			if loc.index < uint64(len(txs)) {
				tx = txs[loc.index]
			}
		}
	}
	s.mu.RUnlock()

	if tx == nil {
		return nil, nil
	}
	return s.encodeCached(cacheKey{kindTx, hash}, tx.MarshalBinary)
}

// RawReceipts implements debug.Store. Unknown or receipt-less blocks
// yield an empty slice.
func (s *Store) RawReceipts(_ context.Context, ref blockref.Ref) ([][]byte, error) {
	block := s.blockByRef(ref)
	if block == nil {
		return [][]byte{}, nil
	}

	s.mu.RLock()
	receipts := s.receipts[block.Hash()]
	s.mu.RUnlock()

	out := make([][]byte, 0, len(receipts))
	for _, receipt := range receipts {
		raw, err := receipt.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode receipt: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// BlockReceipts returns the receipts stored for a block hash.
func (s *Store) BlockReceipts(blockHash common.Hash) types.Receipts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.receipts[blockHash]
}

func (s *Store) encodeCached(key cacheKey, encode func() ([]byte, error)) ([]byte, error) {
	if raw, ok := s.encoded.Get(key); ok {
		return raw.([]byte), nil
	}

	raw, err := encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	s.encoded.Add(key, raw)
	return raw, nil
}
