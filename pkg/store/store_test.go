package store

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/debugd/pkg/blockref"
)

func newTestBlock(parent *types.Block, txs []*types.Transaction, receipts types.Receipts) *types.Block {
	header := &types.Header{
		Number:     big.NewInt(0),
		Time:       1700000000,
		GasLimit:   30000000,
		Difficulty: big.NewInt(1),
	}
	if parent != nil {
		header.ParentHash = parent.Hash()
		header.Number = new(big.Int).Add(parent.Number(), big.NewInt(1))
		header.Time = parent.Time() + 12
	}
	hasher := trie.NewStackTrie(nil)
	return types.NewBlock(header, txs, nil, receipts, hasher)
}

func newTestTx(nonce uint64) *types.Transaction {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1000000000),
	})
}

func setupStore(t *testing.T) (*Store, *types.Block) {
	t.Helper()

	s := New(big.NewInt(31337))
	genesis := newTestBlock(nil, nil, nil)
	require.NoError(t, s.SetGenesis(genesis))

	tx := newTestTx(0)
	receipt := &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		TxHash:            tx.Hash(),
	}
	block := newTestBlock(genesis, []*types.Transaction{tx}, types.Receipts{receipt})
	require.NoError(t, s.AddBlock(block, types.Receipts{receipt}))
	return s, block
}

func TestStore_SetGenesisRejectsNonZeroNumber(t *testing.T) {
	s := New(big.NewInt(31337))
	genesis := newTestBlock(nil, nil, nil)
	require.NoError(t, s.SetGenesis(genesis))

	bad := newTestBlock(genesis, nil, nil)
	assert.ErrorIs(t, s.SetGenesis(bad), ErrInvalidBlock)
}

func TestStore_AddBlockRequiresGenesis(t *testing.T) {
	s := New(big.NewInt(31337))
	assert.ErrorIs(t, s.AddBlock(newTestBlock(nil, nil, nil), nil), ErrNoGenesis)
}

func TestStore_AddBlockRejectsGaps(t *testing.T) {
	s, head := setupStore(t)

	orphan := newTestBlock(head, nil, nil)
	skipped := newTestBlock(orphan, nil, nil)
	assert.ErrorIs(t, s.AddBlock(skipped, nil), ErrGapBlock)
}

func TestStore_RawHeader(t *testing.T) {
	s, block := setupStore(t)

	want, err := rlp.EncodeToBytes(block.Header())
	require.NoError(t, err)

	raw, err := s.RawHeader(context.Background(), blockref.Number(1))
	require.NoError(t, err)
	assert.Equal(t, want, raw)

	raw, err = s.RawHeader(context.Background(), blockref.Hash(block.Hash()))
	require.NoError(t, err)
	assert.Equal(t, want, raw)
}

func TestStore_RawHeader_UnknownIsNil(t *testing.T) {
	s, _ := setupStore(t)

	raw, err := s.RawHeader(context.Background(), blockref.Number(42))
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = s.RawHeader(context.Background(), blockref.Hash(common.HexToHash("0xdead")))
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStore_RawBlock_Tags(t *testing.T) {
	s, block := setupStore(t)

	want, err := rlp.EncodeToBytes(block)
	require.NoError(t, err)

	for _, tag := range []blockref.Tag{blockref.Latest, blockref.Pending} {
		raw, err := s.RawBlock(context.Background(), blockref.ByTag(tag))
		require.NoError(t, err)
		assert.Equal(t, want, raw, "tag %s", tag)
	}

	wantGenesis, err := rlp.EncodeToBytes(s.Genesis())
	require.NoError(t, err)

	raw, err := s.RawBlock(context.Background(), blockref.ByTag(blockref.Earliest))
	require.NoError(t, err)
	assert.Equal(t, wantGenesis, raw)
}

func TestStore_RawTransaction(t *testing.T) {
	s, block := setupStore(t)
	tx := block.Transactions()[0]

	want, err := tx.MarshalBinary()
	require.NoError(t, err)

	raw, err := s.RawTransaction(context.Background(), tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, want, raw)

	raw, err = s.RawTransaction(context.Background(), common.HexToHash("0xbeef"))
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStore_RawReceipts(t *testing.T) {
	s, block := setupStore(t)

	raws, err := s.RawReceipts(context.Background(), blockref.Hash(block.Hash()))
	require.NoError(t, err)
	require.Len(t, raws, 1)

	want, err := s.BlockReceipts(block.Hash())[0].MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, want, raws[0])
}

func TestStore_RawReceipts_UnknownIsEmpty(t *testing.T) {
	s, _ := setupStore(t)

	raws, err := s.RawReceipts(context.Background(), blockref.Number(42))
	require.NoError(t, err)
	require.NotNil(t, raws)
	assert.Empty(t, raws)

	// Known block without transactions also yields empty, not null.
	raws, err = s.RawReceipts(context.Background(), blockref.Number(0))
	require.NoError(t, err)
	require.NotNil(t, raws)
	assert.Empty(t, raws)
}

func TestStore_EncodedCacheStable(t *testing.T) {
	s, block := setupStore(t)

	first, err := s.RawBlock(context.Background(), blockref.Hash(block.Hash()))
	require.NoError(t, err)

	second, err := s.RawBlock(context.Background(), blockref.Hash(block.Hash()))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
