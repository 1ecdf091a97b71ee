// Package genesis seeds the debug node's chain store with a
// deterministic dev chain: mnemonic-derived funded accounts, a genesis
// block, and a configurable number of blocks of simple transfers so the
// raw-artifact endpoints have data to serve on a fresh node.
package genesis

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/tyler-smith/go-bip39"

	"github.com/stable-net/debugd/pkg/config"
	"github.com/stable-net/debugd/pkg/store"
)

// Account is a dev account with its private key.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// GenerateAccounts derives deterministic accounts from a mnemonic.
func GenerateAccounts(mnemonic string, count int) ([]*Account, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	accounts := make([]*Account, count)

	for i := 0; i < count; i++ {
		key, err := deriveKey(seed, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("failed to derive key %d: %w", i, err)
		}

		accounts[i] = &Account{
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		}
	}

	return accounts, nil
}

// deriveKey derives a private key from seed at the given index.
// Simplified derivation for dev chains, not BIP-32/BIP-44.
func deriveKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	indexBytes := []byte{
		byte(index >> 24),
		byte(index >> 16),
		byte(index >> 8),
		byte(index),
	}

	hash := crypto.Keccak256(append(seed, indexBytes...))
	return crypto.ToECDSA(hash)
}

// DevGenesis creates a genesis spec funding the dev accounts.
func DevGenesis(cfg *config.Config) (*core.Genesis, []*Account, error) {
	accounts, err := GenerateAccounts(cfg.Mnemonic, cfg.AccountCount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate accounts: %w", err)
	}

	alloc := make(core.GenesisAlloc)
	for _, acc := range accounts {
		alloc[acc.Address] = core.GenesisAccount{
			Balance: new(big.Int).Set(cfg.DefaultBalance),
		}
	}

	spec := &core.Genesis{
		Config:     devChainConfig(cfg.ChainID),
		Nonce:      0,
		Timestamp:  0,
		GasLimit:   cfg.GasLimit,
		Difficulty: big.NewInt(1),
		Alloc:      alloc,
	}
	return spec, accounts, nil
}

// devChainConfig enables forks through Berlin. Later forks change the
// header shape (base fee, withdrawals); the seeded dev chain sticks to
// legacy headers.
func devChainConfig(chainID uint64) *params.ChainConfig {
	zero := big.NewInt(0)
	return &params.ChainConfig{
		ChainID:             new(big.Int).SetUint64(chainID),
		HomesteadBlock:      zero,
		EIP150Block:         zero,
		EIP155Block:         zero,
		EIP158Block:         zero,
		ByzantiumBlock:      zero,
		ConstantinopleBlock: zero,
		PetersburgBlock:     zero,
		IstanbulBlock:       zero,
		BerlinBlock:         zero,
	}
}

// Seed populates the store with the dev genesis and cfg.SeedBlocks
// blocks, each carrying one signed transfer between consecutive dev
// accounts. The chain is fully deterministic for a given config.
func Seed(st *store.Store, cfg *config.Config) ([]*Account, error) {
	spec, accounts, err := DevGenesis(cfg)
	if err != nil {
		return nil, err
	}

	genesisBlock := spec.ToBlock()
	if err := st.SetGenesis(genesisBlock); err != nil {
		return nil, fmt.Errorf("failed to install genesis: %w", err)
	}

	signer := types.NewEIP155Signer(new(big.Int).SetUint64(cfg.ChainID))
	parent := genesisBlock

	for i := 0; i < cfg.SeedBlocks; i++ {
		sender := accounts[i%len(accounts)]
		recipient := accounts[(i+1)%len(accounts)].Address

		tx := types.NewTx(&types.LegacyTx{
			Nonce:    uint64(i / len(accounts)),
			To:       &recipient,
			Value:    big.NewInt(1e15),
			Gas:      params.TxGas,
			GasPrice: big.NewInt(1e9),
		})
		signed, err := types.SignTx(tx, signer, sender.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign seed transaction: %w", err)
		}

		receipt := &types.Receipt{
			Type:              types.LegacyTxType,
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: params.TxGas,
			TxHash:            signed.Hash(),
		}
		receipts := types.Receipts{receipt}

		header := &types.Header{
			ParentHash: parent.Hash(),
			Number:     new(big.Int).Add(parent.Number(), big.NewInt(1)),
			Time:       parent.Time() + 12,
			GasLimit:   cfg.GasLimit,
			GasUsed:    params.TxGas,
			Difficulty: big.NewInt(1),
			Coinbase:   accounts[0].Address,
		}
		block := types.NewBlock(header, []*types.Transaction{signed}, nil, receipts, trie.NewStackTrie(nil))

		if err := st.AddBlock(block, receipts); err != nil {
			return nil, fmt.Errorf("failed to seed block %d: %w", i+1, err)
		}
		parent = block
	}

	return accounts, nil
}
