package marketdata

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/sniper-agent/internal/blockchain/solbc"
)

// fakeHolderRPC serves fixed token accounts for any mint.
type fakeHolderRPC struct {
	accounts []solbc.TokenBalance
	supply   uint64
}

func (f *fakeHolderRPC) CountTokenHolders(_ context.Context, _ solana.PublicKey, exclude ...solana.PublicKey) (int, error) {
	n := 0
	for _, acc := range f.accounts {
		skip := false
		for _, key := range exclude {
			if key.Equals(acc.Address) {
				skip = true
			}
		}
		if !skip {
			n++
		}
	}
	return n, nil
}

func (f *fakeHolderRPC) LargestTokenAccounts(context.Context, solana.PublicKey) ([]solbc.TokenBalance, error) {
	return f.accounts, nil
}

func (f *fakeHolderRPC) TokenSupply(context.Context, solana.PublicKey) (uint64, error) {
	return f.supply, nil
}

func TestHolderStatsExcludesCurveVault(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	vault := solana.NewWallet().PublicKey()
	rpc := &fakeHolderRPC{
		supply: 1_000_000_000,
		accounts: []solbc.TokenBalance{
			{Address: vault, Amount: 900_000_000},
			{Address: solana.NewWallet().PublicKey(), Amount: 40_000_000},
			{Address: solana.NewWallet().PublicKey(), Amount: 10_000_000},
		},
	}
	reserve := func(m solana.PublicKey) (solana.PublicKey, error) {
		require.True(t, m.Equals(mint))
		return vault, nil
	}

	stats, err := NewRPCHolders(rpc, reserve).HolderStats(context.Background(), mint.String())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Holders)
	assert.True(t, decimal.RequireFromString("0.04").Equal(stats.Concentration), "concentration %s", stats.Concentration)
}

func TestHolderStatsWithoutReserve(t *testing.T) {
	rpc := &fakeHolderRPC{
		supply:   1_000,
		accounts: []solbc.TokenBalance{{Address: solana.NewWallet().PublicKey(), Amount: 250}},
	}

	stats, err := NewRPCHolders(rpc, nil).HolderStats(context.Background(), solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Holders)
	assert.True(t, decimal.RequireFromString("0.25").Equal(stats.Concentration))
}

func TestHolderStatsOnlyVault(t *testing.T) {
	vault := solana.NewWallet().PublicKey()
	rpc := &fakeHolderRPC{supply: 1_000, accounts: []solbc.TokenBalance{{Address: vault, Amount: 1_000}}}
	reserve := func(solana.PublicKey) (solana.PublicKey, error) { return vault, nil }

	stats, err := NewRPCHolders(rpc, reserve).HolderStats(context.Background(), solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.Zero(t, stats.Holders)
	assert.True(t, stats.Concentration.IsZero())
}

func TestHolderStatsErrors(t *testing.T) {
	h := NewRPCHolders(&fakeHolderRPC{supply: 0}, nil)
	_, err := h.HolderStats(context.Background(), solana.NewWallet().PublicKey().String())
	assert.Error(t, err)

	_, err = h.HolderStats(context.Background(), "not-a-mint")
	assert.Error(t, err)

	failing := NewRPCHolders(&fakeHolderRPC{supply: 1}, func(solana.PublicKey) (solana.PublicKey, error) {
		return solana.PublicKey{}, errors.New("no pda")
	})
	_, err = failing.HolderStats(context.Background(), solana.NewWallet().PublicKey().String())
	assert.Error(t, err)
}
