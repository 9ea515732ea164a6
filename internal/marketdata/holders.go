// internal/marketdata/holders.go
package marketdata

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/sniper-agent/internal/blockchain/solbc"
)

// HolderRPC is the chain access RPCHolders needs. *solbc.Client satisfies it.
type HolderRPC interface {
	CountTokenHolders(ctx context.Context, mint solana.PublicKey, exclude ...solana.PublicKey) (int, error)
	LargestTokenAccounts(ctx context.Context, mint solana.PublicKey) ([]solbc.TokenBalance, error)
	TokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error)
}

// ReserveAccount maps a mint to a program-owned token account that holds
// unsold supply and must not count as a holder.
type ReserveAccount func(mint solana.PublicKey) (solana.PublicKey, error)

// RPCHolders derives holder count and top-holder concentration from chain state.
type RPCHolders struct {
	rpc     HolderRPC
	reserve ReserveAccount
}

// NewRPCHolders creates the source. reserve may be nil.
func NewRPCHolders(rpc HolderRPC, reserve ReserveAccount) *RPCHolders {
	return &RPCHolders{rpc: rpc, reserve: reserve}
}

func (h *RPCHolders) HolderStats(ctx context.Context, token string) (*HolderStats, error) {
	mint, err := solana.PublicKeyFromBase58(token)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", token, err)
	}

	var exclude []solana.PublicKey
	if h.reserve != nil {
		vault, err := h.reserve(mint)
		if err != nil {
			return nil, fmt.Errorf("derive reserve account of %s: %w", token, err)
		}
		exclude = append(exclude, vault)
	}

	var (
		count   int
		largest []solbc.TokenBalance
		total   uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		count, err = h.rpc.CountTokenHolders(gctx, mint, exclude...)
		return err
	})
	g.Go(func() (err error) {
		largest, err = h.rpc.LargestTokenAccounts(gctx, mint)
		return err
	})
	g.Go(func() (err error) {
		total, err = h.rpc.TokenSupply(gctx, mint)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("token %s has zero supply", token)
	}

	return &HolderStats{
		Holders:       count,
		Concentration: u64dec(topHolder(largest, exclude)).Div(u64dec(total)),
	}, nil
}

// topHolder returns the largest balance not owned by an excluded account.
// accounts are sorted by balance, largest first.
func topHolder(accounts []solbc.TokenBalance, exclude []solana.PublicKey) uint64 {
	for _, acc := range accounts {
		excluded := false
		for _, key := range exclude {
			if key.Equals(acc.Address) {
				excluded = true
				break
			}
		}
		if !excluded {
			return acc.Amount
		}
	}
	return 0
}

func u64dec(v uint64) decimal.Decimal {
	return decimal.RequireFromString(strconv.FormatUint(v, 10))
}

var _ HolderRPC = (*solbc.Client)(nil)
