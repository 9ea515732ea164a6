// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrConfirmationTimeout  = errors.New("confirmation timeout")
	ErrTransactionFailed    = errors.New("transaction failed on chain")
	defaultConfirmPollEvery = 500 * time.Millisecond
)

// tokenAccountSize – размер SPL token-аккаунта, используется в фильтре getProgramAccounts.
const tokenAccountSize = 165

// Client – тонкий адаптер над rpc.Client из solana-go.
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

// NewClient создаёт клиент для указанного RPC URL.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: logger.Named("solbc-client"),
	}
}

// GetRecentBlockhash получает свежий blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Debug("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction отправляет подписанную транзакцию с preflight-проверкой.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Debug("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetAccountData возвращает сырые данные аккаунта или ErrAccountNotFound.
func (c *Client) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	result, err := c.rpc.GetAccountInfo(ctx, pubkey)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
		}
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return result.Value.Data.GetBinary(), nil
}

// GetBalance возвращает баланс аккаунта в лампортах.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Debug("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// WaitForConfirmation опрашивает статус подписи, пока транзакция не будет
// подтверждена, не упадёт on-chain или не истечёт timeout.
func (c *Client) WaitForConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error {
	ticker := time.NewTicker(defaultConfirmPollEvery)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, signature)
		case <-ticker.C:
			statuses, err := c.rpc.GetSignatureStatuses(ctx, false, signature)
			if err != nil {
				c.logger.Warn("Error getting signature statuses", zap.Error(err))
				continue
			}
			if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
				status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
				return nil
			}
		}
	}
}

// TokenBalance – сырой баланс одного token-аккаунта.
type TokenBalance struct {
	Address solana.PublicKey
	Amount  uint64
}

// LargestTokenAccounts возвращает крупнейшие token-аккаунты mint (до 20),
// по убыванию баланса.
func (c *Client) LargestTokenAccounts(ctx context.Context, mint solana.PublicKey) ([]TokenBalance, error) {
	result, err := c.rpc.GetTokenLargestAccounts(ctx, mint, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	out := make([]TokenBalance, 0, len(result.Value))
	for _, acc := range result.Value {
		if acc == nil {
			continue
		}
		amount, err := strconv.ParseUint(acc.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount of %s: %w", acc.Address, err)
		}
		out = append(out, TokenBalance{Address: acc.Address, Amount: amount})
	}
	return out, nil
}

// TokenSupply возвращает сырое предложение токена.
func (c *Client) TokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetTokenSupply(ctx, mint, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, err
	}
	if result == nil || result.Value == nil {
		return 0, fmt.Errorf("%w: supply of %s", ErrAccountNotFound, mint)
	}
	return strconv.ParseUint(result.Value.Amount, 10, 64)
}

// CountTokenHolders считает token-аккаунты с данным mint, кроме exclude.
// Данные аккаунтов не запрашиваются (DataSlice нулевой длины), только ключи.
func (c *Client) CountTokenHolders(ctx context.Context, mint solana.PublicKey, exclude ...solana.PublicKey) (int, error) {
	offset, length := uint64(0), uint64(0)
	opts := &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		DataSlice:  &rpc.DataSlice{Offset: &offset, Length: &length},
		Filters: []rpc.RPCFilter{
			{DataSize: tokenAccountSize},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: mint.Bytes()}},
		},
	}
	accounts, err := c.rpc.GetProgramAccountsWithOpts(ctx, solana.TokenProgramID, opts)
	if err != nil {
		c.logger.Debug("GetProgramAccountsWithOpts error",
			zap.String("mint", mint.String()),
			zap.Error(err))
		return 0, err
	}
	count := 0
	for _, acc := range accounts {
		if acc == nil || containsKey(exclude, acc.Pubkey) {
			continue
		}
		count++
	}
	return count, nil
}

func containsKey(keys []solana.PublicKey, k solana.PublicKey) bool {
	for _, key := range keys {
		if key.Equals(k) {
			return true
		}
	}
	return false
}
