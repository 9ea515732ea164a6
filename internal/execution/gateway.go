// internal/execution/gateway.go
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/blockchain/solbc"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

// ChainClient is the RPC surface the gateway needs. *solbc.Client satisfies it.
type ChainClient interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, timeout time.Duration) error
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
}

// Config holds gateway settings.
type Config struct {
	FeeRecipient   solana.PublicKey
	FeeRate        decimal.Decimal
	Slippage       decimal.Decimal // fraction, e.g. 0.15
	Priority       PriorityConfig
	ConfirmTimeout time.Duration
}

// Gateway submits Pump.fun trades. Each trade and its service fee travel in
// one transaction, so the fee lands if and only if the trade does.
type Gateway struct {
	client ChainClient
	cfg    Config
	logger *zap.Logger
}

// NewGateway validates cfg and builds a Gateway.
func NewGateway(client ChainClient, cfg Config, logger *zap.Logger) (*Gateway, error) {
	if cfg.FeeRecipient.IsZero() {
		return nil, errors.New("fee recipient is required")
	}
	if cfg.FeeRate.IsNegative() || cfg.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fee rate must be within [0, 1), got %s", cfg.FeeRate)
	}
	if cfg.Slippage.IsNegative() || cfg.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("slippage must be within [0, 1), got %s", cfg.Slippage)
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}
	return &Gateway{client: client, cfg: cfg, logger: logger.Named("execution")}, nil
}

// ComputeFee returns notional × rate without rounding.
func ComputeFee(notional, rate decimal.Decimal) decimal.Decimal {
	return notional.Mul(rate)
}

// SubmitTrade builds, signs, submits and confirms one trade. It never retries.
func (g *Gateway) SubmitTrade(ctx context.Context, intent TradeIntent, key *wallet.Wallet) TradeResult {
	start := time.Now()
	log := g.logger.With(
		zap.String("intent_id", intent.ID),
		zap.String("user_id", intent.UserID),
		zap.String("side", string(intent.Side)),
		zap.String("token", intent.Token))

	res := g.submit(ctx, intent, key)
	if res.Success {
		log.Info("Trade confirmed",
			zap.String("signature", res.Signature),
			zap.Uint64("token_amount", res.TokenAmount),
			zap.String("fee", res.Fee.String()),
			zap.Duration("elapsed", time.Since(start)))
	} else {
		log.Warn("Trade failed",
			zap.String("reason", string(res.Failure.Reason)),
			zap.String("signature", res.Signature),
			zap.Error(res.Failure.Err),
			zap.Duration("elapsed", time.Since(start)))
	}
	return res
}

func (g *Gateway) submit(ctx context.Context, intent TradeIntent, key *wallet.Wallet) TradeResult {
	if err := validateIntent(intent, key); err != nil {
		return failed(ReasonInvalidIntent, err)
	}
	mint, err := solana.PublicKeyFromBase58(intent.Token)
	if err != nil {
		return failed(ReasonInvalidIntent, fmt.Errorf("invalid token address: %w", err))
	}

	acc, err := deriveCurveAccounts(mint)
	if err != nil {
		return failed(ReasonBuild, err)
	}
	data, err := g.client.GetAccountData(ctx, acc.BondingCurve)
	if err != nil {
		return failed(ReasonQuote, fmt.Errorf("failed to read bonding curve: %w", err))
	}
	curve, err := parseBondingCurve(data)
	if err != nil {
		return failed(ReasonQuote, err)
	}
	if err := curve.check(); err != nil {
		return failed(ReasonQuote, err)
	}

	instructions := g.cfg.Priority.Instructions()
	notional := intent.Amount
	var tokenAmount uint64

	switch intent.Side {
	case SideBuy:
		lamportsIn := solToLamports(notional)
		tokenAmount = curve.BuyQuote(lamportsIn)
		if tokenAmount == 0 {
			return failed(ReasonQuote, errors.New("quote returned zero tokens"))
		}
		maxCost := solToLamports(notional.Mul(decimal.NewFromInt(1).Add(g.cfg.Slippage)))
		ataIx, err := key.CreateATAIdempotentInstruction(mint)
		if err != nil {
			return failed(ReasonBuild, err)
		}
		buyIx, err := buildBuyInstruction(acc, key, tokenAmount, maxCost)
		if err != nil {
			return failed(ReasonBuild, err)
		}
		instructions = append(instructions, ataIx, buyIx)

	case SideSell:
		tokenAmount = intent.TokenAmount
		lamportsOut := curve.SellQuote(tokenAmount)
		if notional.IsZero() {
			notional = lamportsToSOL(lamportsOut)
		}
		minOut := toU64(u64(lamportsOut).Mul(decimal.NewFromInt(1).Sub(g.cfg.Slippage)))
		sellIx, err := buildSellInstruction(acc, key, tokenAmount, minOut)
		if err != nil {
			return failed(ReasonBuild, err)
		}
		instructions = append(instructions, sellIx)
	}

	// Fee is computed on the decimal notional, truncated to lamports only here.
	fee := ComputeFee(notional, g.cfg.FeeRate)
	if feeLamports := solToLamports(fee); feeLamports > 0 {
		instructions = append(instructions,
			system.NewTransferInstruction(feeLamports, key.PublicKey, g.cfg.FeeRecipient).Build())
	}

	blockhash, err := g.client.GetRecentBlockhash(ctx)
	if err != nil {
		return failed(ReasonBuild, fmt.Errorf("failed to get recent blockhash: %w", err))
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(key.PublicKey))
	if err != nil {
		return failed(ReasonBuild, fmt.Errorf("failed to create transaction: %w", err))
	}
	if err := key.SignTransaction(tx); err != nil {
		return failed(ReasonSignature, fmt.Errorf("failed to sign transaction: %w", err))
	}

	sig, err := g.client.SendTransaction(ctx, tx)
	if err != nil {
		return failed(ReasonRejected, solbc.ExplainSendError(err))
	}

	if err := g.client.WaitForConfirmation(ctx, sig, g.cfg.ConfirmTimeout); err != nil {
		reason := ReasonRejected
		if errors.Is(err, solbc.ErrConfirmationTimeout) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			reason = ReasonTimeout
		}
		res := failed(reason, err)
		res.Signature = sig.String()
		return res
	}

	return TradeResult{
		Success:     true,
		Signature:   sig.String(),
		Fee:         fee,
		TokenAmount: tokenAmount,
		Price:       curve.Price(),
	}
}

// Balance returns the SOL balance of the key's account.
func (g *Gateway) Balance(ctx context.Context, key *wallet.Wallet) (decimal.Decimal, error) {
	lamports, err := g.client.GetBalance(ctx, key.PublicKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return lamportsToSOL(lamports), nil
}

func validateIntent(intent TradeIntent, key *wallet.Wallet) error {
	if key == nil {
		return errors.New("signing key is required")
	}
	if intent.Token == "" {
		return errors.New("token is required")
	}
	switch intent.Side {
	case SideBuy:
		if !intent.Amount.IsPositive() {
			return fmt.Errorf("buy amount must be positive, got %s", intent.Amount)
		}
	case SideSell:
		if intent.TokenAmount == 0 {
			return errors.New("sell token amount must be positive")
		}
		if intent.Amount.IsNegative() {
			return fmt.Errorf("sell notional must not be negative, got %s", intent.Amount)
		}
	default:
		return fmt.Errorf("unknown side %q", intent.Side)
	}
	return nil
}

var (
	_ Executor    = (*Gateway)(nil)
	_ ChainClient = (*solbc.Client)(nil)
)
