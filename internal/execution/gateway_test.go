package execution

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/sniper-agent/internal/blockchain/solbc"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

const testMint = "So11111111111111111111111111111111111111112"

func curveData(vTok, vSol, realTok uint64, complete bool) []byte {
	data := make([]byte, curveAccountLen)
	le := binary.LittleEndian
	le.PutUint64(data[8:], vTok)
	le.PutUint64(data[16:], vSol)
	le.PutUint64(data[24:], realTok)
	le.PutUint64(data[40:], 1_000_000_000_000_000)
	if complete {
		data[48] = 1
	}
	return data
}

type fakeChain struct {
	mu        sync.Mutex
	curve     []byte
	curveErr  error
	sendErr   error
	waitErr   error
	balance   uint64
	sent      []*solana.Transaction
	sendCalls int
}

func (f *fakeChain) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{1, 2, 3}, nil
}

func (f *fakeChain) GetAccountData(context.Context, solana.PublicKey) ([]byte, error) {
	return f.curve, f.curveErr
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeChain) WaitForConfirmation(context.Context, solana.Signature, time.Duration) error {
	return f.waitErr
}

func (f *fakeChain) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.balance, nil
}

func newTestGateway(t *testing.T, chain *fakeChain) (*Gateway, solana.PublicKey) {
	t.Helper()
	recipient := solana.NewWallet().PublicKey()
	g, err := NewGateway(chain, Config{
		FeeRecipient: recipient,
		FeeRate:      decimal.RequireFromString("0.005"),
		Slippage:     decimal.RequireFromString("0.10"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return g, recipient
}

func testKey(t *testing.T) *wallet.Wallet {
	t.Helper()
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return wallet.FromPrivateKey(priv)
}

// feeTransfer returns the lamports moved to recipient by a system transfer in tx.
func feeTransfer(t *testing.T, tx *solana.Transaction, recipient solana.PublicKey) (uint64, bool) {
	t.Helper()
	for _, ix := range tx.Message.Instructions {
		program := tx.Message.AccountKeys[ix.ProgramIDIndex]
		if !program.Equals(solana.SystemProgramID) || len(ix.Accounts) != 2 {
			continue
		}
		if !tx.Message.AccountKeys[ix.Accounts[1]].Equals(recipient) {
			continue
		}
		require.Len(t, ix.Data, 12)
		return binary.LittleEndian.Uint64(ix.Data[4:]), true
	}
	return 0, false
}

func TestSubmitBuyIncludesFeeInSameTransaction(t *testing.T) {
	chain := &fakeChain{curve: curveData(1_073_000_000_000_000, 30_000_000_000, 793_100_000_000_000, false)}
	g, recipient := newTestGateway(t, chain)

	res := g.SubmitTrade(context.Background(), TradeIntent{
		ID: "i1", UserID: "u1", Side: SideBuy, Token: testMint,
		Amount: decimal.RequireFromString("0.1"),
	}, testKey(t))

	require.True(t, res.Success, "failure: %v", res.Err())
	assert.True(t, decimal.RequireFromString("0.0005").Equal(res.Fee))
	assert.NotEmpty(t, res.Signature)
	assert.Greater(t, res.TokenAmount, uint64(0))
	assert.True(t, res.Price.IsPositive())

	require.Len(t, chain.sent, 1)
	lamports, ok := feeTransfer(t, chain.sent[0], recipient)
	require.True(t, ok, "fee transfer missing")
	assert.Equal(t, uint64(500_000), lamports)

	var hasTrade bool
	for _, ix := range chain.sent[0].Message.Instructions {
		if chain.sent[0].Message.AccountKeys[ix.ProgramIDIndex].Equals(PumpFunProgramID) {
			hasTrade = true
			assert.Equal(t, buyDiscriminator, []byte(ix.Data[:8]))
		}
	}
	assert.True(t, hasTrade)
}

func TestSubmitSellDerivesNotionalFromQuote(t *testing.T) {
	chain := &fakeChain{curve: curveData(1_000_000_000_000_000, 40_000_000_000, 700_000_000_000_000, false)}
	g, recipient := newTestGateway(t, chain)

	res := g.SubmitTrade(context.Background(), TradeIntent{
		ID: "i2", UserID: "u1", Side: SideSell, Token: testMint,
		TokenAmount: 1_000_000_000_000,
	}, testKey(t))

	require.True(t, res.Success, "failure: %v", res.Err())
	// 1e12 * 40e9 / (1e15 + 1e12) lamports ≈ 0.03996 SOL; fee is 0.5% of that.
	expectedOut := lamportsToSOL(39_960_039)
	assert.True(t, ComputeFee(expectedOut, decimal.RequireFromString("0.005")).Equal(res.Fee), "fee %s", res.Fee)

	lamports, ok := feeTransfer(t, chain.sent[0], recipient)
	require.True(t, ok)
	assert.Equal(t, uint64(199_800), lamports)
}

func TestSubmitDustFeeSkipsTransfer(t *testing.T) {
	chain := &fakeChain{curve: curveData(1_073_000_000_000_000, 30_000_000_000, 793_100_000_000_000, false)}
	g, recipient := newTestGateway(t, chain)

	res := g.SubmitTrade(context.Background(), TradeIntent{
		UserID: "u1", Side: SideBuy, Token: testMint,
		Amount: decimal.RequireFromString("0.0000001"),
	}, testKey(t))

	require.True(t, res.Success, "failure: %v", res.Err())
	assert.True(t, decimal.RequireFromString("0.0000000005").Equal(res.Fee))
	_, ok := feeTransfer(t, chain.sent[0], recipient)
	assert.False(t, ok)
}

func TestSubmitFailures(t *testing.T) {
	healthy := curveData(1_073_000_000_000_000, 30_000_000_000, 793_100_000_000_000, false)
	buy := TradeIntent{UserID: "u1", Side: SideBuy, Token: testMint, Amount: decimal.RequireFromString("0.1")}

	tests := []struct {
		name   string
		chain  *fakeChain
		intent TradeIntent
		want   Reason
		sig    bool
	}{
		{"zero amount", &fakeChain{curve: healthy}, TradeIntent{UserID: "u1", Side: SideBuy, Token: testMint}, ReasonInvalidIntent, false},
		{"bad side", &fakeChain{curve: healthy}, TradeIntent{UserID: "u1", Side: "hold", Token: testMint}, ReasonInvalidIntent, false},
		{"bad mint", &fakeChain{curve: healthy}, TradeIntent{UserID: "u1", Side: SideBuy, Token: "xyz", Amount: decimal.NewFromInt(1)}, ReasonInvalidIntent, false},
		{"curve missing", &fakeChain{curveErr: solbc.ErrAccountNotFound}, buy, ReasonQuote, false},
		{"curve complete", &fakeChain{curve: curveData(1, 1, 1, true)}, buy, ReasonQuote, false},
		{"rejected", &fakeChain{curve: healthy, sendErr: errors.New("blockhash not found")}, buy, ReasonRejected, false},
		{"failed on chain", &fakeChain{curve: healthy, waitErr: solbc.ErrTransactionFailed}, buy, ReasonRejected, true},
		{"timeout", &fakeChain{curve: healthy, waitErr: solbc.ErrConfirmationTimeout}, buy, ReasonTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(t, tt.chain)
			res := g.SubmitTrade(context.Background(), tt.intent, testKey(t))

			assert.False(t, res.Success)
			require.NotNil(t, res.Failure)
			assert.Equal(t, tt.want, res.Failure.Reason)
			assert.ErrorIs(t, res.Err(), ErrSubmissionFailed)
			assert.Equal(t, tt.sig, res.Signature != "")
			assert.LessOrEqual(t, tt.chain.sendCalls, 1, "gateway must not retry")
		})
	}
}

func TestNewGatewayValidation(t *testing.T) {
	log := zaptest.NewLogger(t)
	_, err := NewGateway(&fakeChain{}, Config{FeeRate: decimal.RequireFromString("0.005")}, log)
	assert.Error(t, err)

	_, err = NewGateway(&fakeChain{}, Config{
		FeeRecipient: solana.NewWallet().PublicKey(),
		FeeRate:      decimal.NewFromInt(1),
	}, log)
	assert.Error(t, err)
}

func TestBalance(t *testing.T) {
	g, _ := newTestGateway(t, &fakeChain{balance: 2_500_000_000})
	bal, err := g.Balance(context.Background(), testKey(t))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.5").Equal(bal))
}

func TestBondingCurveQuotes(t *testing.T) {
	c, err := parseBondingCurve(curveData(1_073_000_000_000_000, 30_000_000_000, 793_100_000_000_000, false))
	require.NoError(t, err)
	require.NoError(t, c.check())

	assert.Equal(t, uint64(34_612_903_225_806), c.BuyQuote(1_000_000_000))
	assert.True(t, decimal.RequireFromString("30").Div(decimal.NewFromInt(1_073_000_000)).Equal(c.Price()))

	capped, err := parseBondingCurve(curveData(1_073_000_000_000_000, 30_000_000_000, 10, false))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), capped.BuyQuote(1_000_000_000))

	_, err = parseBondingCurve([]byte{1, 2, 3})
	assert.Error(t, err)
}

type countingExecutor struct {
	inflight map[string]*int32
	maxSeen  int32
	mu       sync.Mutex
}

func (c *countingExecutor) SubmitTrade(_ context.Context, intent TradeIntent, _ *wallet.Wallet) TradeResult {
	c.mu.Lock()
	n, ok := c.inflight[intent.UserID]
	if !ok {
		n = new(int32)
		c.inflight[intent.UserID] = n
	}
	c.mu.Unlock()

	cur := atomic.AddInt32(n, 1)
	c.mu.Lock()
	if cur > c.maxSeen {
		c.maxSeen = cur
	}
	c.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(n, -1)
	return TradeResult{Success: true}
}

func (c *countingExecutor) Balance(context.Context, *wallet.Wallet) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func TestSerializedOneInFlightPerUser(t *testing.T) {
	inner := &countingExecutor{inflight: map[string]*int32{}}
	s := NewSerialized(inner)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SubmitTrade(context.Background(), TradeIntent{UserID: "same"}, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.maxSeen)
}

func TestSerializedDropsIdleUserLocks(t *testing.T) {
	inner := &countingExecutor{inflight: map[string]*int32{}}
	s := NewSerialized(inner)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			s.SubmitTrade(context.Background(), TradeIntent{UserID: user}, nil)
		}(fmt.Sprintf("user-%d", i%3))
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.maxSeen)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.locks)
}
