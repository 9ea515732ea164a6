// internal/execution/pumpfun.go
package execution

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

// Known Pump.fun protocol addresses
var (
	PumpFunProgramID    = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	PumpFunEventAuth    = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
	PumpFunFeeRecipient = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")

	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

const (
	tokenDecimals    = 6
	lamportsDecimals = 9
	curveAccountLen  = 8 + 8*5 + 1
)

var (
	errCurveComplete = errors.New("bonding curve complete, token migrated")
	errEmptyCurve    = errors.New("bonding curve has no reserves")
	lamportsPerSOL   = decimal.New(1, lamportsDecimals)
	unitsPerToken    = decimal.New(1, tokenDecimals)
)

// curveAccounts are the PDAs a trade instruction touches for one mint.
type curveAccounts struct {
	Global                 solana.PublicKey
	Mint                   solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
}

func deriveCurveAccounts(mint solana.PublicKey) (curveAccounts, error) {
	global, _, err := solana.FindProgramAddress([][]byte{[]byte("global")}, PumpFunProgramID)
	if err != nil {
		return curveAccounts{}, fmt.Errorf("derive global: %w", err)
	}
	curve, _, err := solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), mint.Bytes()}, PumpFunProgramID)
	if err != nil {
		return curveAccounts{}, fmt.Errorf("derive bonding curve: %w", err)
	}
	assoc, _, err := solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return curveAccounts{}, fmt.Errorf("derive associated bonding curve: %w", err)
	}
	return curveAccounts{
		Global:                 global,
		Mint:                   mint,
		BondingCurve:           curve,
		AssociatedBondingCurve: assoc,
	}, nil
}

// BondingCurveVault returns the token account holding the curve's unsold
// supply for mint. It is program-owned, not a holder.
func BondingCurveVault(mint solana.PublicKey) (solana.PublicKey, error) {
	acc, err := deriveCurveAccounts(mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return acc.AssociatedBondingCurve, nil
}

// bondingCurve is the decoded on-chain curve state.
type bondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

func parseBondingCurve(data []byte) (*bondingCurve, error) {
	if len(data) < curveAccountLen {
		return nil, fmt.Errorf("insufficient bonding curve data length: %d", len(data))
	}
	le := binary.LittleEndian
	return &bondingCurve{
		VirtualTokenReserves: le.Uint64(data[8:16]),
		VirtualSolReserves:   le.Uint64(data[16:24]),
		RealTokenReserves:    le.Uint64(data[24:32]),
		RealSolReserves:      le.Uint64(data[32:40]),
		TokenTotalSupply:     le.Uint64(data[40:48]),
		Complete:             data[48] != 0,
	}, nil
}

func (c *bondingCurve) check() error {
	if c.Complete {
		return errCurveComplete
	}
	if c.VirtualTokenReserves == 0 || c.VirtualSolReserves == 0 {
		return errEmptyCurve
	}
	return nil
}

// Price returns SOL per whole token.
func (c *bondingCurve) Price() decimal.Decimal {
	if c.VirtualTokenReserves == 0 {
		return decimal.Zero
	}
	sol := u64(c.VirtualSolReserves).Div(lamportsPerSOL)
	tokens := u64(c.VirtualTokenReserves).Div(unitsPerToken)
	return sol.Div(tokens)
}

// BuyQuote returns raw tokens received for lamportsIn, capped by real reserves.
func (c *bondingCurve) BuyQuote(lamportsIn uint64) uint64 {
	vSol, vTok := u64(c.VirtualSolReserves), u64(c.VirtualTokenReserves)
	in := u64(lamportsIn)
	out := toU64(in.Mul(vTok).Div(vSol.Add(in)))
	if out > c.RealTokenReserves {
		out = c.RealTokenReserves
	}
	return out
}

// SellQuote returns lamports received for raw tokensIn.
func (c *bondingCurve) SellQuote(tokensIn uint64) uint64 {
	vSol, vTok := u64(c.VirtualSolReserves), u64(c.VirtualTokenReserves)
	in := u64(tokensIn)
	return toU64(in.Mul(vSol).Div(vTok.Add(in)))
}

func u64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func toU64(d decimal.Decimal) uint64 {
	if d.IsNegative() {
		return 0
	}
	return d.Floor().BigInt().Uint64()
}

// solToLamports truncates toward zero.
func solToLamports(sol decimal.Decimal) uint64 {
	return toU64(sol.Mul(lamportsPerSOL))
}

func lamportsToSOL(lamports uint64) decimal.Decimal {
	return u64(lamports).Div(lamportsPerSOL)
}

func tradeData(discriminator []byte, amount, limit uint64) []byte {
	data := make([]byte, 0, len(discriminator)+16)
	data = append(data, discriminator...)
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = binary.LittleEndian.AppendUint64(data, limit)
	return data
}

// buildBuyInstruction builds a Pump.fun buy for amount raw tokens paying at most maxSolCost lamports.
func buildBuyInstruction(acc curveAccounts, user *wallet.Wallet, amount, maxSolCost uint64) (solana.Instruction, error) {
	associatedUser, err := user.GetATA(acc.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get associated token account: %w", err)
	}

	// Account list must be in the exact order expected by the program
	accounts := []*solana.AccountMeta{
		{PublicKey: acc.Global},
		{PublicKey: PumpFunFeeRecipient, IsWritable: true},
		{PublicKey: acc.Mint},
		{PublicKey: acc.BondingCurve, IsWritable: true},
		{PublicKey: acc.AssociatedBondingCurve, IsWritable: true},
		{PublicKey: associatedUser, IsWritable: true},
		{PublicKey: user.PublicKey, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: solana.SysVarRentPubkey},
		{PublicKey: PumpFunEventAuth},
		{PublicKey: PumpFunProgramID},
	}
	return solana.NewInstruction(PumpFunProgramID, accounts, tradeData(buyDiscriminator, amount, maxSolCost)), nil
}

// buildSellInstruction builds a Pump.fun sell of amount raw tokens for at least minSolOutput lamports.
func buildSellInstruction(acc curveAccounts, user *wallet.Wallet, amount, minSolOutput uint64) (solana.Instruction, error) {
	associatedUser, err := user.GetATA(acc.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get associated token account: %w", err)
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: acc.Global},
		{PublicKey: PumpFunFeeRecipient, IsWritable: true},
		{PublicKey: acc.Mint},
		{PublicKey: acc.BondingCurve, IsWritable: true},
		{PublicKey: acc.AssociatedBondingCurve, IsWritable: true},
		{PublicKey: associatedUser, IsWritable: true},
		{PublicKey: user.PublicKey, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
		{PublicKey: wallet.AssociatedTokenProgramID},
		{PublicKey: solana.TokenProgramID},
		{PublicKey: PumpFunEventAuth},
		{PublicKey: PumpFunProgramID},
	}
	return solana.NewInstruction(PumpFunProgramID, accounts, tradeData(sellDiscriminator, amount, minSolOutput)), nil
}
