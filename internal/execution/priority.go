// internal/execution/priority.go
package execution

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// PriorityLevel selects a compute budget profile for trade transactions.
type PriorityLevel string

const (
	PriorityNone    PriorityLevel = "none"
	PriorityLow     PriorityLevel = "low"
	PriorityMedium  PriorityLevel = "medium"
	PriorityHigh    PriorityLevel = "high"
	PriorityExtreme PriorityLevel = "extreme"
)

// PriorityConfig is a compute budget request.
type PriorityConfig struct {
	ComputeUnits uint32 // Number of compute units
	PriorityFee  uint64 // Priority fee in micro-lamports per unit
}

var priorityProfiles = map[PriorityLevel]PriorityConfig{
	PriorityNone:    {},
	PriorityLow:     {ComputeUnits: 200_000, PriorityFee: 1_000},
	PriorityMedium:  {ComputeUnits: 200_000, PriorityFee: 5_000},
	PriorityHigh:    {ComputeUnits: 250_000, PriorityFee: 50_000},
	PriorityExtreme: {ComputeUnits: 300_000, PriorityFee: 250_000},
}

// PriorityProfile resolves a named profile.
func PriorityProfile(level PriorityLevel) (PriorityConfig, error) {
	cfg, ok := priorityProfiles[level]
	if !ok {
		return PriorityConfig{}, fmt.Errorf("unknown priority level: %s", level)
	}
	return cfg, nil
}

// Instructions returns the compute budget instructions, possibly none.
func (c PriorityConfig) Instructions() []solana.Instruction {
	var instructions []solana.Instruction
	if c.ComputeUnits > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitLimitInstruction(c.ComputeUnits).Build())
	}
	if c.PriorityFee > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(c.PriorityFee).Build())
	}
	return instructions
}
