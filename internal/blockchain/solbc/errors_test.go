package solbc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slippageLog = "Program log: AnchorError occurred. Error Code: TooMuchSolRequired. Error Number: 6002. Error Message: slippage: Too much SOL required to buy the given amount of tokens."

func TestParseAnchorErrorLog(t *testing.T) {
	a := parseAnchorErrorLog(slippageLog)
	assert.Equal(t, 6002, a.Code)
	assert.Equal(t, "TooMuchSolRequired", a.Name)
	assert.Equal(t, "slippage: Too much SOL required to buy the given amount of tokens", a.Msg)
}

func TestExplainSendErrorSimulation(t *testing.T) {
	rpcErr := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 3: custom program error: 0x1772",
		Data: map[string]interface{}{
			"logs": []interface{}{"Program 6EF8 invoke [1]", slippageLog},
		},
	}
	wrapped := fmt.Errorf("send: %w", rpcErr)

	err := ExplainSendError(wrapped)

	var sim *SimulationError
	require.True(t, errors.As(err, &sim))
	require.NotNil(t, sim.Anchor)
	assert.Equal(t, "TooMuchSolRequired", sim.Anchor.Name)
	assert.Len(t, sim.Logs, 2)
	assert.Contains(t, err.Error(), "TooMuchSolRequired (6002)")
	assert.ErrorIs(t, err, wrapped)
}

func TestExplainSendErrorPassthrough(t *testing.T) {
	plain := errors.New("connection refused")
	assert.Same(t, plain, ExplainSendError(plain))

	other := &jsonrpc.RPCError{Code: -32005, Message: "node is behind"}
	assert.Equal(t, error(other), ExplainSendError(other))

	noData := &jsonrpc.RPCError{Message: "Transaction simulation failed: Blockhash not found"}
	var sim *SimulationError
	require.True(t, errors.As(ExplainSendError(noData), &sim))
	assert.Nil(t, sim.Anchor)
}
