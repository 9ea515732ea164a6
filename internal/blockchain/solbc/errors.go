// internal/blockchain/solbc/errors.go
package solbc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// AnchorError – ошибка программы на Anchor, извлечённая из логов симуляции.
type AnchorError struct {
	Code int
	Name string
	Msg  string
}

// SimulationError описывает отклонённую preflight-симуляцией транзакцию.
type SimulationError struct {
	Message string
	Anchor  *AnchorError
	Logs    []string
	Err     error
}

func (e *SimulationError) Error() string {
	if e.Anchor != nil {
		return fmt.Sprintf("%s: %s (%d): %s", e.Message, e.Anchor.Name, e.Anchor.Code, e.Anchor.Msg)
	}
	return e.Message
}

func (e *SimulationError) Unwrap() error { return e.Err }

// ExplainSendError разбирает ошибку SendTransaction. Если RPC вернул провал
// симуляции, результатом будет *SimulationError с Anchor-ошибкой из логов;
// иначе err возвращается как есть.
func ExplainSendError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) || !strings.Contains(rpcErr.Message, "simulation failed") {
		return err
	}

	sim := &SimulationError{Message: rpcErr.Message, Err: err}
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return sim
	}
	logs, _ := data["logs"].([]interface{})
	for _, entry := range logs {
		line, ok := entry.(string)
		if !ok {
			continue
		}
		sim.Logs = append(sim.Logs, line)
		if sim.Anchor == nil && strings.Contains(line, "AnchorError occurred") {
			a := parseAnchorErrorLog(line)
			sim.Anchor = &a
		}
	}
	return sim
}

// parseAnchorErrorLog разбирает строку вида
// "Program log: AnchorError occurred. Error Code: TooMuchSolRequired. Error Number: 6002. Error Message: slippage: Too much SOL required to buy the given amount of tokens."
func parseAnchorErrorLog(line string) AnchorError {
	var a AnchorError
	if v, ok := field(line, "Error Number:"); ok {
		a.Code, _ = strconv.Atoi(v)
	}
	if v, ok := field(line, "Error Code:"); ok {
		a.Name = v
	}
	if _, rest, ok := strings.Cut(line, "Error Message:"); ok {
		a.Msg = strings.TrimSuffix(strings.TrimSpace(rest), ".")
	}
	return a
}

// field возвращает текст после label до ближайшей точки.
func field(line, label string) (string, bool) {
	_, rest, ok := strings.Cut(line, label)
	if !ok {
		return "", false
	}
	v, _, _ := strings.Cut(rest, ".")
	return strings.TrimSpace(v), true
}
