// Package ledger reads balances and transaction history from a Solana JSON-RPC node.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/cppla/daka/metrics"
)

// LamportsPerSol is the number of lamports in one SOL.
const LamportsPerSol = 1_000_000_000

// MaxSignatureWindow is the largest limit getSignaturesForAddress accepts.
const MaxSignatureWindow = 1000

// Signature is one entry of a wallet's transaction history, newest first.
type Signature struct {
	ID string
	// BlockTime is nil when the node has no timestamp for the slot.
	BlockTime *time.Time
}

// Reader is the read-only view of the ledger the daka gate depends on.
type Reader interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetSignatures(ctx context.Context, address string, limit int) ([]Signature, error)
}

// RPCClient talks JSON-RPC 2.0 to a Solana node.
type RPCClient struct {
	client  *rpc.Client
	timeout time.Duration
}

// Dial creates a client for the node at url. Each call is bounded by timeout when it is positive.
func Dial(ctx context.Context, url string, timeout time.Duration) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial ledger %s: %w", url, err)
	}
	return &RPCClient{client: c, timeout: timeout}, nil
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	c.client.Close()
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

type signatureResult struct {
	Signature string `json:"signature"`
	BlockTime *int64 `json:"blockTime"`
}

// GetBalance returns the wallet balance in lamports.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res balanceResult
	if err := c.call(ctx, &res, "getBalance", address, map[string]string{"commitment": "confirmed"}); err != nil {
		return 0, err
	}
	return res.Value, nil
}

// GetSignatures returns up to limit transaction signatures, newest first.
func (c *RPCClient) GetSignatures(ctx context.Context, address string, limit int) ([]Signature, error) {
	var res []signatureResult
	opts := map[string]any{"limit": limit, "commitment": "confirmed"}
	if err := c.call(ctx, &res, "getSignaturesForAddress", address, opts); err != nil {
		return nil, err
	}
	out := make([]Signature, 0, len(res))
	for _, r := range res {
		s := Signature{ID: r.Signature}
		if r.BlockTime != nil {
			t := time.Unix(*r.BlockTime, 0).UTC()
			s.BlockTime = &t
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *RPCClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	err := c.client.CallContext(ctx, result, method, args...)
	metrics.ObserveLedgerCall(method, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", method, err)
	}
	return nil
}
