// Copyright 2025 Certen Protocol
//
// EVM Event Source: wraps ethclient.Client with the retrying head/filter
// calls the Watcher Engine needs. Grounded on pkg/anchor/event_watcher.go's
// pollEvents (retrying FilterLogs) and pkg/ethereum/client.go's
// GetLatestBlockNumber.

package evmsource

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the EVM-specific Event Source.
type Client struct {
	rpc           *ethclient.Client
	Confirmations uint64
}

// Dial connects to an EVM JSON-RPC endpoint.
func Dial(ctx context.Context, url string, confirmations uint64) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{rpc: rpc, Confirmations: confirmations}, nil
}

// RPC exposes the underlying ethclient for callers that need direct access
// (contract reads like getLastRoot, nonce/gas queries in the submitter).
func (c *Client) RPC() *ethclient.Client {
	return c.rpc
}

// CurrentBlock returns the confirmed chain head: the latest block number
// minus the configured confirmation depth (spec §4.1 step 2).
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	head, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	if head < c.Confirmations {
		return 0, nil
	}
	return head - c.Confirmations, nil
}

// FilterLogs fetches logs in [from, to] matching the given addresses and
// topics, retrying transient transport errors with exponential backoff
// (spec §4.1 failure semantics: initial 500ms, max 60s, unbounded retries).
func (c *Client) FilterLogs(ctx context.Context, addresses []common.Address, topics [][]common.Hash, from, to uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addresses,
		Topics:    topics,
	}

	backoff := 500 * time.Millisecond
	const maxBackoff = 60 * time.Second
	for {
		logs, err := c.rpc.FilterLogs(ctx, query)
		if err == nil {
			return logs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
