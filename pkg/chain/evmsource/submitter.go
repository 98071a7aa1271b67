// Copyright 2025 Certen Protocol
//
// Submitter: the queue.Submitter implementation for EVM chains. DryRun
// estimates gas as a cheap pre-flight check; Submit signs and broadcasts,
// escalating gas price 20% per retry and recognizing the same retryable
// errors as pkg/ethereum/client.go's SendContractTransactionWithRetry
// ("replacement transaction underpriced", "nonce too low", "already known").

package evmsource

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/webb-tools/relayer/pkg/evmtx"
	"github.com/webb-tools/relayer/pkg/queue"
)

var minGasPrice = big.NewInt(5 * 1e9) // 5 Gwei floor

// Submitter signs and broadcasts evmtx.Payload queue items against one
// chain, using the chain's own confirmation depth to decide when a
// transaction is durably final.
type Submitter struct {
	Client     *Client
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int
	GasLimit   uint64
	MaxRetries int
}

// NewSubmitter constructs a Submitter bound to one chain and key.
func NewSubmitter(client *Client, privateKey *ecdsa.PrivateKey, chainID *big.Int, gasLimit uint64, maxRetries int) *Submitter {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Submitter{
		Client:     client,
		PrivateKey: privateKey,
		ChainID:    chainID,
		GasLimit:   gasLimit,
		MaxRetries: maxRetries,
	}
}

// DryRun estimates gas for the payload, surfacing a revert or malformed
// calldata before the item is ever signed.
func (s *Submitter) DryRun(ctx context.Context, payload []byte) error {
	p, err := evmtx.Unmarshal(payload)
	if err != nil {
		return fmt.Errorf("decode tx payload: %w", err)
	}
	from := crypto.PubkeyToAddress(s.PrivateKey.PublicKey)
	to := common.BytesToAddress(p.To[:])
	_, err = s.Client.rpc.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: p.Data,
	})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}
	return nil
}

// Submit signs and sends the payload, escalating gas price on retryable
// broadcast errors, and streams progress until the transaction reaches the
// chain's configured confirmation depth.
func (s *Submitter) Submit(ctx context.Context, payload []byte) (<-chan queue.SubmitStatus, error) {
	p, err := evmtx.Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("decode tx payload: %w", err)
	}

	statusCh := make(chan queue.SubmitStatus, 8)
	go s.run(ctx, p, statusCh)
	return statusCh, nil
}

func (s *Submitter) run(ctx context.Context, p *evmtx.Payload, statusCh chan<- queue.SubmitStatus) {
	defer close(statusCh)

	from := crypto.PubkeyToAddress(s.PrivateKey.PublicKey)
	to := common.BytesToAddress(p.To[:])
	value := new(big.Int)
	if len(p.Value) > 0 {
		value.SetBytes(p.Value)
	}

	var signedTx *types.Transaction
	var sendErr error

	for attempt := 0; attempt < s.MaxRetries; attempt++ {
		nonce, err := s.Client.rpc.PendingNonceAt(ctx, from)
		if err != nil {
			statusCh <- queue.SubmitStatus{Step: "broadcasting", Err: fmt.Errorf("get nonce: %w", err)}
			return
		}

		gasPrice, err := s.Client.rpc.SuggestGasPrice(ctx)
		if err != nil {
			statusCh <- queue.SubmitStatus{Step: "broadcasting", Err: fmt.Errorf("get gas price: %w", err)}
			return
		}
		if gasPrice.Cmp(minGasPrice) < 0 {
			gasPrice = new(big.Int).Set(minGasPrice)
		}
		if attempt > 0 {
			multiplier := big.NewInt(int64(100 + 20*attempt))
			gasPrice = gasPrice.Mul(gasPrice, multiplier)
			gasPrice = gasPrice.Div(gasPrice, big.NewInt(100))
		}

		tx := types.NewTransaction(nonce, to, value, s.GasLimit, gasPrice, p.Data)
		signed, err := types.SignTx(tx, types.NewEIP155Signer(s.ChainID), s.PrivateKey)
		if err != nil {
			statusCh <- queue.SubmitStatus{Step: "broadcasting", Err: fmt.Errorf("sign tx: %w", err)}
			return
		}

		statusCh <- queue.SubmitStatus{Step: fmt.Sprintf("broadcasting (attempt %d)", attempt+1), Progress: 0.5}

		if err := s.Client.rpc.SendTransaction(ctx, signed); err != nil {
			sendErr = err
			if isRetryableBroadcastErr(err) && attempt < s.MaxRetries-1 {
				select {
				case <-ctx.Done():
					statusCh <- queue.SubmitStatus{Step: "broadcasting", Err: ctx.Err()}
					return
				case <-time.After(2 * time.Second):
				}
				continue
			}
			statusCh <- queue.SubmitStatus{Step: "broadcasting", Err: fmt.Errorf("send tx after %d attempts: %w", attempt+1, err)}
			return
		}

		signedTx = signed
		sendErr = nil
		break
	}
	if signedTx == nil {
		statusCh <- queue.SubmitStatus{Step: "broadcasting", Err: fmt.Errorf("send tx: %w", sendErr)}
		return
	}

	statusCh <- queue.SubmitStatus{Step: "awaiting confirmations", Progress: 0.7}

	if err := s.awaitConfirmations(ctx, signedTx); err != nil {
		statusCh <- queue.SubmitStatus{Step: "awaiting confirmations", Err: err}
		return
	}

	statusCh <- queue.SubmitStatus{Step: "finalized", Progress: 1.0, Done: true}
}

// awaitConfirmations polls until the transaction is mined and the chain head
// has advanced past it by the configured confirmation depth.
func (s *Submitter) awaitConfirmations(ctx context.Context, tx *types.Transaction) error {
	for {
		receipt, err := s.Client.rpc.TransactionReceipt(ctx, tx.Hash())
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction reverted: %s", tx.Hash().Hex())
			}
			head, err := s.Client.rpc.BlockNumber(ctx)
			if err == nil && head >= receipt.BlockNumber.Uint64()+s.Client.Confirmations {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func isRetryableBroadcastErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "replacement transaction underpriced") ||
		strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "already known")
}
