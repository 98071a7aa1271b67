// Copyright 2025 Certen Protocol
//
// Bridge Executor: a variant of the drainer that consumes Bridge Commands
// rather than typed transactions. For each command it constructs the
// executeProposal(data, signature) transaction against the bound
// signature-bridge contract and enqueues it into the main transaction
// queue. One executor task runs per signature bridge (spec §5).

package bridge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/webb-tools/relayer/pkg/evmtx"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/queue"
)

const executeProposalABI = `[{
	"name": "executeProposal",
	"type": "function",
	"inputs": [
		{"name": "data", "type": "bytes"},
		{"name": "signature", "type": "bytes"}
	]
}]`

var executeProposalMethod abi.Method

func init() {
	parsed, err := abi.JSON(strings.NewReader(executeProposalABI))
	if err != nil {
		panic(fmt.Sprintf("bridge: parse executeProposal ABI: %v", err))
	}
	executeProposalMethod = parsed.Methods["executeProposal"]
}

// Executor drains one signature bridge's Bridge Command queue, forwarding
// each command to the chain's main transaction queue as an executeProposal
// call.
type Executor struct {
	BridgeAddress [20]byte
	ChainID       uint32
	Commands      *queue.Queue // the per-bridge Bridge Command queue
	TxQueue       *queue.Queue // the chain's main transaction queue
	TTL           time.Duration
	Logger        *log.Logger
	idleSleep     time.Duration
}

// New constructs a Bridge Executor bound to one signature bridge.
func New(bridgeAddress [20]byte, chainID uint32, commands, txQueue *queue.Queue, ttl time.Duration, logger *log.Logger) *Executor {
	return &Executor{
		BridgeAddress: bridgeAddress,
		ChainID:       chainID,
		Commands:      commands,
		TxQueue:       txQueue,
		TTL:           ttl,
		Logger:        logger,
		idleSleep:     100 * time.Millisecond,
	}
}

// Run drains the bridge command queue until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := e.cycle(ctx); err != nil {
			return err
		}
	}
}

func (e *Executor) cycle(ctx context.Context) error {
	item, ok, err := e.Commands.Peek()
	if err != nil {
		return err
	}
	if !ok {
		return e.sleep(ctx, e.idleSleep)
	}
	if item.Status != queue.StatusPending {
		if err := e.Commands.ShiftToEnd(item.Key, nil); err != nil {
			return err
		}
		return e.sleep(ctx, e.idleSleep)
	}

	cmd, err := proposal.UnmarshalBridgeCommand(item.Payload)
	if err != nil {
		return e.fail(item.Key, fmt.Errorf("decode bridge command: %w", err))
	}

	calldata, err := e.buildExecuteProposalCalldata(cmd)
	if err != nil {
		return e.fail(item.Key, err)
	}

	txKey := e.txQueueKey(calldata)
	payload := &evmtx.Payload{To: e.BridgeAddress, Data: calldata, ChainID: e.ChainID}
	body, err := payload.Marshal()
	if err != nil {
		return e.fail(item.Key, fmt.Errorf("marshal execute-proposal tx: %w", err))
	}
	if _, err := e.TxQueue.Enqueue(txKey, body, e.TTL, time.Now()); err != nil {
		return e.fail(item.Key, fmt.Errorf("enqueue execute-proposal tx: %w", err))
	}

	return e.Commands.Update(item.Key, func(it *queue.Item) error {
		it.Status = queue.StatusFinalized
		it.Progress = 1.0
		return nil
	})
}

func (e *Executor) buildExecuteProposalCalldata(cmd *proposal.BridgeCommand) ([]byte, error) {
	packed, err := executeProposalMethod.Inputs.Pack(cmd.Data, cmd.Signature[:])
	if err != nil {
		return nil, fmt.Errorf("pack executeProposal calldata: %w", err)
	}
	return append(append([]byte{}, executeProposalMethod.ID...), packed...), nil
}

// txQueueKey derives the main queue's dedup key from the final calldata, so
// two executors racing over the same command converge on one queued tx.
func (e *Executor) txQueueKey(calldata []byte) [64]byte {
	var buf []byte
	buf = append(buf, e.BridgeAddress[:]...)
	buf = append(buf, calldata...)
	h := crypto.Keccak256Hash(buf)
	var key [64]byte
	copy(key[32:], h[:])
	return key
}

func (e *Executor) fail(key [64]byte, cause error) error {
	if err := e.Commands.ShiftToEnd(key, func(it *queue.Item) error {
		it.Status = queue.StatusFailed
		it.Reason = cause.Error()
		return nil
	}); err != nil {
		e.logf("shift-to-end after failure failed: %v", err)
	}
	return nil
}

func (e *Executor) sleep(ctx context.Context, dur time.Duration) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(dur):
		return nil
	}
}

func (e *Executor) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}
