// Copyright 2025 Certen Protocol
//
// On-chain Voting Backend: authority resides on-chain. Handle constructs a
// voteProposal(phase1_job_id, phase1_details, phase2_details) transaction
// and enqueues it into the main transaction queue, deduplicated on the
// transaction's own canonical form.

package signing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/webb-tools/relayer/pkg/evmtx"
	"github.com/webb-tools/relayer/pkg/metrics"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/queue"
)

const voteProposalABI = `[{
	"name": "voteProposal",
	"type": "function",
	"inputs": [
		{"name": "phase1JobId", "type": "bytes32"},
		{"name": "phase1Details", "type": "bytes"},
		{"name": "phase2Details", "type": "bytes"}
	]
}]`

var voteProposalMethod abi.Method

func init() {
	parsed, err := abi.JSON(strings.NewReader(voteProposalABI))
	if err != nil {
		panic(fmt.Sprintf("signing: parse voteProposal ABI: %v", err))
	}
	voteProposalMethod = parsed.Methods["voteProposal"]
}

// OnChainVoting submits proposals to a voting contract rather than signing
// them locally; the voting contract's own quorum logic is the source of
// authority.
type OnChainVoting struct {
	VotingContract [20]byte
	Phase1JobID    [32]byte
	Phase1Details  []byte
	ChainID        uint32
	TxQueue        *queue.Queue
	TTL            time.Duration
	Metrics        *metrics.Metrics
}

// NewOnChainVoting constructs an on-chain voting backend bound to one
// voting contract and phase1 job.
func NewOnChainVoting(votingContract [20]byte, phase1JobID [32]byte, phase1Details []byte, chainID uint32, txQueue *queue.Queue, ttl time.Duration) *OnChainVoting {
	return &OnChainVoting{
		VotingContract: votingContract,
		Phase1JobID:    phase1JobID,
		Phase1Details:  phase1Details,
		ChainID:        chainID,
		TxQueue:        txQueue,
		TTL:            ttl,
	}
}

// CanHandle always returns true: authority resides on-chain, so this
// backend accepts every proposal routed to it.
func (v *OnChainVoting) CanHandle(p *proposal.Proposal) bool {
	return true
}

// Handle packs the voteProposal calldata, computes the queue item key from
// the transaction's canonical form, and enqueues it if not already present.
func (v *OnChainVoting) Handle(ctx context.Context, p *proposal.Proposal) error {
	calldata, err := voteProposalMethod.Inputs.Pack(v.Phase1JobID, v.Phase1Details, p.Serialize())
	if err != nil {
		return fmt.Errorf("pack voteProposal calldata: %w", err)
	}
	calldata = append(append([]byte{}, voteProposalMethod.ID...), calldata...)

	payload := &evmtx.Payload{To: v.VotingContract, Data: calldata, ChainID: v.ChainID}
	body, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("marshal tx payload: %w", err)
	}

	key := queueKeyFromCalldata(v.VotingContract, v.ChainID, calldata)

	has, err := v.TxQueue.Has(key)
	if err != nil {
		return fmt.Errorf("check existing vote tx: %w", err)
	}
	if has {
		return nil
	}

	if _, err := v.TxQueue.Enqueue(key, body, v.TTL, time.Now()); err != nil {
		return fmt.Errorf("enqueue vote tx: %w", err)
	}
	if v.Metrics != nil {
		v.Metrics.ProposalsProcessed.WithLabelValues(p.Header.ResourceID.String()).Inc()
	}
	return nil
}

// queueKeyFromCalldata derives a 64-byte dedup key from a transaction's
// destination, chain, and calldata, so two identical vote submissions
// coalesce into one queue entry.
func queueKeyFromCalldata(to [20]byte, chainID uint32, calldata []byte) [64]byte {
	var buf []byte
	buf = append(buf, to[:]...)
	buf = append(buf, byte(chainID), byte(chainID>>8), byte(chainID>>16), byte(chainID>>24))
	buf = append(buf, calldata...)
	h := crypto.Keccak256Hash(buf)
	var key [64]byte
	copy(key[32:], h[:])
	return key
}
