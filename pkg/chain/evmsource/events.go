// Copyright 2025 Certen Protocol
//
// AnchorSource adapts an EVM anchor/bridge contract's logs to
// pkg/watcher.EventSource: NewCommitment for leaf/output insertions,
// ProposalSigned for the signed-proposal handler. Grounded on
// pkg/anchor/event_watcher.go's ABI-parse-once-at-init and topic-hash
// dispatch pattern.

package evmsource

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/webb-tools/relayer/pkg/resource"
	"github.com/webb-tools/relayer/pkg/watcher"
)

const anchorEventsABI = `[
	{
		"anonymous": false,
		"name": "NewCommitment",
		"type": "event",
		"inputs": [
			{"indexed": true, "name": "leafIndex", "type": "uint32"},
			{"indexed": false, "name": "commitment", "type": "bytes32"},
			{"indexed": false, "name": "encryptedOutput", "type": "bytes"}
		]
	},
	{
		"anonymous": false,
		"name": "ProposalSigned",
		"type": "event",
		"inputs": [
			{"indexed": true, "name": "resourceId", "type": "bytes32"},
			{"indexed": false, "name": "data", "type": "bytes"},
			{"indexed": false, "name": "signature", "type": "bytes"}
		]
	}
]`

var (
	anchorABI            abi.ABI
	topicNewCommitment   common.Hash
	topicProposalSigned  common.Hash
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(anchorEventsABI))
	if err != nil {
		panic(fmt.Sprintf("evmsource: parse anchor events ABI: %v", err))
	}
	anchorABI = parsed
	topicNewCommitment = anchorABI.Events["NewCommitment"].ID
	topicProposalSigned = anchorABI.Events["ProposalSigned"].ID
}

// Kinds routed to watcher.Handler.CanHandle.
const (
	KindLeafInsert     = "leaf_insert"
	KindProposalSigned = "proposal_signed"
)

// AnchorSource implements watcher.EventSource for one EVM chain's set of
// watched anchor contracts, keyed by the resource id each is registered
// under.
type AnchorSource struct {
	Client    *Client
	Addresses map[resource.ID]common.Address
}

// NewAnchorSource constructs an AnchorSource over a connected EVM client.
func NewAnchorSource(client *Client, addresses map[resource.ID]common.Address) *AnchorSource {
	return &AnchorSource{Client: client, Addresses: addresses}
}

// ProposalSignedDataArgs returns the non-indexed ProposalSigned fields
// (data, signature) in the order they appear in a log's Data, for callers
// that need to unpack the event outside this package (pkg/handlers).
func ProposalSignedDataArgs() abi.Arguments {
	return anchorABI.Events["ProposalSigned"].Inputs.NonIndexed()
}

// CurrentBlock delegates to the underlying client's confirmation-adjusted head.
func (s *AnchorSource) CurrentBlock(ctx context.Context) (uint64, error) {
	return s.Client.CurrentBlock(ctx)
}

// GetRoot implements pkg/handlers.RootReader by resolving the resource id's
// registered contract address and reading its current root.
func (s *AnchorSource) GetRoot(ctx context.Context, id resource.ID) ([32]byte, error) {
	addr, ok := s.Addresses[id]
	if !ok {
		return [32]byte{}, fmt.Errorf("evmsource: no contract address registered for resource %s", id)
	}
	return s.Client.GetRoot(ctx, addr)
}

// FetchEvents fetches and decodes NewCommitment and ProposalSigned logs for
// one resource id's contract in [from, to].
func (s *AnchorSource) FetchEvents(ctx context.Context, id resource.ID, from, to uint64) ([]watcher.RawEvent, error) {
	addr, ok := s.Addresses[id]
	if !ok {
		return nil, fmt.Errorf("evmsource: no contract address registered for resource %s", id)
	}

	logs, err := s.Client.FilterLogs(ctx, []common.Address{addr}, [][]common.Hash{{topicNewCommitment, topicProposalSigned}}, from, to)
	if err != nil {
		return nil, err
	}

	events := make([]watcher.RawEvent, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		base := watcher.RawEvent{
			ResourceID:  id,
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
			LogIndex:    lg.Index,
		}

		switch lg.Topics[0] {
		case topicNewCommitment:
			if len(lg.Topics) < 2 {
				return nil, fmt.Errorf("evmsource: NewCommitment log missing indexed leafIndex topic (tx %s)", lg.TxHash.Hex())
			}
			leafIndex := lg.Topics[1].Big().Uint64()
			unpacked, err := anchorABI.Unpack("NewCommitment", lg.Data)
			if err != nil {
				return nil, fmt.Errorf("unpack NewCommitment (tx %s): %w", lg.TxHash.Hex(), err)
			}
			commitment, ok := unpacked[0].([32]byte)
			if !ok {
				return nil, fmt.Errorf("evmsource: NewCommitment commitment field has unexpected type %T", unpacked[0])
			}
			ev := base
			ev.Kind = KindLeafInsert
			ev.LeafIndex = uint32(leafIndex)
			ev.Value = commitment
			ev.Raw = lg.Data
			events = append(events, ev)

			// Anchors with a two-output design also emit an encrypted output
			// alongside the commitment; it is cached under its own namespace
			// keyed by the same leaf index. The ciphertext itself is
			// variable-length, so the cache stores its digest.
			if encryptedOutput, ok := unpacked[1].([]byte); ok && len(encryptedOutput) > 0 {
				outEv := base
				outEv.Kind = KindLeafInsert
				outEv.IsOutput = true
				outEv.LeafIndex = uint32(leafIndex)
				outEv.Value = sha256.Sum256(encryptedOutput)
				outEv.Raw = encryptedOutput
				events = append(events, outEv)
			}

		case topicProposalSigned:
			ev := base
			ev.Kind = KindProposalSigned
			ev.Raw = lg.Data
			events = append(events, ev)
		}
	}
	return events, nil
}
