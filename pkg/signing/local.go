// Copyright 2025 Certen Protocol
//
// Local-Signer Backend: configured with a private key and a set of known
// resource ids (signature bridges). Grounded on pkg/crypto/bls/key_manager.go's
// key lifecycle and on the go-ethereum crypto package for keccak/ECDSA.

package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/webb-tools/relayer/pkg/metrics"
	"github.com/webb-tools/relayer/pkg/proposal"
	"github.com/webb-tools/relayer/pkg/queue"
	"github.com/webb-tools/relayer/pkg/resource"
)

// LocalSigner signs Anchor Update Proposals with a local ECDSA key and
// enqueues the resulting Bridge Command under the target bridge's queue.
type LocalSigner struct {
	Keys    *KeyManager
	Bridges map[resource.ID]*queue.Queue
	TTL     time.Duration
	Metrics *metrics.Metrics
}

// NewLocalSigner constructs a LocalSigner over the given bridge queues
// (keyed by the bridge's own resource id — the "known set" of spec §4.3.1).
func NewLocalSigner(keys *KeyManager, bridges map[resource.ID]*queue.Queue, ttl time.Duration) *LocalSigner {
	return &LocalSigner{Keys: keys, Bridges: bridges, TTL: ttl}
}

// CanHandle returns true iff the proposal's resource id is a known bridge.
func (s *LocalSigner) CanHandle(p *proposal.Proposal) bool {
	_, ok := s.Bridges[p.Header.ResourceID]
	return ok
}

// Handle signs the proposal and enqueues the Bridge Command. Signing is
// deterministic in the input: identical proposals always yield identical
// signatures (spec §8 deterministic-signing law), since crypto.Sign over a
// fixed digest with a fixed key has no randomness.
func (s *LocalSigner) Handle(ctx context.Context, p *proposal.Proposal) error {
	q, ok := s.Bridges[p.Header.ResourceID]
	if !ok {
		return fmt.Errorf("local signer: no bridge queue for resource %s", p.Header.ResourceID)
	}

	digest := crypto.Keccak256Hash(p.Serialize())
	sig, err := s.Keys.Sign([32]byte(digest))
	if err != nil {
		return fmt.Errorf("sign proposal: %w", err)
	}

	cmd := proposal.BridgeCommand{Data: p.Serialize(), Signature: sig}
	payload, err := cmd.Marshal()
	if err != nil {
		return fmt.Errorf("marshal bridge command: %w", err)
	}
	key := cmd.QueueKey(keccak256Array)

	if _, err := q.Enqueue(key, payload, s.TTL, time.Now()); err != nil {
		return fmt.Errorf("enqueue bridge command: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.ProposalsProcessed.WithLabelValues(p.Header.ResourceID.String()).Inc()
	}
	return nil
}

func keccak256Array(b []byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(b))
}
