// Copyright 2025 Certen Protocol
//
// Proposal Signing Backends: a capability with two operations, CanHandle
// and Handle, with exactly two variants per spec §4.3 (local ECDSA signer,
// on-chain voting-contract submitter). Modeled as a closed set of concrete
// types behind one interface rather than an open registry, per spec §9's
// guidance against virtual dispatch on this path.

package signing

import (
	"context"

	"github.com/webb-tools/relayer/pkg/proposal"
)

// Backend dispatches an Anchor Update Proposal to wherever it needs to be
// signed or voted on.
type Backend interface {
	CanHandle(p *proposal.Proposal) bool
	Handle(ctx context.Context, p *proposal.Proposal) error
}
