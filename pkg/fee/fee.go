// Copyright 2025 Certen Protocol
//
// Fee & Refund Gating: validates a user-submitted withdrawal's fee and
// refund before it is ever enqueued (spec §4.6). Grounded directly on
// original_source/crates/relayer-utils/src/fees.rs's FeeInfo cache
// (TTL-evicted map keyed by (anchor, chain), MAX_REFUND_USD, and the
// TRANSACTION_PROFIT_USD relay margin); the oracle itself (exchange rate and
// gas price lookup) is out of scope per spec §1 and is taken as an
// injected, already-async PriceOracle.

package fee

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/webb-tools/relayer/pkg/relayerr"
	"github.com/webb-tools/relayer/pkg/resource"
)

const (
	maxRefundUSD        = 1.0
	transactionProfitUSD = 5.0
	// feeSlack is the 0.96 multiplier spec §4.6 applies to estimated_fee:
	// the relay accepts fees down to 96% of its estimate.
	feeSlackNumerator   = 96
	feeSlackDenominator = 100
)

var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// PriceOracle is the external, already-async fee oracle spec §1 excludes
// from this specification: exchange-rate and gas-price lookup for one
// (anchor resource id) pair.
type PriceOracle interface {
	GasPrice(ctx context.Context, id resource.ID) (*big.Int, error)
	BaseTokenUSDPrice(ctx context.Context, id resource.ID) (float64, error)
	WrappedTokenUSDPrice(ctx context.Context, id resource.ID) (float64, error)
	// RefundExchangeRate returns wrappedToken->nativeToken, fixed-point at
	// 1e18. A zero rate is a valid oracle response (the Rust original
	// returns zero in one code path, per a TODO at that exact line) and is
	// rejected by the gate rather than divided by (spec §9 Open Question).
	RefundExchangeRate(ctx context.Context, id resource.ID) (*big.Int, error)
}

// Info is the cached, display-ready fee quote for one anchor, mirroring
// fees.rs's FeeInfo.
type Info struct {
	EstimatedFee       *big.Int // wrappedToken units, includes relay profit margin
	GasPrice           *big.Int // nativeToken units
	RefundExchangeRate *big.Int // wrappedToken -> nativeToken, fixed-point 1e18
	MaxRefund          *big.Int // wrappedToken units
	Timestamp          time.Time
}

func (i *Info) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(i.Timestamp) > ttl
}

// Gate caches FeeInfo per resource id for TTL and enforces the withdrawal
// gating law before a transaction reaches the queue.
type Gate struct {
	Oracle PriceOracle
	TTL    time.Duration

	mu    sync.Mutex
	cache map[resource.ID]*Info
}

// NewGate constructs a Gate with the spec's 60-second cache TTL.
func NewGate(oracle PriceOracle) *Gate {
	return &Gate{
		Oracle: oracle,
		TTL:    60 * time.Second,
		cache:  make(map[resource.ID]*Info),
	}
}

// GetFeeInfo returns the cached fee quote for id, regenerating it (and
// evicting every other expired entry) if the cached value has aged out.
func (g *Gate) GetFeeInfo(ctx context.Context, id resource.ID, estimatedGas *big.Int) (*Info, error) {
	now := time.Now()

	g.mu.Lock()
	g.evictLocked(now)
	if cached, ok := g.cache[id]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	info, err := g.compute(ctx, id, estimatedGas, now)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cache[id] = info
	g.mu.Unlock()
	return info, nil
}

func (g *Gate) evictLocked(now time.Time) {
	for id, info := range g.cache {
		if info.expired(g.TTL, now) {
			delete(g.cache, id)
		}
	}
}

func (g *Gate) compute(ctx context.Context, id resource.ID, estimatedGas *big.Int, now time.Time) (*Info, error) {
	gasPrice, err := g.Oracle.GasPrice(ctx, id)
	if err != nil {
		return nil, relayerr.New(relayerr.KindTransport, "fee.GasPrice", err)
	}

	baseTokenUSD, err := g.Oracle.BaseTokenUSDPrice(ctx, id)
	if err != nil {
		return nil, relayerr.New(relayerr.KindTransport, "fee.BaseTokenUSDPrice", err)
	}
	if baseTokenUSD <= 0 {
		return nil, relayerr.New(relayerr.KindConfig, "fee.BaseTokenUSDPrice", fmt.Errorf("non-positive base token price: %v", baseTokenUSD))
	}

	wrappedTokenUSD, err := g.Oracle.WrappedTokenUSDPrice(ctx, id)
	if err != nil {
		return nil, relayerr.New(relayerr.KindTransport, "fee.WrappedTokenUSDPrice", err)
	}
	if wrappedTokenUSD <= 0 {
		return nil, relayerr.New(relayerr.KindConfig, "fee.WrappedTokenUSDPrice", fmt.Errorf("non-positive wrapped token price: %v", wrappedTokenUSD))
	}

	exchangeRate, err := g.Oracle.RefundExchangeRate(ctx, id)
	if err != nil {
		return nil, relayerr.New(relayerr.KindTransport, "fee.RefundExchangeRate", err)
	}
	if exchangeRate == nil || exchangeRate.Sign() == 0 {
		return nil, relayerr.New(relayerr.KindConfig, "fee.RefundExchangeRate", relayerr.ErrZeroExchangeRate)
	}

	relayProfit := usdToWei(transactionProfitUSD / baseTokenUSD)
	txFee := new(big.Int).Mul(gasPrice, estimatedGas)
	estimatedFee := new(big.Int).Add(relayProfit, txFee)

	maxRefund := usdToWei(maxRefundUSD / wrappedTokenUSD)

	return &Info{
		EstimatedFee:       estimatedFee,
		GasPrice:           gasPrice,
		RefundExchangeRate: exchangeRate,
		MaxRefund:          maxRefund,
		Timestamp:          now,
	}, nil
}

// CheckWithdrawal enforces spec §4.6's withdrawal gate: refund must not
// exceed the cached max refund, and fee must cover 96% of the cached
// estimated fee plus the wrapped-token cost of the refund being granted.
// wrappedRefundEquivalent(refund) is the identity: refund is already
// expressed in wrappedToken units throughout this gate (see DESIGN.md).
func (g *Gate) CheckWithdrawal(ctx context.Context, id resource.ID, estimatedGas, fee, refund *big.Int) error {
	info, err := g.GetFeeInfo(ctx, id, estimatedGas)
	if err != nil {
		return err
	}

	if refund.Cmp(info.MaxRefund) > 0 {
		return relayerr.New(relayerr.KindUserInput, "fee.CheckWithdrawal",
			fmt.Errorf("invalid refund amount: %s exceeds max refund %s", refund, info.MaxRefund))
	}

	required := new(big.Int).Mul(info.EstimatedFee, big.NewInt(feeSlackNumerator))
	required.Div(required, big.NewInt(feeSlackDenominator))
	required.Add(required, refund)

	if fee.Cmp(required) < 0 {
		return relayerr.New(relayerr.KindUserInput, "fee.CheckWithdrawal",
			fmt.Errorf("insufficient fee: %s below required %s", fee, required))
	}
	return nil
}

func usdToWei(usd float64) *big.Int {
	f := new(big.Float).SetFloat64(usd)
	f.Mul(f, weiPerEther)
	out, _ := f.Int(nil)
	return out
}
