// Copyright 2025 Certen Protocol
//
// Event Watcher Engine: one task per (chain, resource id), polling an
// EventSource for new events, dispatching each to every Handler willing to
// take it, and advancing a durable checkpoint. Grounded on
// pkg/anchor/event_watcher.go's pollLoop/pollEvents/dispatchLoop/
// RegisterHandler shape, generalized from one fixed contract ABI to any
// chain family behind the EventSource interface.

package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/webb-tools/relayer/pkg/metrics"
	"github.com/webb-tools/relayer/pkg/relayerr"
	"github.com/webb-tools/relayer/pkg/resource"
	"github.com/webb-tools/relayer/pkg/store"
)

// RawEvent is one chain event, already normalized to the shape the rest of
// the pipeline understands: a tree insertion (leaf or output) at an index,
// or an opaque payload for handlers that key off TxHash/Kind instead.
type RawEvent struct {
	ResourceID  resource.ID
	BlockNumber uint64
	TxHash      [32]byte
	LogIndex    uint
	Kind        string
	LeafIndex   uint32
	Value       [32]byte
	IsOutput    bool
	Raw         []byte
}

// hashKey derives the Event Hash Set key spec §4.1 uses for idempotent
// at-least-once delivery: identical (tx, log index, output flag) triples
// collapse to one delivery no matter how many times a block range is
// rescanned, while the leaf and encrypted-output events decoded from the
// same log keep distinct digests.
func (e RawEvent) hashKey() [32]byte {
	var buf [32 + 8 + 1]byte
	copy(buf[:32], e.TxHash[:])
	binary.BigEndian.PutUint64(buf[32:40], uint64(e.LogIndex))
	if e.IsOutput {
		buf[40] = 1
	}
	return sha256.Sum256(buf[:])
}

// EventSource is the chain-specific half of the watcher: given a resource id
// and a confirmed block range, return the events observed in it. Sources own
// their own retry policy for transient transport errors (spec §4.1 failure
// semantics); the watcher itself never retries a fetch.
type EventSource interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	FetchEvents(ctx context.Context, id resource.ID, from, to uint64) ([]RawEvent, error)
}

// Handler processes one dispatched event. Multiple handlers may accept the
// same event (spec §4.2: Leaf Cache and Deposit-to-Proposal both watch
// deposit events).
//
// A handler error is non-fatal by default: dispatch records it to metrics
// and moves on to the next handler (spec §4.1 failure semantics). A handler
// that wants its error to abort the current cycle and trigger watcher
// backoff instead must declare it fatal, either by tagging it
// relayerr.KindStore/relayerr.KindConfig (the relayer's own infrastructure
// failed, not the event's business logic) or by returning a FatalHandlerError.
type Handler interface {
	CanHandle(ev RawEvent) bool
	Handle(ctx context.Context, ev RawEvent) error
}

// FatalHandlerError wraps a handler error that must abort the current
// dispatch cycle rather than being recorded and skipped.
type FatalHandlerError struct {
	Err error
}

func (e *FatalHandlerError) Error() string { return e.Err.Error() }
func (e *FatalHandlerError) Unwrap() error { return e.Err }
func (e *FatalHandlerError) Fatal() bool   { return true }

// isFatalHandlerErr reports whether a handler's error should abort the
// current cycle and trigger backoff, per spec §4.1: "record to metrics and
// continue (non-fatal) unless the handler declared the error fatal, in
// which case return to backoff."
func isFatalHandlerErr(err error) bool {
	if relayerr.Is(err, relayerr.KindStore) || relayerr.Is(err, relayerr.KindConfig) {
		return true
	}
	var f interface{ Fatal() bool }
	if errors.As(err, &f) {
		return f.Fatal()
	}
	return false
}

// Watcher drives one (chain, resource id) event stream to completion,
// forever, until ctx is cancelled.
type Watcher struct {
	ResourceID    resource.ID
	Source        EventSource
	Store         *store.Store
	Handlers      []Handler
	PollInterval  time.Duration
	MaxBlockRange uint64
	Logger        *log.Logger
	Metrics       *metrics.Metrics
}

// New constructs a Watcher for one resource id.
func New(id resource.ID, source EventSource, st *store.Store, handlers []Handler, pollInterval time.Duration, maxBlockRange uint64, logger *log.Logger) *Watcher {
	if maxBlockRange == 0 {
		maxBlockRange = 1000
	}
	return &Watcher{
		ResourceID:    id,
		Source:        source,
		Store:         st,
		Handlers:      handlers,
		PollInterval:  pollInterval,
		MaxBlockRange: maxBlockRange,
		Logger:        logger,
	}
}

// Run polls and dispatches until ctx is cancelled (spec §5: one watcher task
// per (chain, resource id), driven by context cancellation rather than a
// Start/Stop channel pair).
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	if err := w.cycle(ctx); err != nil {
		w.reportBackoff()
		w.logf("poll cycle error: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.cycle(ctx); err != nil {
				w.reportBackoff()
				w.logf("poll cycle error: %v", err)
			}
		}
	}
}

func (w *Watcher) reportBackoff() {
	if w.Metrics == nil {
		return
	}
	w.Metrics.WatcherBackoffs.WithLabelValues(w.ResourceID.String()).Inc()
}

func (w *Watcher) reportHandlerFailure() {
	if w.Metrics == nil {
		return
	}
	w.Metrics.HandlerFailures.WithLabelValues(w.ResourceID.String()).Inc()
}

// cycle runs one checkpoint-bounded fetch-and-dispatch pass.
func (w *Watcher) cycle(ctx context.Context) error {
	current, err := w.Source.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("current block: %w", err)
	}

	checkpoint, err := w.Store.GetCheckpoint(w.ResourceID, 0)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	from := checkpoint + 1
	if checkpoint == 0 {
		from = 0
	}
	if from > current {
		return nil
	}

	to := current
	if to-from+1 > w.MaxBlockRange {
		to = from + w.MaxBlockRange - 1
	}

	events, err := w.Source.FetchEvents(ctx, w.ResourceID, from, to)
	if err != nil {
		return fmt.Errorf("fetch events [%d,%d]: %w", from, to, err)
	}

	for _, ev := range events {
		if err := w.dispatch(ctx, ev); err != nil {
			return fmt.Errorf("dispatch event (block %d, tx %x, log %d): %w", ev.BlockNumber, ev.TxHash, ev.LogIndex, err)
		}
	}

	// Checkpoint monotonicity (spec §3 invariant): never move backwards, and
	// only advance past a range we fully processed.
	if to > checkpoint {
		if err := w.Store.SetCheckpoint(w.ResourceID, to); err != nil {
			return fmt.Errorf("advance checkpoint to %d: %w", to, err)
		}
	}
	return nil
}

// dispatch delivers one event to every willing handler in registration
// order. A fatal handler error aborts immediately, propagating up through
// cycle to trigger backoff and leave the checkpoint unadvanced. A non-fatal
// handler error is recorded to metrics and dispatch continues to the next
// handler; since handlers must be commutative, the event's digest is only
// inserted once every handler has succeeded (spec §4.1 tie-breaking), so a
// partially-failed event is eligible to be redelivered on a later rescan of
// the same range.
func (w *Watcher) dispatch(ctx context.Context, ev RawEvent) error {
	key := ev.hashKey()
	seen, err := w.Store.HasEvent(key)
	if err != nil {
		return fmt.Errorf("check event hash set: %w", err)
	}
	if seen {
		return nil
	}

	allSucceeded := true
	for _, h := range w.Handlers {
		if !h.CanHandle(ev) {
			continue
		}
		if err := h.Handle(ctx, ev); err != nil {
			if isFatalHandlerErr(err) {
				return fmt.Errorf("fatal handler error: %w", err)
			}
			allSucceeded = false
			w.reportHandlerFailure()
			w.logf("handler error for event (block %d, tx %x, log %d): %v", ev.BlockNumber, ev.TxHash, ev.LogIndex, err)
			continue
		}
	}

	if !allSucceeded {
		return nil
	}
	return w.Store.MarkEvent(key)
}

func (w *Watcher) logf(format string, args ...interface{}) {
	if w.Logger != nil {
		w.Logger.Printf(format, args...)
	}
}
