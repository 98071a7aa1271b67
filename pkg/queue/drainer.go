// Copyright 2025 Certen Protocol
//
// Drainer is the single task per (chain, queue-kind) that pops, submits,
// and observes transactions, per spec §4.4's state-machine diagram.
// Grounded on pkg/anchor/scheduler.go's batch retry loop (MarkBatchFailed's
// retry-then-fail shape is this loop's direct ancestor) generalized from
// batch scheduling to a per-item drain cycle.

package queue

import (
	"context"
	"log"
	"time"

	cmtrand "github.com/cometbft/cometbft/libs/rand"

	"github.com/webb-tools/relayer/pkg/metrics"
)

// SubmitStatus is one observed step of an in-flight submission. Terminal
// statuses (Done true) stop the subscription.
type SubmitStatus struct {
	Step     string
	Progress float64
	Done     bool
	Err      error
}

// Submitter knows how to dry-run and submit one queue's payload kind to
// chain. pkg/chain/evmsource.Submitter implements it for the main EVM tx
// queue.
type Submitter interface {
	DryRun(ctx context.Context, payload []byte) error
	Submit(ctx context.Context, payload []byte) (<-chan SubmitStatus, error)
}

// Drainer runs the state-machine loop for one Queue.
type Drainer struct {
	Queue     *Queue
	Submitter Submitter
	MaxSleep  time.Duration // upper bound of the [1s, MaxSleep] desync sleep
	Logger    *log.Logger
	// ChainID labels this drainer's queue depth gauge; Metrics is optional.
	ChainID   string
	Metrics   *metrics.Metrics
	idleSleep time.Duration
}

// NewDrainer constructs a Drainer with spec defaults (100ms idle poll,
// 1s-to-MaxSleep desync window).
func NewDrainer(q *Queue, sub Submitter, maxSleep time.Duration, logger *log.Logger) *Drainer {
	if maxSleep < time.Second {
		maxSleep = time.Second
	}
	return &Drainer{Queue: q, Submitter: sub, MaxSleep: maxSleep, Logger: logger, idleSleep: 100 * time.Millisecond}
}

// Run drains the queue until ctx is cancelled. It returns nil on clean
// cancellation.
func (d *Drainer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := d.cycle(ctx); err != nil {
			return err
		}
	}
}

// cycle runs exactly one drain iteration: peek, possibly process one item,
// then sleep per spec §4.4 step 7 (or the shorter idle sleep when nothing
// was found or the head was non-Pending).
func (d *Drainer) cycle(ctx context.Context) error {
	d.reportDepth()

	item, ok, err := d.Queue.Peek()
	if err != nil {
		return err
	}
	if !ok {
		return d.sleep(ctx, d.idleSleep)
	}

	now := time.Now()
	if item.Expired(now) {
		if err := d.Queue.Remove(item.Key); err != nil {
			return err
		}
		return nil
	}

	if item.Status != StatusPending {
		// A non-Pending item sitting at the head: rotate it so a following
		// Pending item gets a chance (spec §8 boundary: "drainer handles a
		// queue whose head is Failed").
		if err := d.Queue.ShiftToEnd(item.Key, nil); err != nil {
			return err
		}
		return d.sleep(ctx, d.idleSleep)
	}

	d.process(ctx, item)
	return d.sleep(ctx, d.desyncSleep())
}

func (d *Drainer) process(ctx context.Context, item *Item) {
	key := item.Key

	if err := d.Queue.Update(key, func(it *Item) error {
		it.Status = StatusProcessing
		it.Step = "picked"
		it.Progress = 0.0
		return nil
	}); err != nil {
		d.logf("update to picked failed: %v", err)
		return
	}

	if err := d.Submitter.DryRun(ctx, item.Payload); err != nil {
		d.fail(item.Key, err)
		return
	}
	if err := d.Queue.Update(key, func(it *Item) error {
		it.Step = "dry-run-ok"
		it.Progress = 0.3
		return nil
	}); err != nil {
		d.logf("update to dry-run-ok failed: %v", err)
		return
	}

	statusCh, err := d.Submitter.Submit(ctx, item.Payload)
	if err != nil {
		d.fail(item.Key, err)
		return
	}
	if err := d.Queue.Update(key, func(it *Item) error {
		it.Step = "submitted"
		it.Progress = 0.4
		return nil
	}); err != nil {
		d.logf("update to submitted failed: %v", err)
		return
	}

	for st := range statusCh {
		if st.Err != nil {
			d.fail(item.Key, st.Err)
			return
		}
		if st.Done {
			if err := d.Queue.Update(key, func(it *Item) error {
				it.Status = StatusFinalized
				it.Step = st.Step
				it.Progress = 1.0
				return nil
			}); err != nil {
				d.logf("update to finalized failed: %v", err)
			}
			return
		}
		if err := d.Queue.Update(key, func(it *Item) error {
			it.Step = st.Step
			it.Progress = st.Progress
			return nil
		}); err != nil {
			d.logf("update progress failed: %v", err)
			return
		}
	}
}

func (d *Drainer) fail(key [64]byte, cause error) {
	reason := cause.Error()
	if err := d.Queue.ShiftToEnd(key, func(it *Item) error {
		it.Status = StatusFailed
		it.Reason = reason
		return nil
	}); err != nil {
		d.logf("shift-to-end after failure failed: %v", err)
	}
}

func (d *Drainer) sleep(ctx context.Context, dur time.Duration) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(dur):
		return nil
	}
}

// desyncSleep returns a uniform-random duration in [1s, MaxSleep] so
// multiple relayer instances racing over the same chain do not lock-step.
func (d *Drainer) desyncSleep() time.Duration {
	window := d.MaxSleep - time.Second
	if window <= 0 {
		return time.Second
	}
	return time.Second + time.Duration(cmtrand.Int63n(int64(window)))
}

func (d *Drainer) reportDepth() {
	if d.Metrics == nil {
		return
	}
	n, err := d.Queue.Len()
	if err != nil {
		return
	}
	d.Metrics.QueueDepth.WithLabelValues(d.ChainID, d.Queue.Kind()).Set(float64(n))
}

func (d *Drainer) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}
