// Copyright 2025 Certen Protocol

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProposalsProcessed.WithLabelValues("res-1").Inc()
	m.FeesEarned.WithLabelValues("res-1").Add(10)
	m.AccountBalance.WithLabelValues("1", "0xabc").Set(5)
	m.WatcherBackoffs.WithLabelValues("res-1").Inc()
	m.HandlerFailures.WithLabelValues("res-1").Inc()
	m.QueueDepth.WithLabelValues("1", "tx").Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 6 {
		t.Errorf("registered metric families = %d, want 6", len(families))
	}
}

func TestNew_PanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected registering the same metrics twice against one registry to panic")
		}
	}()
	New(reg)
}
