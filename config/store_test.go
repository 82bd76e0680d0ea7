// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"errors"
	"testing"

	"github.com/momentics/reactorcore/errs"
)

func TestKnobs_FreezeRejectsOutOfRangeIORatio(t *testing.T) {
	k := NewKnobs()
	k.IORatio = 0
	_, err := k.Freeze()
	if err == nil {
		t.Fatal("expected error for IORatio == 0")
	}
	if !errors.Is(err, errs.InvalidArgument) {
		t.Fatalf("error not comparable via errors.Is(err, errs.InvalidArgument): %v", err)
	}
}

func TestKnobs_FreezeClampsLowAutoRebuildThresholdToDisabled(t *testing.T) {
	k := NewKnobs()
	k.SelectorAutoRebuildThreshold = 1
	snap, err := k.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if snap.SelectorAutoRebuildThreshold != 0 {
		t.Fatalf("SelectorAutoRebuildThreshold = %d, want 0 (disabled)", snap.SelectorAutoRebuildThreshold)
	}
}

func TestKnobs_FreezeDefaultsUnspecifiedMaxPendingTasks(t *testing.T) {
	k := NewKnobs()
	k.DefaultMaxPendingTasks = 0
	snap, err := k.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if snap.DefaultMaxPendingTasks != DefaultMaxPendingTasks {
		t.Fatalf("DefaultMaxPendingTasks = %d, want %d", snap.DefaultMaxPendingTasks, DefaultMaxPendingTasks)
	}
}
