package pipeline

import (
	"sync"
	"testing"
)

func TestTryClaimIsExclusive(t *testing.T) {
	const workers = 16
	store := NewResultStore(1)

	var wg sync.WaitGroup
	claims := make(chan bool, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims <- store.TryClaim(0)
		}()
	}
	wg.Wait()
	close(claims)

	won := 0
	for ok := range claims {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("%d workers claimed the same page, want exactly 1", won)
	}
}

func TestCompleteWakesWaiter(t *testing.T) {
	store := NewResultStore(3)
	done := make(chan Result, 1)
	go func() {
		done <- store.AwaitTerminal(1)
	}()

	if !store.TryClaim(1) {
		t.Fatal("TryClaim(1) failed on a fresh store")
	}
	store.Complete(1, Result{State: SlotSuccess})

	res := <-done
	if res.State != SlotSuccess {
		t.Fatalf("AwaitTerminal returned %v, want success", res.State)
	}
}

func TestCancelRemaining(t *testing.T) {
	store := NewResultStore(5)
	if !store.TryClaim(1) {
		t.Fatal("TryClaim(1) failed")
	}
	if !store.TryClaim(3) {
		t.Fatal("TryClaim(3) failed")
	}

	store.CancelRemaining(2)

	want := []SlotState{SlotUnclaimed, SlotClaimed, SlotCancelled, SlotClaimed, SlotCancelled}
	got := store.snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Claimed slots still accept their outcome after cancellation.
	store.Complete(3, Result{State: SlotNoImage})
	if res := store.AwaitTerminal(3); res.State != SlotNoImage {
		t.Errorf("slot 3 = %v, want no-image", res.State)
	}

	// A second cancellation changes nothing it already settled.
	store.CancelRemaining(0)
	got = store.snapshot()
	if got[0] != SlotCancelled {
		t.Errorf("slot 0 = %v, want cancelled", got[0])
	}
	if got[2] != SlotCancelled || got[3] != SlotNoImage {
		t.Errorf("cancellation was not idempotent: %v", got)
	}
}

func TestCancelReleasesAwait(t *testing.T) {
	store := NewResultStore(2)
	done := make(chan Result, 1)
	go func() {
		done <- store.AwaitTerminal(1)
	}()

	store.CancelRemaining(0)
	if res := <-done; res.State != SlotCancelled {
		t.Fatalf("AwaitTerminal returned %v, want cancelled", res.State)
	}
}

func TestCompleteOnUnclaimedPanics(t *testing.T) {
	store := NewResultStore(1)
	defer func() {
		if recover() == nil {
			t.Fatal("Complete on an unclaimed slot did not panic")
		}
	}()
	store.Complete(0, Result{State: SlotSuccess})
}
