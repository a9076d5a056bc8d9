package pipeline

import (
	"fmt"
	"sync"

	"djvuocr/internal/zones"
)

// SlotState is the lifecycle state of one page's result slot.
type SlotState int

const (
	// SlotUnclaimed means no worker has started the page yet.
	SlotUnclaimed SlotState = iota
	// SlotClaimed means a worker owns the page and work is in progress.
	SlotClaimed
	// SlotSuccess means OCR text was extracted.
	SlotSuccess
	// SlotNoImage means the page had no image suitable for OCR (or a
	// per-page failure was degraded under the resume policy).
	SlotNoImage
	// SlotFailed means the page hit an unrecoverable error under the abort
	// policy.
	SlotFailed
	// SlotCancelled means the slot was pre-claimed by cancellation and will
	// never be processed.
	SlotCancelled
)

func (s SlotState) String() string {
	switch s {
	case SlotUnclaimed:
		return "unclaimed"
	case SlotClaimed:
		return "claimed"
	case SlotSuccess:
		return "success"
	case SlotNoImage:
		return "no-image"
	case SlotFailed:
		return "failed"
	case SlotCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// terminal reports whether a slot will never change state again.
func (s SlotState) terminal() bool {
	return s == SlotSuccess || s == SlotNoImage || s == SlotFailed || s == SlotCancelled
}

// Result is the terminal outcome of one page.
type Result struct {
	State SlotState
	// Zone holds the extracted text for SlotSuccess.
	Zone *zones.Zone
	// Err holds the page error for SlotFailed.
	Err error
}

// ResultStore is the shared mapping from page index to page state. One mutex
// and one condition variable guard every slot; the lock is held only for
// state transitions, never across I/O.
type ResultStore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	slots []Result
}

// NewResultStore creates a store with n unclaimed slots, one per page index.
func NewResultStore(n int) *ResultStore {
	s := &ResultStore{slots: make([]Result, n)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Len returns the number of slots.
func (s *ResultStore) Len() int { return len(s.slots) }

// TryClaim atomically claims an unclaimed slot. It returns false when the
// page is already claimed, finished or cancelled; the caller must then skip
// the page. This check-and-set is the sole mechanism keeping two workers off
// the same page.
func (s *ResultStore) TryClaim(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[index].State != SlotUnclaimed {
		return false
	}
	s.slots[index].State = SlotClaimed
	return true
}

// Complete stores a terminal outcome for a claimed slot and wakes all
// waiters. Completing a slot that is not claimed is a programming error.
func (s *ResultStore) Complete(index int, res Result) {
	if !res.State.terminal() || res.State == SlotCancelled {
		panic(fmt.Sprintf("pipeline: Complete with non-terminal state %v", res.State))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[index].State != SlotClaimed {
		panic(fmt.Sprintf("pipeline: Complete on %v slot %d", s.slots[index].State, index))
	}
	s.slots[index] = res
	s.cond.Broadcast()
}

// AwaitTerminal blocks until the slot reaches a terminal state or is
// pre-claimed by cancellation, and returns it. Only the ordered assembler
// calls this.
func (s *ResultStore) AwaitTerminal(index int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.slots[index].State.terminal() {
		s.cond.Wait()
	}
	return s.slots[index]
}

// CancelRemaining transitions every unclaimed slot at or after index to
// cancelled, so no worker starts new pages, and wakes all waiters. In-flight
// claimed slots are left to run to completion. Idempotent.
func (s *ResultStore) CancelRemaining(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := index; i < len(s.slots); i++ {
		if s.slots[i].State == SlotUnclaimed {
			s.slots[i].State = SlotCancelled
		}
	}
	s.cond.Broadcast()
}

// snapshot returns a copy of the current slot states (for tests and logs).
func (s *ResultStore) snapshot() []SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SlotState, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.State
	}
	return out
}
