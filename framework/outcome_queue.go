package framework

import (
	"sort"
	"sync"

	"github.com/rickwporter/gointegration/logging"
)

// CompletedCase pairs a settled outcome with the debug transcript the case
// produced, for delivery to a TestLogger.
type CompletedCase struct {
	Outcome     Outcome
	DebugOutput logging.CapturedOutput
}

// OutcomeSortingQueue re-sequences completed cases into schedule order.
// Parallel cases finish in any order; receivers on C see them as if the run
// had been sequential. A case whose predecessors have not all completed is
// held back until they have.
type OutcomeSortingQueue struct {
	C         chan CompletedCase
	next      int
	deferred  []CompletedCase
	lock      sync.Mutex
	closeOnce sync.Once
}

// NewOutcomeSortingQueue creates a queue whose channel can buffer
// channelSize cases. Size it for the whole schedule so that Accept never
// blocks its caller.
func NewOutcomeSortingQueue(channelSize int) *OutcomeSortingQueue {
	return &OutcomeSortingQueue{C: make(chan CompletedCase, channelSize)}
}

// Accept takes one completed case. If it is the next one in schedule order
// it is delivered immediately, along with any deferred successors that are
// now contiguous; otherwise it is held.
func (q *OutcomeSortingQueue) Accept(cc CompletedCase) {
	q.lock.Lock()
	if cc.Outcome.ScheduleIndex > q.next {
		q.deferred = append(q.deferred, cc)
		sort.Slice(q.deferred, func(i, j int) bool {
			return q.deferred[i].Outcome.ScheduleIndex < q.deferred[j].Outcome.ScheduleIndex
		})
		q.lock.Unlock()
		return
	}
	q.next = cc.Outcome.ScheduleIndex + 1
	q.C <- cc
	for len(q.deferred) > 0 {
		head := q.deferred[0]
		if head.Outcome.ScheduleIndex != q.next {
			break
		}
		q.deferred = q.deferred[1:]
		q.next++
		q.C <- head
	}
	q.lock.Unlock()
}

// Deferred returns the cases currently held back, in schedule order.
func (q *OutcomeSortingQueue) Deferred() []CompletedCase {
	q.lock.Lock()
	ret := make([]CompletedCase, len(q.deferred))
	copy(ret, q.deferred)
	q.lock.Unlock()
	return ret
}

func (q *OutcomeSortingQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.C)
	})
}
