package framework

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCompletedCase(index int) CompletedCase {
	return CompletedCase{Outcome: Outcome{Name: fmt.Sprintf("case-%d", index), ScheduleIndex: index}}
}

func acceptTestCases(q *OutcomeSortingQueue, indexes ...int) {
	for _, i := range indexes {
		q.Accept(fakeCompletedCase(i))
	}
}

func expectTestCases(t *testing.T, q *OutcomeSortingQueue, indexes ...int) {
	for _, i := range indexes {
		select {
		case cc := <-q.C:
			assert.Equal(t, fmt.Sprintf("case-%d", i), cc.Outcome.Name)
		case <-time.After(time.Second):
			var deferredList []string
			for _, d := range q.Deferred() {
				deferredList = append(deferredList, d.Outcome.Name)
			}
			require.Fail(t, "timed out waiting for case from queue",
				"was waiting for case %d; deferred cases were [%v]", i, strings.Join(deferredList, ","))
		}
	}
}

func expectDeferredCases(t *testing.T, q *OutcomeSortingQueue, indexes ...int) {
	var expected, actual []string
	for _, i := range indexes {
		expected = append(expected, fmt.Sprintf("case-%d", i))
	}
	for _, d := range q.Deferred() {
		actual = append(actual, d.Outcome.Name)
	}
	assert.Equal(t, expected, actual, "did not see expected cases in deferred list")
}

func TestOutcomeSortingQueueWithCasesInOrder(t *testing.T) {
	q := NewOutcomeSortingQueue(10)
	acceptTestCases(q, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	expectDeferredCases(t, q) // should be empty
	expectTestCases(t, q, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
}

func TestOutcomeSortingQueueWithCasesOutOfOrder(t *testing.T) {
	q := NewOutcomeSortingQueue(10)

	acceptTestCases(q, 2)
	expectDeferredCases(t, q, 2)

	acceptTestCases(q, 1)
	expectDeferredCases(t, q, 1, 2)

	acceptTestCases(q, 5)
	expectDeferredCases(t, q, 1, 2, 5)

	acceptTestCases(q, 0)
	expectTestCases(t, q, 0, 1, 2)
	expectDeferredCases(t, q, 5)

	acceptTestCases(q, 4)
	expectDeferredCases(t, q, 4, 5)

	acceptTestCases(q, 3)
	expectTestCases(t, q, 3, 4, 5)
	expectDeferredCases(t, q) // empty
}

func TestOutcomeSortingQueueCloseIsIdempotent(t *testing.T) {
	q := NewOutcomeSortingQueue(2)
	acceptTestCases(q, 0)
	q.Close()
	q.Close()
	expectTestCases(t, q, 0)
	_, ok := <-q.C
	assert.False(t, ok)
}
