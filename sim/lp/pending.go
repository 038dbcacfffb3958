package lp

import (
	"container/heap"

	"github.com/aika-sim/aika/sim"
)

// pendingQueue implements heap.Interface and orders unprocessed messages
// by Stamp: timestamp → sender → sequence.
type pendingQueue []sim.Message

func (q pendingQueue) Len() int           { return len(q) }
func (q pendingQueue) Less(i, j int) bool { return q[i].Stamp().Less(q[j].Stamp()) }
func (q pendingQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) {
	*q = append(*q, x.(sim.Message))
}

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = sim.Message{}
	*q = old[0 : n-1]
	return item
}

func (q *pendingQueue) schedule(m sim.Message) { heap.Push(q, m) }

func (q *pendingQueue) next() sim.Message { return heap.Pop(q).(sim.Message) }

func (q pendingQueue) peek() (sim.Message, bool) {
	if len(q) == 0 {
		return sim.Message{}, false
	}
	return q[0], true
}

// cancel removes the positive message matching a, if queued.
func (q *pendingQueue) cancel(a sim.AntiMessage) bool {
	for i, m := range *q {
		if a.Matches(m) {
			heap.Remove(q, i)
			return true
		}
	}
	return false
}
