package ha

import (
	"encoding/json"
	"sync"

	"github.com/haven-dev/haven/internal/future"
)

// pendingDeployment is a deployment requested while there was no quorum.
type pendingDeployment struct {
	workload string
	options  json.RawMessage
	fut      *future.Future[string]
}

// pendingQueue holds deployments waiting for a quorum, FIFO. The queue is
// in-memory only: a process restart implies redeploying from scratch
// through the membership protocol anyway.
type pendingQueue struct {
	mut   sync.Mutex
	items []pendingDeployment
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{}
}

func (q *pendingQueue) Push(dep pendingDeployment) {
	q.mut.Lock()
	defer q.mut.Unlock()

	q.items = append(q.items, dep)
	pendingDeployments.Set(float64(len(q.items)))
}

func (q *pendingQueue) Pop() (pendingDeployment, bool) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if len(q.items) == 0 {
		return pendingDeployment{}, false
	}

	dep := q.items[0]
	q.items = q.items[1:]
	pendingDeployments.Set(float64(len(q.items)))

	return dep, true
}

func (q *pendingQueue) Len() int {
	q.mut.Lock()
	defer q.mut.Unlock()

	return len(q.items)
}
