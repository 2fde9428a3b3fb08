// Implements the WaitQueue, which holds all customers waiting for a teller.
// Customers are enqueued on arrival and leave from the head on dispatch.

package sim

import (
	"fmt"
	"strings"
)

// WaitQueue is the single FIFO line in front of the counter.
// It is owned by the bank controller and never shared.
type WaitQueue struct {
	queue []CustomerID
}

// Enqueue adds a customer to the back of the line.
func (wq *WaitQueue) Enqueue(c CustomerID) {
	wq.queue = append(wq.queue, c)
}

// String lists the waiting customers front to back, e.g. "[customer-0001 customer-0002]".
func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range wq.queue {
		sb.WriteString(fmt.Sprint(val))
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of waiting customers.
func (wq *WaitQueue) Len() int {
	return len(wq.queue)
}

// Peek returns the customer at the head without removing it.
func (wq *WaitQueue) Peek() (CustomerID, bool) {
	if len(wq.queue) == 0 {
		return "", false
	}
	return wq.queue[0], true
}

// Items returns the queue contents in arrival order.
// Callers MUST NOT append to or reslice the returned slice.
func (wq *WaitQueue) Items() []CustomerID {
	return wq.queue
}

// Dequeue removes and returns the customer at the head.
func (wq *WaitQueue) Dequeue() (CustomerID, bool) {
	if len(wq.queue) == 0 {
		return "", false
	}
	c := wq.queue[0]
	wq.queue = wq.queue[1:]
	return c, true
}
