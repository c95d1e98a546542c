package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/efreitasn/brokersim/internal/domain"
	"github.com/google/btree"
)

// DispatchError reports a processor failure for a specific order. The order
// is still queued when a DispatchError is returned.
type DispatchError struct {
	Order *domain.Order
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch order %d: %v", e.Order.OrderID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsDispatchFailure reports whether err was raised while draining a queue
// after a successful insert, as opposed to the insert itself being rejected.
func IsDispatchFailure(err error) bool {
	var dispatchErr *DispatchError
	return errors.As(err, &dispatchErr) || errors.Is(err, domain.ErrUnregisteredProcessor)
}

// OrderQueue holds not-yet-dispatched orders of one kind in a B-tree ordered
// by its Less func, with a secondary index for O(1) duplicate detection and
// O(log n) cancellation by order ID.
//
// Orders leave the queue only through dispatch, DequeueIfEligible or Cancel.
// The processor is called with the queue lock held and must not call back
// into the queue that released the order.
type OrderQueue struct {
	mu        sync.Mutex
	filter    DispatchFilter
	processor OrderProcessor
	orders    *btree.BTreeG[*domain.Order]
	index     map[int64]*domain.Order // order_id → order
}

// NewOrderQueue creates an empty queue ordered by less and gated by filter.
func NewOrderQueue(less Less, filter DispatchFilter) *OrderQueue {
	const degree = 32
	return &OrderQueue{
		filter: filter,
		orders: btree.NewG[*domain.Order](degree, btree.LessFunc[*domain.Order](less)),
		index:  make(map[int64]*domain.Order),
	}
}

// SetOrderProcessor replaces the processor. It takes effect on the next
// dispatch.
func (q *OrderQueue) SetOrderProcessor(p OrderProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = p
}

// Enqueue inserts order and then dispatches every eligible order, as one
// step under the queue lock. Invalid or duplicate orders are rejected
// without touching the queue. An error from the dispatch step leaves the
// inserted order queued.
func (q *OrderQueue) Enqueue(order *domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.index[order.OrderID]; exists {
		return fmt.Errorf("%w: order %d already queued", domain.ErrDuplicateOrder, order.OrderID)
	}
	q.orders.ReplaceOrInsert(order)
	q.index[order.OrderID] = order

	_, err := q.dispatchLocked()
	return err
}

// DequeueIfEligible removes and returns the head of the queue if the filter
// accepts it. Otherwise it returns false and leaves the queue unchanged.
// The processor is not invoked; ownership passes to the caller.
func (q *OrderQueue) DequeueIfEligible() (*domain.Order, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	head, ok := q.eligibleHead()
	if !ok {
		return nil, false
	}
	q.remove(head)
	return head, true
}

// DispatchOrders hands eligible orders to the processor in queue order until
// the queue is empty or its head is not eligible. It returns how many orders
// were dispatched. Calling it again without an intervening enqueue or
// threshold change dispatches nothing.
func (q *OrderQueue) DispatchOrders() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dispatchLocked()
}

func (q *OrderQueue) dispatchLocked() (int, error) {
	n := 0
	for {
		head, ok := q.eligibleHead()
		if !ok {
			return n, nil
		}
		if q.processor == nil {
			return n, fmt.Errorf("%w: order %d is eligible", domain.ErrUnregisteredProcessor, head.OrderID)
		}
		if err := q.processor.Process(head); err != nil {
			return n, &DispatchError{Order: head, Err: err}
		}
		q.remove(head)
		n++
	}
}

func (q *OrderQueue) eligibleHead() (*domain.Order, bool) {
	head, ok := q.orders.Min()
	if !ok || !q.filter.Check(head) {
		return nil, false
	}
	return head, true
}

func (q *OrderQueue) remove(order *domain.Order) {
	q.orders.Delete(order)
	delete(q.index, order.OrderID)
}

// Cancel removes the order with the given ID. It reports whether the order
// was queued.
func (q *OrderQueue) Cancel(orderID int64) (*domain.Order, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	order, ok := q.index[orderID]
	if !ok {
		return nil, false
	}
	q.remove(order)
	return order, true
}

// Contains reports whether an order with the given ID is queued.
func (q *OrderQueue) Contains(orderID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[orderID]
	return ok
}

// Orders returns the queued orders in dispatch order.
func (q *OrderQueue) Orders() []*domain.Order {
	q.mu.Lock()
	defer q.mu.Unlock()

	orders := make([]*domain.Order, 0, q.orders.Len())
	q.orders.Ascend(func(o *domain.Order) bool {
		orders = append(orders, o)
		return true
	})
	return orders
}

// Len returns the number of queued orders.
func (q *OrderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.orders.Len()
}
