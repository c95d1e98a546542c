package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/efreitasn/brokersim/internal/domain"
)

// OrderManager owns the stop-buy and stop-sell queues of one instrument.
// All mutations for the instrument go through the manager lock, so a price
// adjustment and an incoming order are never interleaved.
type OrderManager struct {
	mu         sync.Mutex
	symbol     string
	price      int64
	buyFilter  *StopBuyFilter
	sellFilter *StopSellFilter
	buyQueue   *OrderQueue
	sellQueue  *OrderQueue
}

// NewOrderManager creates a manager for symbol with both filters seeded
// with the instrument's current price.
func NewOrderManager(symbol string, price int64) *OrderManager {
	buyFilter := NewStopBuyFilter(price)
	sellFilter := NewStopSellFilter(price)
	return &OrderManager{
		symbol:     symbol,
		price:      price,
		buyFilter:  buyFilter,
		sellFilter: sellFilter,
		buyQueue:   NewOrderQueue(StopBuyLess, buyFilter),
		sellQueue:  NewOrderQueue(StopSellLess, sellFilter),
	}
}

// Symbol returns the instrument this manager governs.
func (m *OrderManager) Symbol() string {
	return m.symbol
}

// Price returns the last price pushed through AdjustPrice.
func (m *OrderManager) Price() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price
}

// SetOrderProcessor registers p on both stop queues.
func (m *OrderManager) SetOrderProcessor(p OrderProcessor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buyQueue.SetOrderProcessor(p)
	m.sellQueue.SetOrderProcessor(p)
}

// QueueOrder routes a stop order to the queue for its kind. The order is
// dispatched immediately if the current price already qualifies it.
func (m *OrderManager) QueueOrder(order *domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if order.Symbol != m.symbol {
		return fmt.Errorf("%w: order %d is for %s, manager handles %s",
			domain.ErrWrongInstrument, order.OrderID, order.Symbol, m.symbol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch order.Kind {
	case domain.OrderKindStopBuy:
		return m.buyQueue.Enqueue(order)
	case domain.OrderKindStopSell:
		return m.sellQueue.Enqueue(order)
	default:
		return fmt.Errorf("%w: %s is not a stop order", domain.ErrInvalidOrder, order.Kind)
	}
}

// AdjustPrice records the new price, pushes it into both filters and then
// dispatches the buy queue followed by the sell queue. Both thresholds are
// set before either queue drains.
func (m *OrderManager) AdjustPrice(price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.price = price
	m.buyFilter.SetThreshold(price)
	m.sellFilter.SetThreshold(price)

	_, buyErr := m.buyQueue.DispatchOrders()
	_, sellErr := m.sellQueue.DispatchOrders()
	return errors.Join(buyErr, sellErr)
}

// Cancel removes a queued stop order by ID from whichever queue holds it.
func (m *OrderManager) Cancel(orderID int64) (*domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.buyQueue.Cancel(orderID); ok {
		return o, true
	}
	return m.sellQueue.Cancel(orderID)
}

// Pending returns the queued stop-buy and stop-sell orders in dispatch order.
func (m *OrderManager) Pending() (buys, sells []*domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buyQueue.Orders(), m.sellQueue.Orders()
}
