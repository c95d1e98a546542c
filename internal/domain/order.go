package domain

import (
	"fmt"
	"sync/atomic"
	"time"
)

// OrderKind identifies the trading instruction an order carries.
type OrderKind string

const (
	OrderKindMarketBuy  OrderKind = "market_buy"
	OrderKindMarketSell OrderKind = "market_sell"
	OrderKindStopBuy    OrderKind = "stop_buy"
	OrderKindStopSell   OrderKind = "stop_sell"
)

// Valid reports whether k is one of the four supported kinds.
func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindMarketBuy, OrderKindMarketSell, OrderKindStopBuy, OrderKindStopSell:
		return true
	}
	return false
}

// IsStop reports whether orders of this kind carry a trigger price.
func (k OrderKind) IsStop() bool {
	return k == OrderKindStopBuy || k == OrderKindStopSell
}

// IsBuy reports whether the kind buys shares.
func (k OrderKind) IsBuy() bool {
	return k == OrderKindMarketBuy || k == OrderKindStopBuy
}

// Order is a single trading instruction. Orders are never mutated after
// NewOrder returns; queues and processors share the same pointer.
type Order struct {
	OrderID      int64
	Account      string
	Kind         OrderKind
	Symbol       string
	Quantity     int64
	TriggerPrice int64 // cents, stop orders only
	CreatedAt    time.Time
}

var lastOrderID atomic.Int64

// NextOrderID returns the next identifier of the process-wide order sequence.
// Identifiers start at 1 and are strictly increasing.
func NextOrderID() int64 {
	return lastOrderID.Add(1)
}

// NewOrder validates the fields and returns an order stamped with the next
// identifier. It returns an error wrapping ErrInvalidOrder for malformed input.
func NewOrder(account string, kind OrderKind, symbol string, quantity, triggerPrice int64) (*Order, error) {
	o := &Order{
		Account:      account,
		Kind:         kind,
		Symbol:       symbol,
		Quantity:     quantity,
		TriggerPrice: triggerPrice,
	}
	if !kind.IsStop() {
		o.TriggerPrice = 0
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	o.OrderID = NextOrderID()
	o.CreatedAt = time.Now()
	return o, nil
}

// Validate checks the invariants every queued order must satisfy.
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: order is nil", ErrInvalidOrder)
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOrder, o.Kind)
	}
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, o.Quantity)
	}
	return nil
}

func (o *Order) String() string {
	if o.Kind.IsStop() {
		return fmt.Sprintf("%s#%d %s x%d @%d", o.Kind, o.OrderID, o.Symbol, o.Quantity, o.TriggerPrice)
	}
	return fmt.Sprintf("%s#%d %s x%d", o.Kind, o.OrderID, o.Symbol, o.Quantity)
}
