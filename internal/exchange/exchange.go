// Package exchange defines the stock exchange contract the broker consumes
// and an in-memory simulator implementing it.
package exchange

import "github.com/efreitasn/brokersim/internal/domain"

// EventType identifies an exchange notification.
type EventType string

const (
	EventOpened       EventType = "opened"
	EventClosed       EventType = "closed"
	EventPriceChanged EventType = "price_changed"
)

// Event is pushed to listeners. Symbol and Price are set for price changes only.
type Event struct {
	Type   EventType
	Symbol string
	Price  int64
}

// Listener receives exchange events. Implementations must not block for long:
// events are delivered synchronously on the goroutine that caused them.
type Listener interface {
	ExchangeOpened(ev Event)
	ExchangeClosed(ev Event)
	PriceChanged(ev Event)
}

// Exchange is the market the broker trades on.
type Exchange interface {
	// Tickers returns the tradable symbols in a stable order.
	Tickers() []string
	// Quote returns the current price, or domain.ErrUnknownSymbol.
	Quote(symbol string) (domain.Quote, error)
	IsOpen() bool
	// ExecuteTrade fills the order at the current price and returns that
	// price. It fails with domain.ErrExchangeClosed while closed.
	ExecuteTrade(order *domain.Order) (int64, error)
	AddListener(l Listener)
	RemoveListener(l Listener)
}
