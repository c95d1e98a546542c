package domain

import (
	"sync"
	"time"
)

// Account is a brokerage customer. Balance may go negative: orders are
// released for execution before the account is consulted.
type Account struct {
	AccountID    string
	Name         string
	PasswordHash []byte
	Balance      int64            // cents
	Holdings     map[string]int64 // symbol → shares
	CreatedAt    time.Time
	Mu           sync.Mutex // per-account lock for balance mutations
}

// ReflectExecution applies a filled order to the account. Buys debit
// price×quantity and add shares, sells do the reverse.
func (a *Account) ReflectExecution(order *Order, price int64) {
	a.Mu.Lock()
	defer a.Mu.Unlock()

	if a.Holdings == nil {
		a.Holdings = make(map[string]int64)
	}
	cost := price * order.Quantity
	if order.Kind.IsBuy() {
		a.Balance -= cost
		a.Holdings[order.Symbol] += order.Quantity
		return
	}
	a.Balance += cost
	a.Holdings[order.Symbol] -= order.Quantity
	if a.Holdings[order.Symbol] == 0 {
		delete(a.Holdings, order.Symbol)
	}
}

// Snapshot returns a copy of the mutable fields taken under the account lock.
func (a *Account) Snapshot() (balance int64, holdings map[string]int64) {
	a.Mu.Lock()
	defer a.Mu.Unlock()

	holdings = make(map[string]int64, len(a.Holdings))
	for s, q := range a.Holdings {
		holdings[s] = q
	}
	return a.Balance, holdings
}

// Quote is the exchange's current price for a symbol.
type Quote struct {
	Symbol string
	Price  int64 // cents
}

// Execution records an order filled by the exchange.
type Execution struct {
	ExecutionID string
	OrderID     int64
	Account     string
	Kind        OrderKind
	Symbol      string
	Price       int64 // cents
	Quantity    int64
	ExecutedAt  time.Time
}
