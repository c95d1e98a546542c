package engine

import "github.com/efreitasn/brokersim/internal/domain"

// Less is a strict total order over orders of one kind. Less(a, b) reports
// whether a is dispatched before b. Every ordering ends on OrderID so that
// two distinct orders never compare equal.
type Less func(a, b *domain.Order) bool

// StopBuyLess orders stop-buy orders by trigger price ascending, then
// quantity descending, then order_id ascending. Min() is the cheapest
// trigger, which is the first to qualify as the price rises.
func StopBuyLess(a, b *domain.Order) bool {
	if a.TriggerPrice != b.TriggerPrice {
		return a.TriggerPrice < b.TriggerPrice
	}
	if a.Quantity != b.Quantity {
		return a.Quantity > b.Quantity
	}
	return a.OrderID < b.OrderID
}

// StopSellLess orders stop-sell orders by trigger price descending, then
// quantity descending, then order_id ascending. Min() is the highest
// trigger, which is the first to qualify as the price falls.
func StopSellLess(a, b *domain.Order) bool {
	if a.TriggerPrice != b.TriggerPrice {
		return a.TriggerPrice > b.TriggerPrice
	}
	if a.Quantity != b.Quantity {
		return a.Quantity > b.Quantity
	}
	return a.OrderID < b.OrderID
}

// SubmissionLess orders by order_id ascending, i.e. submission order.
func SubmissionLess(a, b *domain.Order) bool {
	return a.OrderID < b.OrderID
}
