package engine

import (
	"sync/atomic"

	"github.com/efreitasn/brokersim/internal/domain"
)

// DispatchFilter decides whether an order may leave its queue under the
// current threshold.
type DispatchFilter interface {
	Check(order *domain.Order) bool
}

// ThresholdFilter is a DispatchFilter whose threshold is updated from
// market events. SetThreshold only records the value; the owner of the
// queue decides when to dispatch again.
type ThresholdFilter[T any] interface {
	DispatchFilter
	SetThreshold(v T)
	Threshold() T
}

var (
	_ ThresholdFilter[bool]  = (*MarketFilter)(nil)
	_ ThresholdFilter[int64] = (*StopBuyFilter)(nil)
	_ ThresholdFilter[int64] = (*StopSellFilter)(nil)
)

// MarketFilter releases every order while the market is open and none
// while it is closed.
type MarketFilter struct {
	open atomic.Bool
}

// NewMarketFilter creates a MarketFilter seeded with the exchange state.
func NewMarketFilter(open bool) *MarketFilter {
	f := &MarketFilter{}
	f.open.Store(open)
	return f
}

func (f *MarketFilter) Check(*domain.Order) bool { return f.open.Load() }
func (f *MarketFilter) SetThreshold(open bool) { f.open.Store(open) }
func (f *MarketFilter) Threshold() bool { return f.open.Load() }

// StopBuyFilter releases stop-buy orders whose trigger price is at or
// below the current price.
type StopBuyFilter struct {
	price atomic.Int64
}

// NewStopBuyFilter creates a StopBuyFilter seeded with price.
func NewStopBuyFilter(price int64) *StopBuyFilter {
	f := &StopBuyFilter{}
	f.price.Store(price)
	return f
}

func (f *StopBuyFilter) Check(order *domain.Order) bool {
	return order.TriggerPrice <= f.price.Load()
}

func (f *StopBuyFilter) SetThreshold(price int64) { f.price.Store(price) }
func (f *StopBuyFilter) Threshold() int64 { return f.price.Load() }

// StopSellFilter releases stop-sell orders whose trigger price is at or
// above the current price.
type StopSellFilter struct {
	price atomic.Int64
}

// NewStopSellFilter creates a StopSellFilter seeded with price.
func NewStopSellFilter(price int64) *StopSellFilter {
	f := &StopSellFilter{}
	f.price.Store(price)
	return f
}

func (f *StopSellFilter) Check(order *domain.Order) bool {
	return order.TriggerPrice >= f.price.Load()
}

func (f *StopSellFilter) SetThreshold(price int64) { f.price.Store(price) }
func (f *StopSellFilter) Threshold() int64 { return f.price.Load() }
