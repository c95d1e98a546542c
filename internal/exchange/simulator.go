package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/efreitasn/brokersim/internal/domain"
)

// Compile-time interface check.
var _ Exchange = (*Simulator)(nil)

// Simulator is an in-memory exchange with a fixed set of tickers. Prices
// move through SetPrice or, once Start is called, through a random walk on
// every tick. Listeners are notified after the simulator lock is released,
// so a listener may call back into the simulator.
type Simulator struct {
	mu        sync.RWMutex
	tickers   []string
	prices    map[string]int64 // symbol → cents
	open      bool
	listeners []Listener
	interval  time.Duration
	maxStep   int64
	logger    *slog.Logger
}

// SimulatorConfig configures NewSimulator.
type SimulatorConfig struct {
	Prices   map[string]int64 // symbol → initial price in cents
	Open     bool
	Interval time.Duration // tick interval for Start
	MaxStep  int64         // largest per-tick price move in cents
	Logger   *slog.Logger
}

// NewSimulator creates a simulator from cfg. Tickers are sorted by symbol.
func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if len(cfg.Prices) == 0 {
		return nil, errors.New("simulator needs at least one ticker")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prices := make(map[string]int64, len(cfg.Prices))
	tickers := make([]string, 0, len(cfg.Prices))
	for symbol, price := range cfg.Prices {
		if price <= 0 {
			return nil, fmt.Errorf("initial price for %s must be positive, got %d", symbol, price)
		}
		prices[symbol] = price
		tickers = append(tickers, symbol)
	}
	slices.Sort(tickers)

	return &Simulator{
		tickers:  tickers,
		prices:   prices,
		open:     cfg.Open,
		interval: cfg.Interval,
		maxStep:  cfg.MaxStep,
		logger:   logger,
	}, nil
}

// Tickers returns the tradable symbols sorted alphabetically.
func (s *Simulator) Tickers() []string {
	return slices.Clone(s.tickers)
}

// Quote returns the current price for symbol.
func (s *Simulator) Quote(symbol string) (domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	return domain.Quote{Symbol: symbol, Price: price}, nil
}

// IsOpen reports whether the exchange is trading.
func (s *Simulator) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// ExecuteTrade fills order at the current price.
func (s *Simulator) ExecuteTrade(order *domain.Order) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return 0, domain.ErrExchangeClosed
	}
	price, ok := s.prices[order.Symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, order.Symbol)
	}
	return price, nil
}

// AddListener registers l for all future events.
func (s *Simulator) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// RemoveListener unregisters l. It is a no-op if l is not registered.
func (s *Simulator) RemoveListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = slices.DeleteFunc(s.listeners, func(x Listener) bool { return x == l })
}

// Open starts trading and notifies listeners. Opening an open exchange is a no-op.
func (s *Simulator) Open() {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return
	}
	s.open = true
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.logger.Info("exchange opened")
	ev := Event{Type: EventOpened}
	for _, l := range listeners {
		l.ExchangeOpened(ev)
	}
}

// Close stops trading and notifies listeners. Closing a closed exchange is a no-op.
func (s *Simulator) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.logger.Info("exchange closed")
	ev := Event{Type: EventClosed}
	for _, l := range listeners {
		l.ExchangeClosed(ev)
	}
}

// SetPrice moves symbol to price and notifies listeners if it changed.
func (s *Simulator) SetPrice(symbol string, price int64) error {
	if price <= 0 {
		return &domain.ValidationError{Message: "price must be greater than 0"}
	}

	s.mu.Lock()
	old, ok := s.prices[symbol]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	if old == price {
		s.mu.Unlock()
		return nil
	}
	s.prices[symbol] = price
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.logger.Debug("price changed",
		slog.String("symbol", symbol),
		slog.Int64("old_price", old),
		slog.Int64("price", price),
	)
	ev := Event{Type: EventPriceChanged, Symbol: symbol, Price: price}
	for _, l := range listeners {
		l.PriceChanged(ev)
	}
	return nil
}

// Start launches a background goroutine that ticks at the configured
// interval and moves every price by a random step while the exchange is
// open. It stops when ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) {
	if s.interval <= 0 || s.maxStep <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// tick applies one random-walk step to every ticker. Prices never drop
// below one cent.
func (s *Simulator) tick() {
	if !s.IsOpen() {
		return
	}
	for _, symbol := range s.tickers {
		q, err := s.Quote(symbol)
		if err != nil {
			continue
		}
		step := rand.Int64N(2*s.maxStep+1) - s.maxStep
		next := max(q.Price+step, 1)
		if err := s.SetPrice(symbol, next); err != nil {
			s.logger.Error("tick failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
	}
}
