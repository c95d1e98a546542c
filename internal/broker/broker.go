// Package broker routes orders to the per-instrument order managers and the
// shared market queue, and keeps their thresholds in step with the exchange.
package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/efreitasn/brokersim/internal/domain"
	"github.com/efreitasn/brokersim/internal/engine"
	"github.com/efreitasn/brokersim/internal/exchange"
	"github.com/efreitasn/brokersim/internal/service"
)

// Config holds the collaborators a Broker is built from.
type Config struct {
	Name     string
	Exchange exchange.Exchange
	Accounts *service.AccountService
	// Processor executes market orders and triggered stop orders.
	Processor engine.OrderProcessor
	Logger    *slog.Logger
}

// Pending is a snapshot of the orders waiting for one instrument.
type Pending struct {
	Symbol    string
	Price     int64
	StopBuys  []*domain.Order
	StopSells []*domain.Order
	Market    []*domain.Order
}

var _ exchange.Listener = (*Broker)(nil)

// Broker owns one OrderManager per tradable instrument plus the market
// queue shared by all of them. Stop orders released by a manager move into
// the market queue, so every execution goes through the same processor and
// only while the exchange is open.
type Broker struct {
	name         string
	exchange     exchange.Exchange
	accounts     *service.AccountService
	marketFilter *engine.MarketFilter
	marketQueue  *engine.OrderQueue
	managers     map[string]*engine.OrderManager // fixed after New
	closed       atomic.Bool

	// live holds the ids of every order accepted and not yet executed or
	// cancelled, whichever queue currently holds it.
	liveMu sync.Mutex
	live   map[int64]struct{}

	// marketMu serialises reading the exchange state with updating the
	// market filter.
	marketMu sync.Mutex
	logger       *slog.Logger
}

// New builds the manager registry from the exchange's tickers and registers
// the broker as an exchange listener.
func New(cfg Config) (*Broker, error) {
	if cfg.Exchange == nil {
		return nil, errors.New("broker: exchange is required")
	}
	if cfg.Accounts == nil {
		return nil, errors.New("broker: account service is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("broker: processor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("broker", cfg.Name))

	marketFilter := engine.NewMarketFilter(cfg.Exchange.IsOpen())
	marketQueue := engine.NewOrderQueue(engine.SubmissionLess, marketFilter)

	tickers := cfg.Exchange.Tickers()
	managers := make(map[string]*engine.OrderManager, len(tickers))
	moveToMarket := engine.MoveToQueue(marketQueue, logger)
	for _, symbol := range tickers {
		quote, err := cfg.Exchange.Quote(symbol)
		if err != nil {
			return nil, fmt.Errorf("broker: quote %s: %w", symbol, err)
		}
		m := engine.NewOrderManager(symbol, quote.Price)
		m.SetOrderProcessor(moveToMarket)
		managers[symbol] = m
	}

	b := &Broker{
		name:         cfg.Name,
		exchange:     cfg.Exchange,
		accounts:     cfg.Accounts,
		marketFilter: marketFilter,
		marketQueue:  marketQueue,
		managers:     managers,
		live:         make(map[int64]struct{}),
		logger:       logger,
	}
	marketQueue.SetOrderProcessor(b.execute(cfg.Processor))
	cfg.Exchange.AddListener(b)
	b.resync()

	logger.Info("broker started",
		slog.Int("instruments", len(managers)),
		slog.Bool("market_open", marketFilter.Threshold()),
	)
	return b, nil
}

// resync catches up with events fired between reading the initial state and
// registering as a listener.
func (b *Broker) resync() {
	if b.exchange.IsOpen() != b.marketFilter.Threshold() {
		b.syncMarketOpen()
	}
	for symbol, m := range b.managers {
		quote, err := b.exchange.Quote(symbol)
		if err != nil || quote.Price == m.Price() {
			continue
		}
		b.adjustPrice(symbol, quote.Price)
	}
}

// Name returns the broker's configured name.
func (b *Broker) Name() string {
	return b.name
}

// Tickers returns the tradable instruments.
func (b *Broker) Tickers() []string {
	return b.exchange.Tickers()
}

// PlaceOrder routes order by kind: market orders go to the shared market
// queue, stop orders to the manager for their symbol. Either path dispatches
// immediately if the order is already eligible. Failures while executing
// other orders during that dispatch are logged, not returned: the order
// itself was accepted.
func (b *Broker) PlaceOrder(order *domain.Order) error {
	if b.closed.Load() {
		return domain.ErrBrokerClosed
	}
	if err := order.Validate(); err != nil {
		return err
	}
	m, ok := b.managers[order.Symbol]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, order.Symbol)
	}
	if !b.accounts.Exists(order.Account) {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, order.Account)
	}
	if !b.track(order.OrderID) {
		return fmt.Errorf("%w: order %d already placed", domain.ErrDuplicateOrder, order.OrderID)
	}

	var err error
	if order.Kind.IsStop() {
		err = m.QueueOrder(order)
	} else {
		err = b.marketQueue.Enqueue(order)
	}
	if err != nil && !engine.IsDispatchFailure(err) {
		b.forget(order.OrderID)
		return err
	}
	if err != nil {
		b.logger.Error("dispatch failed",
			slog.Int64("order_id", order.OrderID),
			slog.String("symbol", order.Symbol),
			slog.String("error", err.Error()),
		)
	}

	b.logger.Debug("order placed",
		slog.Int64("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("kind", string(order.Kind)),
	)
	return nil
}

// CancelOrder withdraws a queued order. It returns domain.ErrOrderNotFound
// if no queue holds the order, including when it was already dispatched.
func (b *Broker) CancelOrder(orderID int64) (*domain.Order, error) {
	if b.closed.Load() {
		return nil, domain.ErrBrokerClosed
	}

	// Managers first: a stop order moves into the market queue under its
	// manager's lock, so it cannot slip past both lookups.
	var (
		order *domain.Order
		ok    bool
	)
	for _, m := range b.managers {
		if order, ok = m.Cancel(orderID); ok {
			break
		}
	}
	if !ok {
		order, ok = b.marketQueue.Cancel(orderID)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, orderID)
	}
	b.forget(orderID)

	b.logger.Info("order cancelled",
		slog.Int64("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
	)
	return order, nil
}

// PendingOrders returns the queued orders for symbol in dispatch order.
func (b *Broker) PendingOrders(symbol string) (*Pending, error) {
	m, ok := b.managers[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	buys, sells := m.Pending()

	market := make([]*domain.Order, 0)
	for _, o := range b.marketQueue.Orders() {
		if o.Symbol == symbol {
			market = append(market, o)
		}
	}
	return &Pending{
		Symbol:    symbol,
		Price:     m.Price(),
		StopBuys:  buys,
		StopSells: sells,
		Market:    market,
	}, nil
}

// RequestQuote returns the exchange's current price for symbol.
func (b *Broker) RequestQuote(symbol string) (domain.Quote, error) {
	return b.exchange.Quote(symbol)
}

func (b *Broker) CreateAccount(name, password string, balance int64) (*service.AccountView, error) {
	return b.accounts.CreateAccount(name, password, balance)
}

func (b *Broker) GetAccount(name, password string) (*service.AccountView, error) {
	return b.accounts.GetAccount(name, password)
}

func (b *Broker) DeleteAccount(name, password string) error {
	return b.accounts.DeleteAccount(name, password)
}

// ExchangeOpened releases every queued market order.
func (b *Broker) ExchangeOpened(exchange.Event) {
	b.logger.Info("exchange opened")
	b.syncMarketOpen()
}

// ExchangeClosed holds market orders until the next open.
func (b *Broker) ExchangeClosed(exchange.Event) {
	b.logger.Info("exchange closed")
	b.syncMarketOpen()
}

// PriceChanged forwards the new price to the instrument's manager.
func (b *Broker) PriceChanged(ev exchange.Event) {
	b.adjustPrice(ev.Symbol, ev.Price)
}

// syncMarketOpen sets the market filter from the exchange's current state
// rather than from the event, since open and close events may arrive out of
// order.
func (b *Broker) syncMarketOpen() {
	b.marketMu.Lock()
	b.marketFilter.SetThreshold(b.exchange.IsOpen())
	b.marketMu.Unlock()

	n, err := b.marketQueue.DispatchOrders()
	if err != nil {
		b.logger.Error("market dispatch failed", slog.String("error", err.Error()))
	}
	if n > 0 {
		b.logger.Info("market orders dispatched", slog.Int("count", n))
	}
}

func (b *Broker) adjustPrice(symbol string, price int64) {
	m, ok := b.managers[symbol]
	if !ok {
		b.logger.Warn("price change for unknown symbol", slog.String("symbol", symbol))
		return
	}
	if err := m.AdjustPrice(price); err != nil {
		b.logger.Error("stop dispatch failed",
			slog.String("symbol", symbol),
			slog.Int64("price", price),
			slog.String("error", err.Error()),
		)
	}
}

// execute wraps the market queue's processor so that an order is forgotten
// once the processor has consumed it.
func (b *Broker) execute(p engine.OrderProcessor) engine.OrderProcessor {
	return engine.ProcessorFunc(func(order *domain.Order) error {
		if err := p.Process(order); err != nil {
			return err
		}
		b.forget(order.OrderID)
		return nil
	})
}

// track records id as live. It reports false if the id is already live.
func (b *Broker) track(id int64) bool {
	b.liveMu.Lock()
	defer b.liveMu.Unlock()
	if _, ok := b.live[id]; ok {
		return false
	}
	b.live[id] = struct{}{}
	return true
}

func (b *Broker) forget(id int64) {
	b.liveMu.Lock()
	delete(b.live, id)
	b.liveMu.Unlock()
}

// Close unregisters the broker from the exchange. Queued orders stay where
// they are; later PlaceOrder and CancelOrder calls fail with
// domain.ErrBrokerClosed.
func (b *Broker) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.exchange.RemoveListener(b)
	b.logger.Info("broker closed")
}
