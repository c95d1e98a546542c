package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/efreitasn/brokersim/internal/domain"
	"github.com/efreitasn/brokersim/internal/exchange"
	"github.com/efreitasn/brokersim/internal/store"
	"github.com/google/uuid"
)

// Executor fills released orders on the exchange and settles them against
// the owning account. It satisfies engine.OrderProcessor.
//
// Only a closed exchange is reported back to the queue, which keeps the
// order for the next open. Orders that can never execute (unknown account,
// unknown symbol) are logged and dropped so they do not block the orders
// queued behind them.
type Executor struct {
	exchange   exchange.Exchange
	accounts   *store.AccountStore
	executions *store.ExecutionStore
	logger     *slog.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(
	exch exchange.Exchange,
	accounts *store.AccountStore,
	executions *store.ExecutionStore,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		exchange:   exch,
		accounts:   accounts,
		executions: executions,
		logger:     logger,
	}
}

// Process executes order at the exchange's current price.
func (e *Executor) Process(order *domain.Order) error {
	account, err := e.accounts.Get(order.Account)
	if err != nil {
		e.reject(order, err)
		return nil
	}

	price, err := e.exchange.ExecuteTrade(order)
	if err != nil {
		if errors.Is(err, domain.ErrExchangeClosed) {
			return err
		}
		e.reject(order, err)
		return nil
	}

	account.ReflectExecution(order, price)

	execution := &domain.Execution{
		ExecutionID: uuid.New().String(),
		OrderID:     order.OrderID,
		Account:     order.Account,
		Kind:        order.Kind,
		Symbol:      order.Symbol,
		Price:       price,
		Quantity:    order.Quantity,
		ExecutedAt:  time.Now(),
	}
	e.executions.Append(execution)

	e.logger.Info("order executed",
		slog.Int64("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("kind", string(order.Kind)),
		slog.Int64("price", price),
		slog.Int64("quantity", order.Quantity),
		slog.String("execution_id", execution.ExecutionID),
	)
	return nil
}

func (e *Executor) reject(order *domain.Order, err error) {
	e.logger.Warn("order rejected",
		slog.Int64("order_id", order.OrderID),
		slog.String("symbol", order.Symbol),
		slog.String("account", order.Account),
		slog.String("error", err.Error()),
	)
}
