package engine

import (
	"log/slog"

	"github.com/efreitasn/brokersim/internal/domain"
)

// OrderProcessor receives orders released by a queue. A non-nil error keeps
// the order queued so it can be released again later.
type OrderProcessor interface {
	Process(order *domain.Order) error
}

// ProcessorFunc adapts a plain function to OrderProcessor.
type ProcessorFunc func(order *domain.Order) error

func (f ProcessorFunc) Process(order *domain.Order) error {
	return f(order)
}

// MoveToQueue returns a processor that forwards released orders into dst.
// Once dst accepts an order the move is complete: failures while dst drains
// itself are logged and left for dst's next dispatch, since the order now
// belongs to dst.
func MoveToQueue(dst *OrderQueue, logger *slog.Logger) OrderProcessor {
	return ProcessorFunc(func(order *domain.Order) error {
		err := dst.Enqueue(order)
		if err != nil && IsDispatchFailure(err) {
			logger.Error("dispatch after move failed",
				slog.Int64("order_id", order.OrderID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	})
}
