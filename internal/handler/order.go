package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/brokersim/internal/broker"
	"github.com/efreitasn/brokersim/internal/domain"
	"github.com/go-chi/chi/v5"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	broker *broker.Broker
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(b *broker.Broker) *OrderHandler {
	return &OrderHandler{broker: b}
}

// placeOrderRequest is the JSON request body for POST /orders.
type placeOrderRequest struct {
	Account      string `json:"account"`
	Kind         string `json:"kind"`
	Symbol       string `json:"symbol"`
	Quantity     int64  `json:"quantity"`
	TriggerPrice *int64 `json:"trigger_price"`
}

// orderResponse is the JSON view of an order. trigger_price is omitted for
// market orders.
type orderResponse struct {
	OrderID      int64  `json:"order_id"`
	Account      string `json:"account"`
	Kind         string `json:"kind"`
	Symbol       string `json:"symbol"`
	Quantity     int64  `json:"quantity"`
	TriggerPrice *int64 `json:"trigger_price,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// pendingResponse is the JSON response for GET /symbols/{symbol}/orders.
type pendingResponse struct {
	Symbol    string          `json:"symbol"`
	Price     int64           `json:"price"`
	StopBuys  []orderResponse `json:"stop_buys"`
	StopSells []orderResponse `json:"stop_sells"`
	Market    []orderResponse `json:"market"`
}

// Place handles POST /orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	kind := domain.OrderKind(req.Kind)
	if !kind.Valid() {
		WriteError(w, http.StatusBadRequest, "validation_error",
			"kind must be one of: market_buy, market_sell, stop_buy, stop_sell")
		return
	}
	var trigger int64
	switch {
	case kind.IsStop() && req.TriggerPrice == nil:
		WriteError(w, http.StatusBadRequest, "validation_error", "trigger_price is required for stop orders")
		return
	case !kind.IsStop() && req.TriggerPrice != nil:
		WriteError(w, http.StatusBadRequest, "validation_error", "trigger_price must not be set for market orders")
		return
	case req.TriggerPrice != nil:
		trigger = *req.TriggerPrice
	}

	order, err := domain.NewOrder(req.Account, kind, req.Symbol, req.Quantity, trigger)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := h.broker.PlaceOrder(order); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// Cancel handles DELETE /orders/{order_id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a valid integer")
		return
	}

	order, err := h.broker.CancelOrder(orderID)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Pending handles GET /symbols/{symbol}/orders.
func (h *OrderHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.broker.PendingOrders(chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, pendingResponse{
		Symbol:    pending.Symbol,
		Price:     pending.Price,
		StopBuys:  buildOrderResponses(pending.StopBuys),
		StopSells: buildOrderResponses(pending.StopSells),
		Market:    buildOrderResponses(pending.Market),
	})
}

func buildOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:   o.OrderID,
		Account:   o.Account,
		Kind:      string(o.Kind),
		Symbol:    o.Symbol,
		Quantity:  o.Quantity,
		CreatedAt: o.CreatedAt.UTC().Format(timeFormat),
	}
	if o.Kind.IsStop() {
		p := o.TriggerPrice
		resp.TriggerPrice = &p
	}
	return resp
}

func buildOrderResponses(orders []*domain.Order) []orderResponse {
	result := make([]orderResponse, len(orders))
	for i, o := range orders {
		result[i] = buildOrderResponse(o)
	}
	return result
}
