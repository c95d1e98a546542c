package handler

import (
	"net/http"

	"github.com/efreitasn/brokersim/internal/broker"
	"github.com/go-chi/chi/v5"
)

// ExchangeControl is the administrative surface of a simulated exchange.
type ExchangeControl interface {
	IsOpen() bool
	Open()
	Close()
	SetPrice(symbol string, price int64) error
}

// ExchangeHandler handles quotes and exchange administration.
type ExchangeHandler struct {
	broker   *broker.Broker
	exchange ExchangeControl
}

// NewExchangeHandler creates a new ExchangeHandler.
func NewExchangeHandler(b *broker.Broker, exch ExchangeControl) *ExchangeHandler {
	return &ExchangeHandler{broker: b, exchange: exch}
}

// quoteResponse is the JSON response for GET /quotes/{symbol}.
type quoteResponse struct {
	Symbol string `json:"symbol"`
	Price  int64  `json:"price"`
}

// statusRequest is the JSON request body for PUT /exchange/status.
type statusRequest struct {
	Open *bool `json:"open"`
}

// statusResponse is the JSON response for the exchange status endpoints.
type statusResponse struct {
	Open    bool     `json:"open"`
	Tickers []string `json:"tickers"`
}

// priceRequest is the JSON request body for PUT /exchange/prices/{symbol}.
type priceRequest struct {
	Price int64 `json:"price"`
}

// Quote handles GET /quotes/{symbol}.
func (h *ExchangeHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.broker.RequestQuote(chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quoteResponse{Symbol: q.Symbol, Price: q.Price})
}

// Status handles GET /exchange/status.
func (h *ExchangeHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w)
}

// SetStatus handles PUT /exchange/status. Opening releases queued market
// orders before the response is written.
func (h *ExchangeHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Open == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "open is required")
		return
	}

	if *req.Open {
		h.exchange.Open()
	} else {
		h.exchange.Close()
	}
	h.writeStatus(w)
}

// SetPrice handles PUT /exchange/prices/{symbol}.
func (h *ExchangeHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	symbol := chi.URLParam(r, "symbol")
	if err := h.exchange.SetPrice(symbol, req.Price); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quoteResponse{Symbol: symbol, Price: req.Price})
}

func (h *ExchangeHandler) writeStatus(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, statusResponse{
		Open:    h.exchange.IsOpen(),
		Tickers: h.broker.Tickers(),
	})
}
