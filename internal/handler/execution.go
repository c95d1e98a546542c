package handler

import (
	"net/http"

	"github.com/efreitasn/brokersim/internal/domain"
	"github.com/efreitasn/brokersim/internal/store"
)

// ExecutionHandler serves the execution log.
type ExecutionHandler struct {
	store *store.ExecutionStore
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(s *store.ExecutionStore) *ExecutionHandler {
	return &ExecutionHandler{store: s}
}

// executionResponse is a single fill in the execution log.
type executionResponse struct {
	ExecutionID string `json:"execution_id"`
	OrderID     int64  `json:"order_id"`
	Account     string `json:"account"`
	Kind        string `json:"kind"`
	Symbol      string `json:"symbol"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	ExecutedAt  string `json:"executed_at"`
}

// executionListResponse is the JSON response for GET /executions.
type executionListResponse struct {
	Executions []executionResponse `json:"executions"`
	Total      int                 `json:"total"`
}

// List handles GET /executions, optionally filtered by ?account=.
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	var executions []*domain.Execution
	if account := r.URL.Query().Get("account"); account != "" {
		executions = h.store.ListByAccount(account)
	} else {
		executions = h.store.List()
	}

	result := make([]executionResponse, len(executions))
	for i, e := range executions {
		result[i] = executionResponse{
			ExecutionID: e.ExecutionID,
			OrderID:     e.OrderID,
			Account:     e.Account,
			Kind:        string(e.Kind),
			Symbol:      e.Symbol,
			Price:       e.Price,
			Quantity:    e.Quantity,
			ExecutedAt:  e.ExecutedAt.UTC().Format(timeFormat),
		}
	}
	WriteJSON(w, http.StatusOK, executionListResponse{
		Executions: result,
		Total:      len(result),
	})
}
