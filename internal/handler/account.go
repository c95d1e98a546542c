package handler

import (
	"net/http"
	"sort"

	"github.com/efreitasn/brokersim/internal/broker"
	"github.com/efreitasn/brokersim/internal/service"
	"github.com/go-chi/chi/v5"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	broker *broker.Broker
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(b *broker.Broker) *AccountHandler {
	return &AccountHandler{broker: b}
}

// createAccountRequest is the JSON request body for POST /accounts.
type createAccountRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Balance  int64  `json:"balance"`
}

// credentialsRequest carries the password for session and delete requests.
type credentialsRequest struct {
	Password string `json:"password"`
}

// accountResponse is the JSON view of an account. Money is in cents.
type accountResponse struct {
	AccountID string            `json:"account_id"`
	Name      string            `json:"name"`
	Balance   int64             `json:"balance"`
	Holdings  []holdingResponse `json:"holdings"`
	CreatedAt string            `json:"created_at"`
}

// holdingResponse is a single position in the account response.
type holdingResponse struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// Create handles POST /accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	view, err := h.broker.CreateAccount(req.Name, req.Password, req.Balance)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildAccountResponse(view))
}

// Session handles POST /accounts/{name}/session.
func (h *AccountHandler) Session(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	view, err := h.broker.GetAccount(chi.URLParam(r, "name"), req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAccountResponse(view))
}

// Delete handles DELETE /accounts/{name}.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.broker.DeleteAccount(chi.URLParam(r, "name"), req.Password); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildAccountResponse(v *service.AccountView) accountResponse {
	holdings := make([]holdingResponse, 0, len(v.Holdings))
	for symbol, qty := range v.Holdings {
		holdings = append(holdings, holdingResponse{Symbol: symbol, Quantity: qty})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })

	return accountResponse{
		AccountID: v.AccountID,
		Name:      v.Name,
		Balance:   v.Balance,
		Holdings:  holdings,
		CreatedAt: v.CreatedAt.UTC().Format(timeFormat),
	}
}
