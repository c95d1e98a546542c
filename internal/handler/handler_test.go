package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efreitasn/brokersim/internal/broker"
	"github.com/efreitasn/brokersim/internal/exchange"
	"github.com/efreitasn/brokersim/internal/service"
	"github.com/efreitasn/brokersim/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router     http.Handler
	sim        *exchange.Simulator
	broker     *broker.Broker
	executions *store.ExecutionStore
}

func newTestEnv(t *testing.T, open bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sim, err := exchange.NewSimulator(exchange.SimulatorConfig{
		Prices: map[string]int64{"ACME": 100, "MSFT": 41000},
		Open:   open,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}

	accountStore := store.NewAccountStore()
	executions := store.NewExecutionStore()
	b, err := broker.New(broker.Config{
		Name:      "test-broker",
		Exchange:  sim,
		Accounts:  service.NewAccountService(accountStore, bcrypt.MinCost),
		Processor: service.NewExecutor(sim, accountStore, executions, logger),
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("broker.New: %v", err)
	}
	t.Cleanup(b.Close)

	return &testEnv{
		router:     NewRouter(b, sim, executions, logger),
		sim:        sim,
		broker:     b,
		executions: executions,
	}
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// expectError asserts the status code and error code of a response.
func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != code {
		t.Fatalf("expected error %q, got %q (%s)", code, resp.Error, resp.Message)
	}
}

// createAccount is a helper that creates an account via the API.
func (env *testEnv) createAccount(t *testing.T, name string, balance int64) {
	t.Helper()
	rr := env.doJSON(t, "POST", "/accounts", map[string]any{
		"name":     name,
		"password": "pw-" + name,
		"balance":  balance,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account %s: expected 201, got %d: %s", name, rr.Code, rr.Body.String())
	}
}

// placeOrder is a helper that places an order via the API and returns the response.
func (env *testEnv) placeOrder(t *testing.T, account, kind, symbol string, qty int64, trigger *int64) orderResponse {
	t.Helper()
	body := map[string]any{
		"account":  account,
		"kind":     kind,
		"symbol":   symbol,
		"quantity": qty,
	}
	if trigger != nil {
		body["trigger_price"] = *trigger
	}
	rr := env.doJSON(t, "POST", "/orders", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	decodeJSON(t, rr, &resp)
	return resp
}

func (env *testEnv) pending(t *testing.T, symbol string) pendingResponse {
	t.Helper()
	rr := env.doJSON(t, "GET", "/symbols/"+symbol+"/orders", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pending %s: expected 200, got %d: %s", symbol, rr.Code, rr.Body.String())
	}
	var resp pendingResponse
	decodeJSON(t, rr, &resp)
	return resp
}

func (env *testEnv) listExecutions(t *testing.T, query string) executionListResponse {
	t.Helper()
	rr := env.doJSON(t, "GET", "/executions"+query, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("executions: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp executionListResponse
	decodeJSON(t, rr, &resp)
	return resp
}

func price(p int64) *int64 { return &p }

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.doJSON(t, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
	if resp["broker"] != "test-broker" {
		t.Fatalf("expected broker test-broker, got %s", resp["broker"])
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected application/json, got %s", ct)
	}
}

// --- Account Endpoints ---

func TestAccount_Create_Success(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.doJSON(t, "POST", "/accounts", map[string]any{
		"name":     "alice",
		"password": "s3cret",
		"balance":  100050,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp accountResponse
	decodeJSON(t, rr, &resp)
	if resp.Name != "alice" || resp.Balance != 100050 {
		t.Fatalf("unexpected account: %+v", resp)
	}
	if resp.AccountID == "" {
		t.Fatal("expected account_id to be set")
	}
	if resp.Holdings == nil || len(resp.Holdings) != 0 {
		t.Fatalf("expected empty holdings list, got %v", resp.Holdings)
	}
}

func TestAccount_Create_Duplicate(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 0)

	rr := env.doJSON(t, "POST", "/accounts", map[string]any{"name": "alice", "password": "x", "balance": 0})
	expectError(t, rr, http.StatusConflict, "account_already_exists")
}

func TestAccount_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"invalid name", map[string]any{"name": "not valid!", "password": "pw", "balance": 0}},
		{"missing password", map[string]any{"name": "alice", "balance": 0}},
		{"negative balance", map[string]any{"name": "alice", "password": "pw", "balance": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			rr := env.doJSON(t, "POST", "/accounts", tt.body)
			expectError(t, rr, http.StatusBadRequest, "validation_error")
		})
	}
}

func TestAccount_Session(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 5000)

	rr := env.doJSON(t, "POST", "/accounts/alice/session", map[string]any{"password": "pw-alice"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp accountResponse
	decodeJSON(t, rr, &resp)
	if resp.Balance != 5000 {
		t.Fatalf("expected balance 5000, got %d", resp.Balance)
	}

	rr = env.doJSON(t, "POST", "/accounts/alice/session", map[string]any{"password": "wrong"})
	expectError(t, rr, http.StatusUnauthorized, "invalid_credentials")

	rr = env.doJSON(t, "POST", "/accounts/bob/session", map[string]any{"password": "pw-bob"})
	expectError(t, rr, http.StatusNotFound, "account_not_found")
}

func TestAccount_Delete(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 0)

	rr := env.doJSON(t, "DELETE", "/accounts/alice", map[string]any{"password": "wrong"})
	expectError(t, rr, http.StatusUnauthorized, "invalid_credentials")

	rr = env.doJSON(t, "DELETE", "/accounts/alice", map[string]any{"password": "pw-alice"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "POST", "/accounts/alice/session", map[string]any{"password": "pw-alice"})
	expectError(t, rr, http.StatusNotFound, "account_not_found")
}

func TestAccount_HoldingsAfterExecution(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 10000)
	env.placeOrder(t, "alice", "market_buy", "ACME", 3, nil)

	rr := env.doJSON(t, "POST", "/accounts/alice/session", map[string]any{"password": "pw-alice"})
	var resp accountResponse
	decodeJSON(t, rr, &resp)
	if resp.Balance != 9700 {
		t.Fatalf("expected balance 9700, got %d", resp.Balance)
	}
	if len(resp.Holdings) != 1 || resp.Holdings[0].Symbol != "ACME" || resp.Holdings[0].Quantity != 3 {
		t.Fatalf("expected 3 ACME, got %+v", resp.Holdings)
	}
}

// --- Order Endpoints ---

func TestOrder_PlaceMarket_ExecutesWhenOpen(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 100000)

	order := env.placeOrder(t, "alice", "market_buy", "ACME", 10, nil)
	if order.OrderID <= 0 {
		t.Fatalf("expected positive order_id, got %d", order.OrderID)
	}
	if order.TriggerPrice != nil {
		t.Fatalf("market order should omit trigger_price, got %d", *order.TriggerPrice)
	}

	execs := env.listExecutions(t, "")
	if execs.Total != 1 || execs.Executions[0].OrderID != order.OrderID || execs.Executions[0].Price != 100 {
		t.Fatalf("expected one execution of order %d at 100, got %+v", order.OrderID, execs)
	}
}

func TestOrder_PlaceMarket_HeldWhileClosed(t *testing.T) {
	env := newTestEnv(t, false)
	env.createAccount(t, "alice", 100000)

	order := env.placeOrder(t, "alice", "market_sell", "ACME", 2, nil)
	p := env.pending(t, "ACME")
	if len(p.Market) != 1 || p.Market[0].OrderID != order.OrderID {
		t.Fatalf("expected order %d in the market queue, got %+v", order.OrderID, p.Market)
	}
	if execs := env.listExecutions(t, ""); execs.Total != 0 {
		t.Fatalf("expected no executions while closed, got %d", execs.Total)
	}

	rr := env.doJSON(t, "PUT", "/exchange/status", map[string]any{"open": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var status statusResponse
	decodeJSON(t, rr, &status)
	if !status.Open {
		t.Fatal("expected exchange to report open")
	}

	if execs := env.listExecutions(t, ""); execs.Total != 1 {
		t.Fatalf("expected 1 execution after open, got %d", execs.Total)
	}
	if p := env.pending(t, "ACME"); len(p.Market) != 0 {
		t.Fatalf("expected empty market queue, got %+v", p.Market)
	}
}

func TestOrder_PlaceStop_TriggeredByPrice(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 100000)

	order := env.placeOrder(t, "alice", "stop_buy", "ACME", 5, price(105))
	if order.TriggerPrice == nil || *order.TriggerPrice != 105 {
		t.Fatalf("expected trigger_price 105, got %v", order.TriggerPrice)
	}
	p := env.pending(t, "ACME")
	if len(p.StopBuys) != 1 || p.StopBuys[0].OrderID != order.OrderID || p.Price != 100 {
		t.Fatalf("expected pending stop-buy at price 100, got %+v", p)
	}

	rr := env.doJSON(t, "PUT", "/exchange/prices/ACME", map[string]any{"price": 105})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	execs := env.listExecutions(t, "?account=alice")
	if execs.Total != 1 || execs.Executions[0].Price != 105 || execs.Executions[0].Kind != "stop_buy" {
		t.Fatalf("expected stop_buy executed at 105, got %+v", execs)
	}
	if p := env.pending(t, "ACME"); len(p.StopBuys) != 0 || p.Price != 105 {
		t.Fatalf("expected no pending stop-buys at price 105, got %+v", p)
	}
}

func TestOrder_Place_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"unknown kind", map[string]any{"account": "alice", "kind": "limit", "symbol": "ACME", "quantity": 1}, http.StatusBadRequest, "validation_error"},
		{"stop without trigger", map[string]any{"account": "alice", "kind": "stop_sell", "symbol": "ACME", "quantity": 1}, http.StatusBadRequest, "validation_error"},
		{"market with trigger", map[string]any{"account": "alice", "kind": "market_buy", "symbol": "ACME", "quantity": 1, "trigger_price": 10}, http.StatusBadRequest, "validation_error"},
		{"zero quantity", map[string]any{"account": "alice", "kind": "market_buy", "symbol": "ACME", "quantity": 0}, http.StatusBadRequest, "invalid_order"},
		{"missing symbol", map[string]any{"account": "alice", "kind": "market_buy", "quantity": 1}, http.StatusBadRequest, "invalid_order"},
		{"unknown symbol", map[string]any{"account": "alice", "kind": "market_buy", "symbol": "NOPE", "quantity": 1}, http.StatusNotFound, "unknown_symbol"},
		{"unknown account", map[string]any{"account": "bob", "kind": "market_buy", "symbol": "ACME", "quantity": 1}, http.StatusNotFound, "account_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			env.createAccount(t, "alice", 1000)
			rr := env.doJSON(t, "POST", "/orders", tt.body)
			expectError(t, rr, tt.status, tt.code)
		})
	}
}

func TestOrder_Cancel(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 1000)
	order := env.placeOrder(t, "alice", "stop_sell", "ACME", 1, price(90))

	rr := env.doJSON(t, "DELETE", fmt.Sprintf("/orders/%d", order.OrderID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	decodeJSON(t, rr, &resp)
	if resp.OrderID != order.OrderID || resp.Kind != "stop_sell" {
		t.Fatalf("unexpected cancelled order: %+v", resp)
	}
	if p := env.pending(t, "ACME"); len(p.StopSells) != 0 {
		t.Fatalf("expected no pending stop-sells, got %+v", p.StopSells)
	}

	rr = env.doJSON(t, "DELETE", fmt.Sprintf("/orders/%d", order.OrderID), nil)
	expectError(t, rr, http.StatusNotFound, "order_not_found")
}

func TestOrder_Cancel_InvalidID(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.doJSON(t, "DELETE", "/orders/abc", nil)
	expectError(t, rr, http.StatusBadRequest, "validation_error")
}

func TestOrder_Pending_UnknownSymbol(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.doJSON(t, "GET", "/symbols/NOPE/orders", nil)
	expectError(t, rr, http.StatusNotFound, "unknown_symbol")
}

func TestOrder_BrokerClosed(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 1000)
	env.broker.Close()

	rr := env.doJSON(t, "POST", "/orders", map[string]any{
		"account": "alice", "kind": "market_buy", "symbol": "ACME", "quantity": 1,
	})
	expectError(t, rr, http.StatusServiceUnavailable, "broker_closed")
}

// --- Exchange Endpoints ---

func TestQuote(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.doJSON(t, "GET", "/quotes/MSFT", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp quoteResponse
	decodeJSON(t, rr, &resp)
	if resp.Symbol != "MSFT" || resp.Price != 41000 {
		t.Fatalf("unexpected quote: %+v", resp)
	}

	rr = env.doJSON(t, "GET", "/quotes/NOPE", nil)
	expectError(t, rr, http.StatusNotFound, "unknown_symbol")
}

func TestExchange_Status(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.doJSON(t, "GET", "/exchange/status", nil)
	var status statusResponse
	decodeJSON(t, rr, &status)
	if !status.Open || len(status.Tickers) != 2 || status.Tickers[0] != "ACME" {
		t.Fatalf("unexpected status: %+v", status)
	}

	rr = env.doJSON(t, "PUT", "/exchange/status", map[string]any{"open": false})
	decodeJSON(t, rr, &status)
	if status.Open || env.sim.IsOpen() {
		t.Fatal("expected exchange to be closed")
	}

	rr = env.doJSON(t, "PUT", "/exchange/status", map[string]any{})
	expectError(t, rr, http.StatusBadRequest, "validation_error")
}

func TestExchange_SetPrice_Errors(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.doJSON(t, "PUT", "/exchange/prices/ACME", map[string]any{"price": 0})
	expectError(t, rr, http.StatusBadRequest, "validation_error")

	rr = env.doJSON(t, "PUT", "/exchange/prices/NOPE", map[string]any{"price": 10})
	expectError(t, rr, http.StatusNotFound, "unknown_symbol")
}

func TestExecutions_FilterByAccount(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 100000)
	env.createAccount(t, "bob", 100000)

	env.placeOrder(t, "alice", "market_buy", "ACME", 1, nil)
	env.placeOrder(t, "bob", "market_buy", "MSFT", 1, nil)
	env.placeOrder(t, "alice", "market_sell", "ACME", 1, nil)

	if all := env.listExecutions(t, ""); all.Total != 3 {
		t.Fatalf("expected 3 executions, got %d", all.Total)
	}
	alice := env.listExecutions(t, "?account=alice")
	if alice.Total != 2 {
		t.Fatalf("expected 2 executions for alice, got %d", alice.Total)
	}
	for _, e := range alice.Executions {
		if e.Account != "alice" {
			t.Fatalf("unexpected execution for %s in alice's list", e.Account)
		}
	}
	if none := env.listExecutions(t, "?account=carol"); none.Total != 0 || none.Executions == nil {
		t.Fatalf("expected empty non-null list, got %+v", none)
	}
}

// --- Content-Type Validation ---

func TestContentType_MissingOnPost(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.doRaw(t, "POST", "/accounts", "", `{"name":"alice","password":"pw","balance":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing Content-Type, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestContentType_WrongOnPut(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.doRaw(t, "PUT", "/exchange/prices/ACME", "text/plain", `{"price":10}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong Content-Type, got %d: %s", rr.Code, rr.Body.String())
	}
}

// --- Response Format Validation ---

func TestResponseFormat_SnakeCaseFields(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 1000)

	rr := env.doJSON(t, "POST", "/orders", map[string]any{
		"account": "alice", "kind": "stop_buy", "symbol": "ACME", "quantity": 1, "trigger_price": 500,
	})
	body := rr.Body.String()

	for _, field := range []string{"order_id", "trigger_price", "created_at"} {
		if !strings.Contains(body, fmt.Sprintf(`"%s"`, field)) {
			t.Fatalf("response missing snake_case field %q: %s", field, body)
		}
	}
	for _, bad := range []string{"orderId", "triggerPrice", "createdAt"} {
		if strings.Contains(body, bad) {
			t.Fatalf("response contains camelCase field %q: %s", bad, body)
		}
	}
}

func TestResponseFormat_TimestampRFC3339(t *testing.T) {
	env := newTestEnv(t, true)
	env.createAccount(t, "alice", 1000)
	order := env.placeOrder(t, "alice", "stop_buy", "ACME", 1, price(500))

	if _, err := time.Parse(time.RFC3339, order.CreatedAt); err != nil {
		t.Fatalf("created_at not RFC 3339: %s", order.CreatedAt)
	}
}
