package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/brokersim/internal/broker"
	"github.com/efreitasn/brokersim/internal/store"
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	b *broker.Broker,
	exch ExchangeControl,
	executions *store.ExecutionStore,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	accountH := NewAccountHandler(b)
	orderH := NewOrderHandler(b)
	exchangeH := NewExchangeHandler(b, exch)
	executionH := NewExecutionHandler(executions)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "broker": b.Name()})
	})

	// Account routes.
	r.Post("/accounts", accountH.Create)
	r.Post("/accounts/{name}/session", accountH.Session)
	r.Delete("/accounts/{name}", accountH.Delete)

	// Order routes.
	r.Post("/orders", orderH.Place)
	r.Delete("/orders/{order_id}", orderH.Cancel)
	r.Get("/symbols/{symbol}/orders", orderH.Pending)

	// Market routes.
	r.Get("/quotes/{symbol}", exchangeH.Quote)
	r.Get("/exchange/status", exchangeH.Status)
	r.Put("/exchange/status", exchangeH.SetStatus)
	r.Put("/exchange/prices/{symbol}", exchangeH.SetPrice)

	// Execution log.
	r.Get("/executions", executionH.List)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
