package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/events"
)

const (
	heartbeatInterval   = 30 * time.Second
	defaultHistoryLimit = 50
)

type balances interface {
	Add(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal) error
	Remove(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal) error
	GetAmount(ctx context.Context, symbol domain.Symbol) decimal.Decimal
	Clear(ctx context.Context) error
}

type valuations interface {
	GetRate(ctx context.Context, symbol domain.Symbol, currency string) (decimal.Decimal, error)
	GetHoldings(ctx context.Context) (domain.Holdings, error)
	Total(ctx context.Context, currency string) (decimal.Decimal, error)
	Allocation(ctx context.Context) ([]domain.Share, error)
	RateStatus() domain.RateStatus
}

type changeHistory interface {
	After(index uint64) ([]domain.BalanceChangeRecord, error)
	Last(n int) ([]domain.BalanceChangeRecord, error)
}

type balanceStream interface {
	Subscribe() chan events.BalanceEvent
	Unsubscribe(ch chan events.BalanceEvent)
}

// Server exposes the JSON API, a small HTML view and an SSE stream of balance changes.
type Server struct {
	Addr      string
	ledger    balances
	portfolio valuations
	stream    balanceStream
	history   changeHistory
	logger    *zap.Logger
}

// NewServer creates a new web server instance. stream may be nil, the SSE endpoint then answers 503.
func NewServer(addr string, ledger balances, portfolio valuations, stream balanceStream, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:      addr,
		ledger:    ledger,
		portfolio: portfolio,
		stream:    stream,
		logger:    logger.Named("web"),
	}
}

// WithHistory enables GET /api/history.
func (s *Server) WithHistory(h changeHistory) *Server {
	s.history = h
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/balance/stream", s.handleBalanceStream)

	r.Route("/api", func(r chi.Router) {
		r.Get("/holdings", s.handleHoldings)
		r.Get("/total", s.handleTotal)
		r.Get("/allocation", s.handleAllocation)
		r.Get("/rates/{symbol}", s.handleRate)
		r.Get("/history", s.handleHistory)

		r.Route("/balances", func(r chi.Router) {
			r.Delete("/", s.handleClear)
			r.Get("/{symbol}", s.handleGetBalance)
			r.Post("/{symbol}/add", s.handleAdd)
			r.Post("/{symbol}/remove", s.handleRemove)
		})
	})

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

type holdingsResponse struct {
	Holdings  domain.Holdings          `json:"holdings"`
	Logos     map[domain.Symbol]string `json:"logos"`
	Total     decimal.Decimal          `json:"total"`
	Stale     bool                     `json:"stale"`
	FetchedAt *time.Time               `json:"fetched_at"`
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.portfolio.GetHoldings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logos := make(map[domain.Symbol]string, len(holdings))
	for symbol := range holdings {
		logos[symbol] = symbol.LogoURL()
	}

	status := s.portfolio.RateStatus()
	resp := holdingsResponse{
		Holdings: holdings,
		Logos:    logos,
		Total:    holdings.Total(),
		Stale:    status.Stale,
	}
	if !status.FetchedAt.IsZero() {
		resp.FetchedAt = &status.FetchedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	currency := currencyParam(r)
	total, err := s.portfolio.Total(r.Context(), currency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currency": currency, "total": total})
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	shares, err := s.portfolio.Allocation(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if shares == nil {
		shares = []domain.Share{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"allocation": shares})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	symbol, err := domain.ParseSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	currency := currencyParam(r)

	rate, err := s.portfolio.GetRate(r.Context(), symbol, currency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "currency": currency, "rate": rate})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	symbol, err := domain.ParseSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "amount": s.ledger.GetAmount(r.Context(), symbol)})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.ledger.Add)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.ledger.Remove)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.Symbol, decimal.Decimal) error) {
	symbol, err := domain.ParseSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(domain.ErrValidation, "request body must be {\"amount\": \"<decimal>\"}"))
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := op(r.Context(), symbol, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "amount": s.ledger.GetAmount(r.Context(), symbol)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "balance journal is disabled"})
		return
	}

	var (
		records []domain.BalanceChangeRecord
		err     error
	)
	q := r.URL.Query()
	switch {
	case q.Get("after") != "":
		after, perr := strconv.ParseUint(q.Get("after"), 10, 64)
		if perr != nil {
			s.writeError(w, r, errors.Wrap(domain.ErrValidation, "after must be a journal index"))
			return
		}
		records, err = s.history.After(after)
	default:
		limit := defaultHistoryLimit
		if v := q.Get("limit"); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil || n <= 0 {
				s.writeError(w, r, errors.Wrap(domain.ErrValidation, "limit must be a positive integer"))
				return
			}
			limit = n
		}
		records, err = s.history.Last(limit)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.BalanceChangeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "balance stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// subscribe before the headers go out so no event after connect is missed
	ch := s.stream.Subscribe()
	defer s.stream.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("marshal balance event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: balance\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func currencyParam(r *http.Request) string {
	if c := r.URL.Query().Get("currency"); c != "" {
		return c
	}
	return domain.QuoteCurrency
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnsupportedSymbol),
		errors.Is(err, domain.ErrUnsupportedCurrency):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
