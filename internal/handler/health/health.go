package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type Handler struct {
	checks   map[string]Checker
	optional map[string]bool
	logger   *slog.Logger
}

type Option func(*Handler)

// Optional marks a check whose failure degrades the service without taking
// it down: the endpoint still answers 200.
func Optional(name string) Option {
	return func(h *Handler) { h.optional[name] = true }
}

func NewHandler(logger *slog.Logger, checks map[string]Checker, opts ...Option) *Handler {
	h := &Handler{checks: checks, optional: map[string]bool{}, logger: logger}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type result struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]result `json:"checks"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var (
		mu   sync.Mutex
		resp = response{Status: "ok", Checks: make(map[string]result, len(h.checks))}
		down bool
		g    errgroup.Group
	)

	for name, c := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			res := result{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				h.logger.Error("health check failed", "name", name, "error", err)
				res.Status = "error"
			}

			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = res
			if err != nil {
				if h.optional[name] {
					if resp.Status == "ok" {
						resp.Status = "degraded"
					}
				} else {
					down = true
				}
			}
			return nil
		})
	}
	g.Wait()

	status := http.StatusOK
	if down {
		resp.Status = "down"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
