// The results server exposes a read-only JSON browse API over the stored
// run registry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"mlhmc/domain/core"
	"mlhmc/domain/run"
	"mlhmc/internal/config"
	"mlhmc/internal/container"
	apperrors "mlhmc/internal/errors"
	"mlhmc/ports"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required: the results server browses the persistent registry")
	}

	c, err := container.New(cfg, container.Options{})
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/runs", handleListRuns(c.Registry))
	r.Get("/api/runs/{id}", handleGetRun(c.Registry))
	r.Get("/api/runs/{id}/rates", handleGetRates(c.Registry))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := &http.Server{Addr: ":" + cfg.Server.ResultsPort, Handler: r}
	go func() {
		log.Printf("Results server listening on :%s", cfg.Server.ResultsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down results server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		log.Printf("Container shutdown: %v", err)
	}
}

func handleListRuns(registry ports.RunRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := parseFilters(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		records, err := registry.ListRuns(r.Context(), filters)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"runs":  records,
			"count": len(records),
		})
	}
}

func handleGetRun(registry ports.RunRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, status, err := loadRun(registry, r)
		if err != nil {
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleGetRates(registry ports.RunRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, status, err := loadRun(registry, r)
		if err != nil {
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"run_id": rec.Manifest.RunID,
			"levels": rec.Manifest.Cycle.Levels(),
			"rates":  rec.Rates,
		})
	}
}

func loadRun(registry ports.RunRegistry, r *http.Request) (*run.Record, int, error) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	rec, err := registry.GetRun(r.Context(), id)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound || core.IsNotFoundError(err) {
			return nil, http.StatusNotFound, err
		}
		return nil, http.StatusInternalServerError, err
	}
	return rec, http.StatusOK, nil
}

func parseFilters(r *http.Request) (ports.RunFilters, error) {
	filters := ports.RunFilters{Limit: 50}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filters, errors.New("limit must be a positive integer")
		}
		filters.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filters, errors.New("offset must be a non-negative integer")
		}
		filters.Offset = n
	}
	if v := q.Get("status"); v != "" {
		if v != string(run.StatusCompleted) && v != string(run.StatusFailed) {
			return filters, errors.New("status must be completed or failed")
		}
		status := run.Status(v)
		filters.Status = &status
	}
	if v := q.Get("sweep_id"); v != "" {
		sweepID, err := core.ParseSweepID(v)
		if err != nil {
			return filters, err
		}
		filters.SweepID = &sweepID
	}

	return filters, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
