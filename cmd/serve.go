package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsyte-agents/auction-sync/internal/model"
	"github.com/nsyte-agents/auction-sync/internal/reconcile"
	"github.com/nsyte-agents/auction-sync/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reconciled table and accept outcome webhooks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := initReconciler(ctx, st)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, rec),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(st store.Store, rec *reconcile.Reconciler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/rows", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RowFilter{
			Zone:   strings.ToUpper(req.URL.Query().Get("zone")),
			State:  strings.ToUpper(req.URL.Query().Get("state")),
			SoldTo: model.BuyerType(req.URL.Query().Get("sold_to")),
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			filter.Limit = n
		}
		if v := req.URL.Query().Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
				return
			}
			filter.Offset = n
		}

		rows, err := st.ListRows(req.Context(), filter)
		if err != nil {
			zap.L().Error("list rows", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}
		if rows == nil {
			rows = []model.ReconciledRow{}
		}
		writeJSON(w, http.StatusOK, rows)
	})

	r.Get("/rows/{propertyID}", func(w http.ResponseWriter, req *http.Request) {
		row, ok := rec.Get(chi.URLParam(req, "propertyID"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "property not found"})
			return
		}
		writeJSON(w, http.StatusOK, row)
	})

	r.Post("/webhook/outcome", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			PropertyID string `json:"property_id"`
			Address    string `json:"address"`
			SoldTo     string `json:"sold_to"`
			FinalBid   *int64 `json:"final_bid_cents"`
			ObservedAt string `json:"observed_at"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		id := in.PropertyID
		if id == "" && in.Address != "" {
			id = model.PropertyID(in.Address)
		}

		observedAt := time.Now().UTC()
		if in.ObservedAt != "" {
			t, err := time.Parse(time.RFC3339, in.ObservedAt)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid observed_at"})
				return
			}
			observedAt = t
		}

		outcome := model.OutcomeRecord{
			PropertyID: id,
			Address:    in.Address,
			SoldTo:     model.BuyerType(in.SoldTo),
			FinalBid:   in.FinalBid,
			ObservedAt: observedAt,
		}

		if err := rec.IngestOutcome(outcome); err != nil {
			switch {
			case errors.Is(err, reconcile.ErrInvalidAmount),
				errors.Is(err, reconcile.ErrInvalidBuyer),
				errors.Is(err, reconcile.ErrEmptyPropertyID):
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			case errors.Is(err, reconcile.ErrUnknownProperty):
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			default:
				zap.L().Error("webhook ingest", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
			}
			return
		}

		row, _ := rec.Get(id)
		if err := st.UpsertRows(req.Context(), []model.ReconciledRow{row}); err != nil {
			zap.L().Error("persist webhook row", zap.String("property_id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "persist failed"})
			return
		}

		writeJSON(w, http.StatusOK, row)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
