package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SPMStrategies/Candidate-Database/internal/pipeline"
	"github.com/SPMStrategies/Candidate-Database/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review and ingest webhook server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipe, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r := newServeRouter(ctx, pipe, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newServeRouter builds the HTTP API: health, review-queue access, and the
// async ingest webhook.
func newServeRouter(ctx context.Context, pipe *pipeline.Pipeline, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/reviews", func(w http.ResponseWriter, req *http.Request) {
		limit := 50
		if q := req.URL.Query().Get("limit"); q != "" {
			fmt.Sscanf(q, "%d", &limit) //nolint:errcheck
		}

		items, err := st.PendingReviews(req.Context(), limit)
		if err != nil {
			zap.L().Error("list reviews failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list reviews failed"})
			return
		}
		writeJSON(w, http.StatusOK, items)
	})

	r.Post("/reviews/{id}/approve", resolveReviewHandler(pipe, true))
	r.Post("/reviews/{id}/reject", resolveReviewHandler(pipe, false))

	r.Post("/webhook/ingest", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			State    string `json:"state"`
			DryRun   bool   `json:"dry_run"`
			UseCache bool   `json:"use_cache"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		src, err := newSource(body.State)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		// Run ingestion asynchronously; the run record carries the outcome.
		// Detached from the server context so shutdown doesn't abort a run
		// mid-write and strand it in the running state.
		runCtx := context.WithoutCancel(ctx)
		go func() {
			stats, err := pipe.Run(runCtx, src, pipeline.Options{DryRun: body.DryRun, UseCache: body.UseCache})
			if err != nil {
				zap.L().Error("webhook ingest failed",
					zap.String("state", src.State()),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook ingest complete",
				zap.String("state", src.State()),
				zap.Int("new", stats.NewCandidates),
				zap.Int("updated", stats.UpdatedCandidates),
				zap.Int("review", stats.ReviewCandidates),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"state":  src.State(),
		})
	})

	return r
}

func resolveReviewHandler(pipe *pipeline.Pipeline, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ResolvedBy string `json:"resolved_by"`
		}
		if req.Body != nil {
			json.NewDecoder(req.Body).Decode(&body) //nolint:errcheck
		}

		item, err := pipe.ResolveReview(req.Context(), chi.URLParam(req, "id"), approve, body.ResolvedBy)
		if err != nil {
			zap.L().Error("resolve review failed", zap.Error(err))
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
