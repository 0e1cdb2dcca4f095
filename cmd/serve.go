package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/engine"
	"github.com/sells-group/uvp-engine/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			spend, total := env.Router.Spend()
			breakers := make(map[string]string)
			for tier, state := range env.Router.Breakers().States() {
				breakers[tier] = state.String()
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"status":          "ok",
				"breakers":        breakers,
				"queue_depth":     env.Pool.Depth(),
				"spend_by_tier":   spend,
				"spend_total_usd": total,
			})
		})

		r.Post("/uvp/generate", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				URL  string `json:"url"`
				Name string `json:"name"`
				Mode string `json:"mode"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.URL == "" {
				writeError(w, http.StatusBadRequest, "url is required")
				return
			}

			run, err := env.Engine.GenerateUVP(req.Context(), model.Business{
				URL:  body.URL,
				Name: body.Name,
			}, model.SynthesisMode(body.Mode))
			if err != nil {
				zap.L().Error("generate failed", zap.String("url", body.URL), zap.Error(err))
				writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/uvp/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := env.Engine.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/uvp/{subject}/results", func(w http.ResponseWriter, req *http.Request) {
			results, err := env.Engine.QuerySynthesis(req.Context(), chi.URLParam(req, "subject"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, results)
		})

		// Server-sent events stream of enhancement updates for one subject.
		r.Get("/uvp/{subject}/updates", func(w http.ResponseWriter, req *http.Request) {
			flusher, ok := w.(http.Flusher)
			if !ok {
				writeError(w, http.StatusInternalServerError, "streaming unsupported")
				return
			}
			updates, cancel := env.Engine.Subscribe(chi.URLParam(req, "subject"))
			defer cancel()

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			flusher.Flush()

			for {
				select {
				case <-req.Context().Done():
					return
				case u, open := <-updates:
					if !open {
						return
					}
					data, err := json.Marshal(u)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "data: %s\n\n", data)
					flusher.Flush()
				}
			}
		})

		r.Delete("/uvp/{subject}/enhancements", func(w http.ResponseWriter, req *http.Request) {
			n := env.Engine.CancelEnhancements(req.Context(), chi.URLParam(req, "subject"))
			writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
		})

		r.Post("/campaigns", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				SubjectID    string `json:"subject_id"`
				ResultID     string `json:"result_id"`
				Brief        string `json:"brief"`
				Purpose      string `json:"purpose"`
				Industry     string `json:"industry"`
				PieceCount   int    `json:"piece_count"`
				DurationDays int    `json:"duration_days"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			camp, err := env.Engine.GenerateCampaign(req.Context(), engine.CampaignRequest{
				SubjectID:    body.SubjectID,
				ResultID:     body.ResultID,
				Brief:        body.Brief,
				Purpose:      model.CampaignPurpose(body.Purpose),
				Industry:     body.Industry,
				PieceCount:   body.PieceCount,
				DurationDays: body.DurationDays,
			})
			if err != nil {
				writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, camp)
		})

		r.Post("/campaigns/{id}/approve", func(w http.ResponseWriter, req *http.Request) {
			camp, err := env.Engine.ApproveCampaign(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, camp)
		})

		r.Get("/campaigns", func(w http.ResponseWriter, req *http.Request) {
			campaigns, err := env.Engine.ListCampaigns(req.Context(), req.URL.Query().Get("subject"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, campaigns)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// The signal context is already cancelled; graceful drain needs
			// its own deadline.
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
