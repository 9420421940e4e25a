package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control server for triggering runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// One run at a time; the dedup store is the only cross-run state.
		var running atomic.Bool

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			instances := make(map[string]string)
			for id, s := range env.Health.Snapshot() {
				instances[id] = s.String()
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{
				"status":    "ok",
				"instances": instances,
			})
		})

		mux.HandleFunc("GET /state/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := env.Store.Stats(r.Context())
			if err != nil {
				http.Error(w, `{"error":"stats unavailable"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(stats)
		})

		mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
			if !running.CompareAndSwap(false, true) {
				http.Error(w, `{"error":"run already in progress"}`, http.StatusConflict)
				return
			}

			go func() {
				defer running.Store(false)
				report, err := env.Orchestrator.Run(ctx, env.Manifest.QueryList())
				if err != nil {
					zap.L().Error("triggered run failed", zap.Error(err))
					return
				}
				zap.L().Info("triggered run complete",
					zap.String("run_id", report.RunID),
					zap.Int("companies", report.Companies),
					zap.Int("emails", report.Emails))
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			drainServer(srv)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// drainServer lets in-flight requests finish before closing. The signal
// context is already cancelled when shutdown starts, so the drain needs its
// own deadline.
func drainServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
