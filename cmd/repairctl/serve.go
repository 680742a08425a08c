package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/simjay/celor/pkg/metrics"
)

// handleServe runs the ops HTTP surface for long-running deployments:
// /healthz, /metrics, and a read-only bank summary. Repairs themselves
// stay on the CLI/watch surfaces; the server exists for observability.
func handleServe(ctx context.Context, configPath string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", "", "Listen address (default from config, e.g. :8090)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	listen := rt.cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}
	metrics.SetBankSize(rt.bank.Len())

	r := mux.NewRouter()
	r.HandleFunc("/healthz", metrics.InFlightHandler("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"version": buildVersion,
		})
	})).Methods(http.MethodGet)
	r.HandleFunc("/bank", metrics.InFlightHandler("/bank", func(w http.ResponseWriter, _ *http.Request) {
		type summary struct {
			Signature    string    `json:"signature"`
			SuccessCount int       `json:"success_count"`
			LastUsed     time.Time `json:"last_used"`
		}
		entries := rt.bank.List()
		out := make([]summary, len(entries))
		for i, e := range entries {
			out[i] = summary{Signature: e.Signature.Key(), SuccessCount: e.SuccessCount, LastUsed: e.LastUsed}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log := rt.log.WithComponent("serve")
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.WithField("addr", listen).Info("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	log.Info("stopped")
	return nil
}
