package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	env "github.com/caarlos0/env/v11"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/alert"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
)

// alert-sink receives low balance webhooks during local development.
type sinkConfig struct {
	Addr   string `env:"ALERT_SINK_ADDR" envDefault:":8081"`
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Keep   int    `env:"ALERT_SINK_KEEP" envDefault:"100"`
}

type sink struct {
	mu       sync.Mutex
	keep     int
	received []alert.Payload
	seen     map[string]bool
}

func (s *sink) receive(w http.ResponseWriter, r *http.Request) {
	var p alert.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	duplicate := s.seen[p.EventID]
	if !duplicate {
		s.seen[p.EventID] = true
		s.received = append(s.received, p)
		if len(s.received) > s.keep {
			s.received = s.received[len(s.received)-s.keep:]
		}
	}
	s.mu.Unlock()

	slog.Info("low balance alert received",
		"event_id", p.EventID,
		"account_id", p.AccountID,
		"client_id", p.ClientID,
		"balance", p.Balance,
		"threshold", p.Threshold,
		"duplicate", duplicate,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *sink) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]alert.Payload(nil), s.received...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		slog.Error("failed to write alerts", "error", err)
	}
}

func main() {
	cfg, err := env.ParseAs[sinkConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("alert-sink", "info", cfg.AppEnv)

	s := &sink{keep: cfg.Keep, seen: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /alerts", s.receive)
	mux.HandleFunc("GET /alerts", s.list)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})

	slog.Info("alert sink started", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
