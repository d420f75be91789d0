// Package main runs the live flip assistant: it connects to the host
// bridge feed, drives the engine from slot and widget snapshots, archives
// terminal flips, and exposes a small HTTP control surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"exchange-flip-assistant/internal/assistant"
	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/engine"
	"exchange-flip-assistant/internal/feed"
	"exchange-flip-assistant/internal/ledger"
	"exchange-flip-assistant/internal/observability"
	"exchange-flip-assistant/internal/storage"
	chstore "exchange-flip-assistant/internal/storage/clickhouse"
	"exchange-flip-assistant/internal/storage/memory"
	"exchange-flip-assistant/internal/storage/migrations"
	pgstore "exchange-flip-assistant/internal/storage/postgres"
)

// Server holds the live assistant's components.
type Server struct {
	engine *engine.Engine
	feed   *feed.Client
	logger *logrus.Logger

	mu      sync.Mutex
	started time.Time
	ticks   int64
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_ENDPOINT"), "Host bridge WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for flip history")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for fill points")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	taxRateBps := flag.Int("tax-rate-bps", domain.DefaultTaxRateBps, "Sale tax in basis points")
	priceOffset := flag.Int64("price-offset", 1, "Coins added to buy / subtracted from sell auto-fill prices")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/metrics/status/control")

	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	historyStore, fillStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	eng := engine.New(engine.Options{
		Ledger:       ledger.New(ledger.Options{TaxRateBps: *taxRateBps, Logger: logger}),
		Assistant:    assistant.New(assistant.Options{PriceOffset: *priceOffset}),
		HistoryStore: historyStore,
		FillStore:    fillStore,
		Logger:       logger,
	})
	eng.OnChange(func(c domain.FlipChange) {
		logger.WithFields(logrus.Fields{
			"flip": c.FlipID,
			"item": c.ItemID,
			"from": c.OldStatus,
			"to":   c.NewStatus,
		}).Info("flip changed")
	})

	client, err := feed.NewClient(ctx, *feedEndpoint, nil, logger)
	if err != nil {
		logger.Fatalf("Failed to connect feed: %v", err)
	}
	defer client.Close()

	server := &Server{
		engine:  eng,
		feed:    client,
		logger:  logger,
		started: time.Now(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, shutting down", sig)
		cancel()
	}()

	go server.startHTTPServer(*httpAddr)

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Info("Shutdown complete")
}

// createStores creates the retention stores and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.FlipHistoryStore, storage.FillPointStore, func(), error) {
	if useMemory {
		return memory.NewFlipHistoryStore(), memory.NewFillPointStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewFlipHistoryStore(pool), chstore.NewFillPointStore(chConn), cleanup, nil
}

// Run pumps feed messages into the engine until the context ends or the
// feed closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Assistant running")

	slots := s.feed.SlotSnapshots()
	widgets := s.feed.WidgetSnapshots()
	recs := s.feed.Recommendations()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-slots:
			if !ok {
				return fmt.Errorf("feed closed")
			}
			s.engine.OnSlotSnapshot(ctx, snap)
			s.mu.Lock()
			s.ticks++
			s.mu.Unlock()
			observability.UpdateLiveFlips(len(s.engine.Flips()))

		case w, ok := <-widgets:
			if !ok {
				return fmt.Errorf("feed closed")
			}
			s.engine.OnWidgetSnapshot(w)

		case rs, ok := <-recs:
			if !ok {
				return fmt.Errorf("feed closed")
			}
			s.engine.SetRecommendations(rs)
			s.logger.WithField("count", len(rs)).Info("recommendations updated")
		}
	}
}

// startHTTPServer serves health, metrics, status and the control API.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/flips", s.handleFlips)

	// User intents
	mux.HandleFunc("/accept", s.handleAccept)
	mux.HandleFunc("/focus", s.handleFocus)
	mux.HandleFunc("/unfocus", s.handleUnfocus)
	mux.HandleFunc("/dismiss", s.handleDismiss)
	mux.HandleFunc("/autofill", s.handleAutofill)

	s.logger.Infof("HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Errorf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Ticks     int64  `json:"ticks"`
	LiveFlips int    `json:"live_flips"`
	Session   *Step  `json:"session,omitempty"`
}

// Step describes the active guided session.
type Step struct {
	FlipID string `json:"flip_id"`
	Step   string `json:"step"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ticks := s.ticks
	uptime := time.Since(s.started)
	s.mu.Unlock()

	resp := StatusResponse{
		Status:    "running",
		Uptime:    uptime.String(),
		Ticks:     ticks,
		LiveFlips: len(s.engine.Flips()),
	}
	if sess := s.engine.Session(); sess != nil {
		resp.Session = &Step{FlipID: sess.FlipID, Step: string(sess.Step)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlips(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Flips())
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(r.URL.Query().Get("item_id"))
	if err != nil {
		http.Error(w, "item_id required", http.StatusBadRequest)
		return
	}
	flip, ok := s.engine.AcceptRecommendation(itemID, time.Now().UnixMilli())
	if !ok {
		http.Error(w, "no standing recommendation for item", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, flip)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	flipID := r.URL.Query().Get("flip_id")
	if err := s.engine.Focus(flipID, time.Now().UnixMilli()); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUnfocus(w http.ResponseWriter, _ *http.Request) {
	s.engine.Unfocus()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	flipID := r.URL.Query().Get("flip_id")
	if err := s.engine.Dismiss(r.Context(), flipID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAutofill(w http.ResponseWriter, _ *http.Request) {
	cmd, err := s.engine.RequestAutoFill()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
