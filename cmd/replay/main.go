// Package main replays a recorded session log through the engine and
// verifies ledger invariants over the resulting flips.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"exchange-flip-assistant/internal/assistant"
	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/engine"
	"exchange-flip-assistant/internal/ledger"
	"exchange-flip-assistant/internal/replay"
	"exchange-flip-assistant/internal/storage/memory"
	"exchange-flip-assistant/internal/verification"
)

func main() {
	logFile := flag.String("log", "", "Session log file in JSON-lines format (required)")
	taxRateBps := flag.Int("tax-rate-bps", domain.DefaultTaxRateBps, "Sale tax in basis points")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if *logFile == "" {
		logger.Fatal("--log is required")
	}

	src, err := os.Open(*logFile)
	if err != nil {
		logger.Fatalf("open session log: %v", err)
	}
	defer src.Close()

	historyStore := memory.NewFlipHistoryStore()
	eng := engine.New(engine.Options{
		Ledger:       ledger.New(ledger.Options{TaxRateBps: *taxRateBps, Logger: logger}),
		Assistant:    assistant.New(assistant.Options{}),
		HistoryStore: historyStore,
		FillStore:    memory.NewFillPointStore(),
		Logger:       logger,
	})

	adapter := &engineAdapter{engine: eng}
	runner := replay.NewRunner()

	ctx := context.Background()
	start := time.Now()
	if err := runner.Run(ctx, src, adapter); err != nil {
		logger.Fatalf("replay failed: %v", err)
	}

	// Verify invariants over live and archived flips
	flips := eng.Flips()
	archived, err := historyStore.GetByTimeRange(ctx, 0, time.Now().UnixMilli())
	if err != nil {
		logger.Fatalf("load archived flips: %v", err)
	}
	report := verification.VerifyFlips(append(flips, archived...))

	stats := replayStats{
		Frames:         adapter.frames,
		LiveFlips:      len(flips),
		ArchivedFlips:  len(archived),
		Violations:     len(report.Violations),
		ElapsedMs:      time.Since(start).Milliseconds(),
		InvariantsHeld: report.Clean(),
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("\n=== Replay Summary ===\n")
		fmt.Printf("Frames:          %d\n", stats.Frames)
		fmt.Printf("Live Flips:      %d\n", stats.LiveFlips)
		fmt.Printf("Archived Flips:  %d\n", stats.ArchivedFlips)
		fmt.Printf("Violations:      %d\n", stats.Violations)
		fmt.Printf("Elapsed:         %dms\n", stats.ElapsedMs)
		for _, v := range report.Violations {
			fmt.Printf("  VIOLATION %s flip=%s: %s\n", v.Rule, v.FlipID, v.Detail)
		}
	}

	if !report.Clean() {
		os.Exit(1)
	}
}

// replayStats holds replay statistics.
type replayStats struct {
	Frames         int   `json:"frames"`
	LiveFlips      int   `json:"live_flips"`
	ArchivedFlips  int   `json:"archived_flips"`
	Violations     int   `json:"violations"`
	ElapsedMs      int64 `json:"elapsed_ms"`
	InvariantsHeld bool  `json:"invariants_held"`
}

// engineAdapter drives the live engine from recorded frames.
type engineAdapter struct {
	engine *engine.Engine
	frames int
}

func (a *engineAdapter) OnSlotSnapshot(ctx context.Context, snap domain.SlotSnapshot) error {
	a.frames++
	a.engine.OnSlotSnapshot(ctx, snap)
	return nil
}

func (a *engineAdapter) OnWidgetSnapshot(_ context.Context, w domain.WidgetSnapshot) error {
	a.frames++
	a.engine.OnWidgetSnapshot(w)
	return nil
}

func (a *engineAdapter) OnRecommendations(_ context.Context, recs []domain.Recommendation) error {
	a.frames++
	a.engine.SetRecommendations(recs)
	return nil
}

// Ensure engineAdapter implements replay.SessionEngine
var _ replay.SessionEngine = (*engineAdapter)(nil)
