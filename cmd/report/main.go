// Package main generates a session report from archived flips.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"exchange-flip-assistant/internal/reporting"
	"exchange-flip-assistant/internal/storage/migrations"
	pgstore "exchange-flip-assistant/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	fromTime := flag.String("from-time", "", "Range start (RFC3339), default 24h ago")
	toTime := flag.String("to-time", "", "Range end (RFC3339), default now")
	outputDir := flag.String("output-dir", "output", "Directory for REPORT.md and item_metrics.csv")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	now := time.Now()
	start := now.Add(-24 * time.Hour).UnixMilli()
	end := now.UnixMilli()
	if *fromTime != "" {
		t, err := time.Parse(time.RFC3339, *fromTime)
		if err != nil {
			logger.Fatalf("parse from-time: %v", err)
		}
		start = t.UnixMilli()
	}
	if *toTime != "" {
		t, err := time.Parse(time.RFC3339, *toTime)
		if err != nil {
			logger.Fatalf("parse to-time: %v", err)
		}
		end = t.UnixMilli()
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	gen := reporting.NewGenerator(pgstore.NewFlipHistoryStore(pool))
	report, err := gen.Generate(ctx, start, end)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("create output dir: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		logger.Fatalf("write markdown: %v", err)
	}

	csvPath := filepath.Join(*outputDir, "item_metrics.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.ItemMetrics)), 0o644); err != nil {
		logger.Fatalf("write csv: %v", err)
	}

	fmt.Printf("Report written to %s and %s\n", mdPath, csvPath)
	fmt.Printf("Flips: %d completed, %d dismissed | Profit: %d coins | Win rate: %.2f%%\n",
		report.Summary.CompletedFlips, report.Summary.DismissedFlips,
		report.Summary.RealizedProfit, report.Summary.WinRate*100)
}
