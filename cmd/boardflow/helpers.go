package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/retailops/boardflow"
	"github.com/retailops/boardflow/confidence"
	"github.com/retailops/boardflow/flowspec"
	"github.com/retailops/boardflow/logging"
	"github.com/retailops/boardflow/server"
	"github.com/retailops/boardflow/stage"
)

// defaultSnapshot is a healthy demo quarter used when no fixture is given.
func defaultSnapshot() *stage.Snapshot {
	return &stage.Snapshot{
		PeriodStart:       "2025-01-01",
		PeriodEnd:         "2025-03-31",
		NetRevenue:        1250000,
		GrossProfit:       287500,
		COGS:              962500,
		DiscountRatePct:   6.5,
		ReturnsPct:        2.1,
		UnitsSold:         48200,
		Transactions:      9100,
		AvgBasketValue:    137.36,
		RepeatRatePct:     44.0,
		ActivePromotions:  4,
		InventoryDays:     52,
		DataHealthScore:   94,
		DataFreshnessDays: 1,
		SKUCoveragePct:    97.5,
		MarginTrend:       "FLAT",
		RevenueTrend:      "UP",
		BasketTrend:       "UP",
	}
}

// factorsFromSnapshot derives the five gate factors from the platform section
// of the snapshot, so fixture files drive both the gate and the stages.
func factorsFromSnapshot(s *stage.Snapshot) confidence.Factors {
	freshness := 100 - s.DataFreshnessDays*10
	if freshness < 0 {
		freshness = 0
	}
	return confidence.Factors{
		Freshness:    freshness,
		HealthChecks: s.DataHealthScore,
		DataQuality:  s.DataHealthScore,
		Coverage:     s.SKUCoveragePct,
		Integrity:    s.DataHealthScore,
	}
}

func buildLogger() logging.Logger {
	level := slog.LevelInfo
	switch flagLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return logging.New(&logging.Config{Level: level, Format: "text", Output: os.Stderr})
}

// buildEngine wires registry, fixtures, gate and orchestrator from the
// persistent flags.
func buildEngine() (*boardflow.Boardflow, error) {
	timeout, err := time.ParseDuration(flagTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid --timeout: %w", err)
	}

	snap := defaultSnapshot()
	if flagFixtures != "" {
		snap, err = stage.LoadSnapshot(flagFixtures)
		if err != nil {
			return nil, err
		}
	}

	registry := flowspec.NewRegistry()
	if flagFlows != "" {
		if err := registry.LoadOverlay(flagFlows); err != nil {
			return nil, err
		}
	}

	return boardflow.New(func(o *boardflow.Options) {
		o.Registry = registry
		o.Source = &stage.StaticSource{Data: snap}
		o.Check = confidence.StaticCheck{Factors: factorsFromSnapshot(snap)}
		o.StageTimeout = timeout
		o.Logger = buildLogger()
		o.OnEventDropped = server.EventDropped
	}), nil
}
