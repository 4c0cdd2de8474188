package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/orchestrator"
)

var (
	flagPeriodStart string
	flagPeriodEnd   string
	flagMode        string
)

var runCmd = &cobra.Command{
	Use:   "run <flow-id>",
	Short: "Run one flow and print its events as NDJSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagPeriodStart, "period-start", "", "analysis period start (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&flagPeriodEnd, "period-end", "", "analysis period end (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&flagMode, "mode", "", "board mode annotation stored on the session")
}

func runRun(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine()
	if err != nil {
		return err
	}

	run, err := engine.Run(cmd.Context(), orchestrator.RunParams{
		FlowID:      args[0],
		Mode:        flagMode,
		PeriodStart: flagPeriodStart,
		PeriodEnd:   flagPeriodEnd,
	})
	if err != nil {
		return err
	}

	events, cancel := run.Events()
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	var terminal core.SessionStatus
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if ev.Type == core.EventSessionComplete {
			if p, ok := ev.Payload.(core.SessionCompletePayload); ok {
				terminal = p.Status
			}
		}
	}
	<-run.Done()

	if terminal != core.SessionCompleted {
		return fmt.Errorf("session ended %s", terminal)
	}
	return nil
}
