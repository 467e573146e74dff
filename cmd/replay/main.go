package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/anima-core/internal/config"
	"github.com/danielpatrickdp/anima-core/internal/logging"
	"github.com/danielpatrickdp/anima-core/internal/replay"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	jsonOut bool

	dbPath   string
	entityID string
	last     int
	outPath  string
)

// errFailed signals unmet expectations after the table has been printed.
var errFailed = errors.New("replay has failing steps")

// #region commands
var rootCmd = &cobra.Command{
	Use:          "replay",
	Short:        "Replay recorded entity sessions",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run <fixture.json>",
	Short: "Replay a fixture and check its expectations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		f, err := replay.LoadFixture(args[0])
		if err != nil {
			return err
		}
		log := logging.New(cfg.ToLoggingConfig())

		results, err := replay.Run(context.Background(), f, cfg.ToEngineConfig(), &log)
		if err != nil {
			return err
		}
		summary := replay.Summarize(results)
		if jsonOut {
			if err := printJSON(struct {
				Results []replay.Result `json:"results"`
				Summary replay.Summary  `json:"summary"`
			}{results, summary}); err != nil {
				return err
			}
		} else {
			printResults(f, results, summary)
		}
		if summary.Failed > 0 {
			return errFailed
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build a fixture from an entity's provenance log",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		f, err := replay.ExportFixture(store.DB(), entityID, last)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal fixture: %w", err)
		}
		data = append(data, '\n')
		if outPath == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write fixture: %w", err)
		}
		fmt.Fprintf(os.Stderr, "exported %d steps to %s\n", len(f.Steps), outPath)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&cfgFile, "config", "", "YAML config providing engine defaults")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	exportCmd.Flags().StringVar(&dbPath, "db", "", "path to the anima SQLite store")
	exportCmd.Flags().StringVar(&entityID, "entity", "", "entity to export")
	exportCmd.Flags().IntVar(&last, "last", 50, "export the N most recent updates")
	exportCmd.Flags().StringVar(&outPath, "out", "", "output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("db")
	_ = exportCmd.MarkFlagRequired("entity")

	rootCmd.AddCommand(runCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion commands

// #region output
func printResults(f *replay.Fixture, results []replay.Result, s replay.Summary) {
	if f.Description != "" {
		fmt.Printf("Fixture: %s\n", f.Description)
	}
	fmt.Printf("Entity:  %s (seed %d)\n\n", f.EntityID, f.Seed)

	fmt.Printf("%4s  %8s  %-11s  %-15s  %-9s  %8s  %6s  %s\n",
		"Step", "At (ms)", "Kind", "Stage", "Status", "Progress", "Mean", "Result")
	fmt.Printf("%4s+-%8s+-%-11s+-%-15s+-%-9s+-%8s+-%6s+-%s\n",
		"----", "--------", "-----------", "---------------", "---------", "--------", "------", "------")
	for _, r := range results {
		outcome := "ok"
		switch {
		case r.Err != "":
			outcome = "error: " + r.Err
		case !r.Passed():
			outcome = fmt.Sprintf("FAIL %v", r.Failures)
		case r.Report.Degraded:
			outcome = "degraded"
		}
		fmt.Printf("%4d  %8d  %-11s  %-15s  %-9s  %8.3f  %6.3f  %s\n",
			r.Index, r.AtMs, r.Kind, r.Report.Stage, r.Report.Status,
			r.Report.Progress, r.Report.Metrics.Mean(), outcome)
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Steps:        %d (%d interact, %d tick, %d forced)\n", s.Steps, s.Interactions, s.Ticks, s.Forced)
	fmt.Printf("  Degraded:     %d\n", s.Degraded)
	fmt.Printf("  Errors:       %d\n", s.Errors)
	fmt.Printf("  Failed:       %d\n", s.Failed)
	fmt.Printf("  Final stage:  %s\n", s.FinalStage)
	fmt.Printf("  Final mean:   %.4f\n", s.FinalMetrics.Mean())
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
