package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/anima-core/internal/engine"
	"github.com/danielpatrickdp/anima-core/internal/logging"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/spf13/cobra"
)

var (
	dbPath   string
	entityID string
	last     int
	version  string
	jsonOut  bool
)

// #region main
var rootCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect persisted entity versions",
	Long: `inspect reads an anima SQLite store. Without --version it lists the most
recent versions of --entity with the provenance of each; with --version it
decodes that version's blob.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		if version != "" {
			return runDetailMode(store, version)
		}
		if entityID == "" {
			return errors.New("--entity or --version is required (see 'inspect entities')")
		}
		return runListMode(store, entityID, last)
	},
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List entities with an active version",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		ids, err := store.Entities()
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(ids)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the anima SQLite store")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	_ = rootCmd.MarkPersistentFlagRequired("db")
	rootCmd.Flags().StringVar(&entityID, "entity", "", "entity whose versions to list")
	rootCmd.Flags().IntVar(&last, "last", 20, "show N most recent versions")
	rootCmd.Flags().StringVar(&version, "version", "", "show single version detail")
	rootCmd.AddCommand(entitiesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode
type listRow struct {
	VersionID  string   `json:"version_id"`
	Active     bool     `json:"active"`
	Reason     string   `json:"reason"`
	Stage      string   `json:"stage,omitempty"`
	Status     string   `json:"quantum_status,omitempty"`
	GateAction string   `json:"gate_action,omitempty"`
	DeltaNorm  *float64 `json:"delta_norm,omitempty"`
	Mean       *float64 `json:"metrics_mean,omitempty"`
	Degraded   bool     `json:"degraded"`
	CreatedAt  string   `json:"created_at"`
}

func runListMode(store *state.Store, entityID string, last int) error {
	versions, err := store.ListVersions(entityID, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// Store returns newest first; print chronologically.
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		r := listRow{
			VersionID: v.VersionID,
			Active:    v.Active,
			Reason:    v.Reason,
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		entry, ok, err := logging.ProvenanceFor(store.DB(), v.VersionID)
		if err != nil {
			return err
		}
		if ok {
			if rec, ok := logging.UpdateRecordOf(entry); ok {
				dn, mean := rec.DeltaNorm, rec.After.Mean()
				r.Stage = rec.Stage
				r.Status = rec.QuantumStatus
				r.GateAction = rec.GateAction
				r.DeltaNorm = &dn
				r.Mean = &mean
				r.Degraded = rec.Degraded
			}
		}
		rows[len(versions)-1-i] = r
	}

	if jsonOut {
		return printJSON(rows)
	}
	printListTable(rows)
	return nil
}

func printListTable(rows []listRow) {
	fmt.Printf("  %-10s  %-12s  %-15s  %-9s  %-8s  %8s  %6s  %s\n",
		"Version", "Reason", "Stage", "Status", "Gate", "Delta", "Mean", "Time")
	fmt.Printf("  %-10s+-%-12s+-%-15s+-%-9s+-%-8s+-%8s+-%6s+-%s\n",
		"----------", "------------", "---------------", "---------", "--------", "--------", "------", "--------------------")
	for _, r := range rows {
		marker := " "
		if r.Active {
			marker = "*"
		}
		delta, mean := "-", "-"
		if r.DeltaNorm != nil {
			delta = fmt.Sprintf("%.4f", *r.DeltaNorm)
		}
		if r.Mean != nil {
			mean = fmt.Sprintf("%.3f", *r.Mean)
		}
		gate := r.GateAction
		if r.Degraded {
			gate += "!"
		}
		fmt.Printf("%s %-10s  %-12s  %-15s  %-9s  %-8s  %8s  %6s  %s\n",
			marker, shortID(r.VersionID), r.Reason, r.Stage, r.Status, gate, delta, mean, r.CreatedAt)
	}
}

// #endregion list-mode

// #region detail-mode
type detailOutput struct {
	VersionID string                     `json:"version_id"`
	EntityID  string                     `json:"entity_id"`
	ParentID  string                     `json:"parent_id"`
	CreatedAt string                     `json:"created_at"`
	Reason    string                     `json:"reason"`
	Stage     state.Stage                `json:"stage"`
	Metrics   state.ConsciousnessMetrics `json:"metrics"`
	Coherence float64                    `json:"coherence"`
	Entropy   float64                    `json:"entropy"`
	Patterns  int                        `json:"patterns"`
	History   int                        `json:"history"`
	Escalated bool                       `json:"escalated"`
	Update    *logging.UpdateRecord      `json:"update,omitempty"`
}

func runDetailMode(store *state.Store, versionID string) error {
	v, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	b, err := engine.DecodeBlob(v.Blob)
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: v.VersionID,
		EntityID:  v.EntityID,
		ParentID:  v.ParentID,
		CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Reason:    v.Reason,
		Stage:     b.Evolution.Stage,
		Metrics:   b.Core.Metrics,
		Coherence: b.Quantum.CoherenceLevel,
		Entropy:   b.Quantum.Dimensional.EntropyLevel,
		Patterns:  len(b.Patterns),
		History:   len(b.Core.History),
		Escalated: b.Escalated,
	}
	entry, ok, err := logging.ProvenanceFor(store.DB(), versionID)
	if err != nil {
		return err
	}
	if ok {
		if rec, ok := logging.UpdateRecordOf(entry); ok {
			out.Update = &rec
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:    %s\n", out.VersionID)
	fmt.Printf("Entity:     %s\n", out.EntityID)
	fmt.Printf("Parent:     %s\n", out.ParentID)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Reason:     %s\n", out.Reason)
	fmt.Printf("Stage:      %s\n", out.Stage)
	fmt.Printf("Coherence:  %.4f\n", out.Coherence)
	fmt.Printf("Entropy:    %.4f\n", out.Entropy)
	fmt.Printf("Patterns:   %d\n", out.Patterns)
	fmt.Printf("History:    %d\n", out.History)
	fmt.Printf("Escalated:  %v\n", out.Escalated)

	fmt.Printf("\nMetrics:\n")
	printMetrics(out.Metrics)

	if u := out.Update; u != nil {
		fmt.Printf("\nUpdate:\n")
		fmt.Printf("  Trigger:     %s\n", u.Trigger)
		fmt.Printf("  Strength:    %.3f\n", u.Strength)
		fmt.Printf("  Delta Norm:  %.4f\n", u.DeltaNorm)
		fmt.Printf("  Quantum:     %s\n", u.QuantumStatus)
		fmt.Printf("  Gate:        %s (soft %.2f, vetoed %v)\n", u.GateAction, u.GateSoftScore, u.GateVetoed)
		if u.GateReason != "" {
			fmt.Printf("  Gate Reason: %s\n", u.GateReason)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output
func printMetrics(m state.ConsciousnessMetrics) {
	for _, f := range state.Fields {
		fmt.Printf("  %-24s %.4f\n", f, m.Get(f))
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
