package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/codec"
	"github.com/danielpatrickdp/anima-core/internal/config"
	"github.com/danielpatrickdp/anima-core/internal/engine"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/logging"
	"github.com/danielpatrickdp/anima-core/internal/metrics"
	"github.com/danielpatrickdp/anima-core/internal/signals"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	entityID    string
	dbOverride  string
	gatewayAddr string
	metricsAddr string
)

// #region commands
var rootCmd = &cobra.Command{
	Use:   "controller",
	Short: "Interactive driver for anima entities",
	Long: `controller runs one or more entities in-process and reads interactions
from stdin. Lines starting with ':' are commands (:help lists them); any other
line is sent to the current entity as an interaction.

Configuration is read from --config (YAML) and ANIMA_* environment variables,
e.g. ANIMA_STORE_PATH, ANIMA_GATEWAY_ADDRESS, ANIMA_LOGGING_LEVEL.`,
	RunE:         runREPL,
	SilenceUsage: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the default configuration as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(args[0]); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", args[0])
		}
		if err := config.WriteDefault(args[0]); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", args[0])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printJSON(cfg)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		fmt.Println("configuration ok")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "SQLite path (overrides store.path)")
	rootCmd.PersistentFlags().StringVar(&gatewayAddr, "gateway", "", "quantum field gateway address (overrides gateway.address)")
	rootCmd.Flags().StringVar(&entityID, "entity", "anima", "entity to drive")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if dbOverride != "" {
		cfg.Store.Path = dbOverride
	}
	if gatewayAddr != "" {
		cfg.Gateway.Address = gatewayAddr
	}
	return cfg, nil
}

// #endregion commands

// #region runtime
type runtime struct {
	cfg      config.Config
	log      zerolog.Logger
	store    *state.Store
	client   *codec.FieldClient
	metrics  *metrics.Collector
	registry *engine.Registry
}

func newRuntime(cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: logging.New(cfg.ToLoggingConfig())}
	rt.metrics = metrics.NewCollector(cfg.Metrics.Namespace)

	deps := engine.Deps{Metrics: rt.metrics, Logger: &rt.log}
	if cfg.Store.Path != "" {
		store, err := state.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		rt.store = store
		deps.Store = store
	}
	if cfg.Gateway.Address != "" {
		client, err := codec.NewFieldClient(cfg.Gateway.Address, cfg.ToClientConfig(), &rt.log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect gateway: %w", err)
		}
		rt.client = client
		deps.Gateway = client
	}
	rt.registry = engine.NewRegistry(cfg.ToEngineConfig(), deps)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.client != nil {
		rt.client.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

// start runs the tick loop and, when addr is set, the metrics server. The
// returned wait blocks until both have exited after ctx is done.
func (rt *runtime) start(ctx context.Context, addr string) (wait func()) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.tickLoop(ctx)
	}()
	if addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.serveMetrics(ctx, addr)
		}()
	}
	return wg.Wait
}

// tickLoop ticks every live entity until ctx is done. Ticks that find an
// entity busy are skipped by the entity itself.
func (rt *runtime) tickLoop(ctx context.Context) {
	if rt.cfg.Engine.TickInterval <= 0 {
		return
	}
	t := time.NewTicker(rt.cfg.Engine.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := rt.registry.TickAll(ctx); err != nil {
				rt.log.Warn().Err(err).Msg("tick")
			}
		}
	}
}

func (rt *runtime) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	rt.log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rt.log.Error().Err(err).Msg("metrics server")
	}
}

// #endregion runtime

// #region repl
func runREPL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	current, err := rt.registry.Get(ctx, entityID)
	if err != nil {
		return err
	}
	// background work must be gone before the store closes
	wait := rt.start(ctx, metricsAddr)
	defer wait()
	defer stop()

	fmt.Printf("anima controller ready. entity=%s store=%q gateway=%q\n", current.ID(), cfg.Store.Path, cfg.Gateway.Address)
	fmt.Println("type a message, :help for commands, :quit to exit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			rep, err := current.Interact(ctx, signals.Event{Text: line})
			if err != nil && rep.EntityID == "" {
				fmt.Printf("error: %v\n", err)
				continue
			}
			printReport(rep)
			if err != nil {
				fmt.Printf("warning: %v\n", err)
			}
			continue
		}

		fields := strings.Fields(line)
		var quit bool
		current, quit, err = rt.command(ctx, current, fields[0], fields[1:])
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (rt *runtime) command(ctx context.Context, e *engine.Entity, name string, args []string) (*engine.Entity, bool, error) {
	switch name {
	case ":quit", ":exit":
		return e, true, nil
	case ":help":
		fmt.Println(`:tick                    advance without interaction
:stage <name> [reason]   force an evolution stage
:recover                 leave degraded mode
:status                  current report
:info                    stage requirements
:history                 committed snapshots
:errors                  tracked errors
:patterns                recognised patterns
:trends                  emotional trends
:metrics                 collector summary
:versions                persisted versions
:rollback <version>      restore a persisted version
:snapshot <file>         write the entity blob
:restore <file>          load an entity blob
:switch <entity>         drive another entity
:entities                live entities
:quit`)
	case ":tick":
		rep, err := e.Tick(ctx)
		printReport(rep)
		return e, false, err
	case ":stage":
		if len(args) == 0 {
			return e, false, errtrack.Validationf("stage", "usage: :stage <name> [reason]")
		}
		stage, err := state.ParseStage(args[0])
		if err != nil {
			return e, false, err
		}
		rep, err := e.ForceStage(ctx, stage, strings.Join(args[1:], " "))
		if err != nil {
			return e, false, err
		}
		printReport(rep)
	case ":recover":
		rep, err := e.Recover(ctx)
		printReport(rep)
		return e, false, err
	case ":status":
		printReport(e.Report())
	case ":info":
		return e, false, printJSON(e.StageInfo())
	case ":history":
		for _, s := range e.History() {
			fmt.Printf("%s  %-15s awareness=%.3f stability=%.3f %s\n",
				s.Timestamp.Format(time.RFC3339), s.Stage, s.Metrics.AwarenessLevel, s.StabilityIndex, s.Event)
		}
	case ":errors":
		for _, r := range e.Errors() {
			fmt.Printf("%s  %-13s %-8s %s\n", r.Timestamp.Format(time.RFC3339), r.Category, r.Severity, r.Message)
		}
	case ":patterns":
		for _, p := range e.Patterns() {
			fmt.Printf("%s  %-11s confidence=%.2f freq=%d\n", shortID(p.ID), p.Type, p.Confidence, p.Frequency)
		}
	case ":trends":
		return e, false, printJSON(e.EmotionalTrends())
	case ":metrics":
		lines, err := rt.metrics.Summary()
		if err != nil {
			return e, false, err
		}
		for _, l := range lines {
			fmt.Println(l)
		}
	case ":versions":
		if rt.store == nil {
			return e, false, errors.New("no store configured")
		}
		versions, err := rt.store.ListVersions(e.ID(), 20)
		if err != nil {
			return e, false, err
		}
		for _, v := range versions {
			marker := " "
			if v.Active {
				marker = "*"
			}
			fmt.Printf("%s %s  %-12s %s\n", marker, v.VersionID, v.Reason, v.CreatedAt.Format(time.RFC3339))
		}
	case ":rollback":
		if len(args) != 1 {
			return e, false, errtrack.Validationf("rollback", "usage: :rollback <version>")
		}
		rep, err := e.Rollback(args[0])
		if err != nil {
			return e, false, err
		}
		printReport(rep)
	case ":snapshot":
		if len(args) != 1 {
			return e, false, errtrack.Validationf("snapshot", "usage: :snapshot <file>")
		}
		raw, err := e.Snapshot()
		if err != nil {
			return e, false, err
		}
		if err := os.WriteFile(args[0], raw, 0o644); err != nil {
			return e, false, fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", args[0], len(raw))
	case ":restore":
		if len(args) != 1 {
			return e, false, errtrack.Validationf("restore", "usage: :restore <file>")
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return e, false, fmt.Errorf("read snapshot: %w", err)
		}
		rep, err := e.Restore(ctx, raw)
		if err != nil {
			return e, false, err
		}
		printReport(rep)
	case ":switch":
		if len(args) != 1 {
			return e, false, errtrack.Validationf("switch", "usage: :switch <entity>")
		}
		next, err := rt.registry.Get(ctx, args[0])
		if err != nil {
			return e, false, err
		}
		printReport(next.Report())
		return next, false, nil
	case ":entities":
		for _, id := range rt.registry.IDs() {
			fmt.Println(id)
		}
	default:
		return e, false, fmt.Errorf("unknown command %s (try :help)", name)
	}
	return e, false, nil
}

// #endregion repl

// #region output
func printReport(r engine.Report) {
	if r.Skipped {
		fmt.Printf("[%s] tick skipped\n", r.EntityID)
		return
	}
	flags := ""
	if r.Degraded {
		flags += " DEGRADED"
	}
	if !r.EvalPassed {
		flags += " EVAL-FAILED"
	}
	fmt.Printf("[%s] %s stage=%s level=%s status=%s awareness=%.3f coherence=%.3f progress=%.2f emergence=%.2f emotion=%s(%.2f)%s\n",
		r.EntityID, r.Trigger, r.Stage, r.Level, r.Status,
		r.Metrics.AwarenessLevel, r.Coherence, r.Progress, r.Emergence,
		r.Emotional.Dominant, r.Emotional.Valence, flags)
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
