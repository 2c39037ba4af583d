package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/rf-link-engine/core"
	"github.com/signalsfoundry/rf-link-engine/internal/config"
	"github.com/signalsfoundry/rf-link-engine/internal/logging"
	"github.com/signalsfoundry/rf-link-engine/internal/observability"
	"github.com/signalsfoundry/rf-link-engine/timectrl"
	"github.com/signalsfoundry/rf-link-engine/topology"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "linkengine",
		Short:         "Precompute RF links between spacecraft and ground stations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./linkengine.yaml or ./configs/linkengine.yaml)")
	root.PersistentFlags().String("scenario", "", "scenario YAML file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (json, text)")
	root.PersistentFlags().Int("workers", 0, "worker goroutines per stage (0: GOMAXPROCS)")

	// These cannot fail: the flags are defined above.
	_ = a.v.BindPFlag("scenario", root.PersistentFlags().Lookup("scenario"))
	_ = a.v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))
	_ = a.v.BindPFlag("engine.workers", root.PersistentFlags().Lookup("workers"))

	root.AddCommand(a.newRunCmd(), a.newOnceCmd())
	return root
}

// load reads configuration. Bound flags override env and file values only
// when set on the command line.
func (a *app) load() (*config.Config, error) {
	return config.Load(a.v, a.cfgFile)
}

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine continuously, recomputing on clock ticks and topology changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().String("metrics-addr", "", "HTTP address for Prometheus /metrics")
	cmd.Flags().Bool("watch", false, "reload the scenario when the file changes")
	cmd.Flags().Duration("interval", 0, "also recompute on this wall-clock interval")
	_ = a.v.BindPFlag("metrics_addr", cmd.Flags().Lookup("metrics-addr"))
	_ = a.v.BindPFlag("watch", cmd.Flags().Lookup("watch"))
	_ = a.v.BindPFlag("interval", cmd.Flags().Lookup("interval"))
	return cmd
}

func (a *app) newOnceCmd() *cobra.Command {
	var (
		at      string
		asJSON  bool
		showAll bool
	)
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single pass over the scenario and print the pair decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			var when time.Time
			if at != "" {
				if when, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			return once(cmd.Context(), cfg, when, cmd.OutOrStdout(), asJSON, showAll)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "simulation time (RFC 3339) to propagate orbits to")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print decisions as JSON")
	cmd.Flags().BoolVar(&showAll, "all", false, "include rejected pairs")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := cfg.Logging.Logger(nil)

	sc, err := topology.LoadScenarioFile(cfg.Scenario)
	if err != nil {
		return err
	}
	start, err := clockStart(cfg.Clock, sc)
	if err != nil {
		return err
	}

	workers := cfg.Engine.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	tracingCfg := observability.TracingConfigFromEnv().WithEngine(cfg.Scenario, workers)
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	store := topology.NewStore()
	sc.Apply(store, start)

	graph := core.NewLinkGraph()
	engine := core.NewEngine(graph,
		core.WithLogger(log),
		core.WithRecorder(collector),
		core.WithConfig(cfg.Engine),
	)
	runner := core.NewRunner(engine, store, log)
	runner.Interval = cfg.Interval
	runner.OnResult = func(res *core.PassResult) {
		log.Debug(ctx, "graph updated",
			logging.String("pass_id", res.PassID),
			logging.Int("links", len(graph.LinkIDs())),
		)
	}

	unsubscribe := store.Subscribe(func(topology.Event) { runner.Trigger() })
	defer unsubscribe()

	clock := timectrl.NewTimeController(start, cfg.Clock.Tick, timectrl.ParseMode(cfg.Clock.Mode))
	clock.AddListener(func(now time.Time) { store.Propagate(now) })
	clockDone := clock.Start(ctx, 0)

	if cfg.Watch {
		w, err := newScenarioWatcher(cfg.Scenario, log, func() {
			next, err := topology.LoadScenarioFile(cfg.Scenario)
			if err != nil {
				log.Warn(ctx, "scenario reload failed", logging.String("path", cfg.Scenario), logging.Err(err))
				return
			}
			next.Apply(store, clock.Now())
			log.Info(ctx, "scenario reloaded", logging.String("path", cfg.Scenario))
		})
		if err != nil {
			return fmt.Errorf("watch scenario: %w", err)
		}
		go w.Run(ctx)
		defer w.Close()
	}

	log.Info(ctx, "link engine started",
		logging.String("scenario", cfg.Scenario),
		logging.Any("sim_start", start),
		logging.Any("tick", cfg.Clock.Tick),
	)
	runner.Trigger()
	err = runner.Run(ctx)
	<-clockDone

	log.Info(context.Background(), "shutting down link engine")
	return err
}

func once(ctx context.Context, cfg *config.Config, at time.Time, out io.Writer, asJSON, showAll bool) error {
	// Decisions go to out; keep logs off it.
	log := cfg.Logging.Logger(os.Stderr)

	sc, err := topology.LoadScenarioFile(cfg.Scenario)
	if err != nil {
		return err
	}
	if at.IsZero() {
		if at, err = clockStart(cfg.Clock, sc); err != nil {
			return err
		}
	}
	store := topology.NewStore()
	sc.Apply(store, at)

	graph := core.NewLinkGraph()
	engine := core.NewEngine(graph, core.WithLogger(log), core.WithConfig(cfg.Engine))
	res, err := engine.Recompute(ctx, store.Snapshot())
	if err != nil {
		return err
	}

	decisions := res.Decisions
	if !showAll {
		decisions = decisions[:0:0]
		for _, d := range res.Decisions {
			if d.Accepted {
				decisions = append(decisions, d)
			}
		}
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	}
	return printDecisions(out, decisions)
}

func printDecisions(out io.Writer, decisions []core.PairDecision) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE A\tNODE B\tACCEPTED\tA->B ANTENNAS\tA->B RATE\tB->A ANTENNAS\tB->A RATE\tQUALITY")
	for _, d := range decisions {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\t%s\t%.2f/%.2f\n",
			d.NodeA, d.NodeB, d.Accepted,
			antennaPair(d.Forward), formatRate(d.Forward.DataRate),
			antennaPair(d.Reverse), formatRate(d.Reverse.DataRate),
			d.Forward.Quality, d.Reverse.Quality,
		)
	}
	return tw.Flush()
}

func antennaPair(l core.DirectedLink) string {
	if l.TxAntenna == "" {
		return "-"
	}
	return l.TxAntenna + "->" + l.RxAntenna
}

func formatRate(bps float64) string {
	switch {
	case bps >= 1e9:
		return fmt.Sprintf("%.2f Gbps", bps/1e9)
	case bps >= 1e6:
		return fmt.Sprintf("%.2f Mbps", bps/1e6)
	case bps >= 1e3:
		return fmt.Sprintf("%.2f kbps", bps/1e3)
	default:
		return fmt.Sprintf("%.0f bps", bps)
	}
}

// clockStart resolves the simulation start: config, then scenario epoch,
// then wall-clock now.
func clockStart(c config.ClockConfig, sc *topology.Scenario) (time.Time, error) {
	if !c.Start.IsZero() {
		return c.Start, nil
	}
	if !sc.Epoch.IsZero() {
		return sc.Epoch, nil
	}
	return time.Now().UTC(), nil
}

func serveMetrics(addr string, collector *observability.EngineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
