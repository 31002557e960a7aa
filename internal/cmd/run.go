package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jpequegn/testforge/internal/aggregator"
	"github.com/jpequegn/testforge/internal/cancelbus"
	"github.com/jpequegn/testforge/internal/config"
	"github.com/jpequegn/testforge/internal/event"
	"github.com/jpequegn/testforge/internal/listing"
	"github.com/jpequegn/testforge/internal/partition"
	"github.com/jpequegn/testforge/internal/planner"
	"github.com/jpequegn/testforge/internal/pretimeout"
	"github.com/jpequegn/testforge/internal/reporter/tui"
	"github.com/jpequegn/testforge/internal/scheduler"
	"github.com/jpequegn/testforge/internal/setupscript"
	"github.com/jpequegn/testforge/internal/storage"
	"github.com/jpequegn/testforge/internal/testspec"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [binary...]",
	Short: "Run every test in one or more binaries, one process per test",
	Long: `Run lists each binary's tests, resolves the configured profile and
overrides for each, then schedules them under the global and per-group
concurrency limits, retrying flaky failures and detecting hangs and
leaked descendants per the configured policy.

Example:
  testforge run --config testforge.toml ./target/debug/mycrate-tests
  testforge run --profile ci --filter Integration ./bin/unit_tests`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("profile", "default", "execution profile to apply")
	runCmd.Flags().String("filter", "", "only run tests whose name contains this substring")
	runCmd.Flags().String("partition", "", "partition expression, e.g. slice:1/4, hash:2/4, count:1/2")
	runCmd.Flags().Int("global-max", 0, "global thread budget (default: logical CPU count)")
	runCmd.Flags().Bool("fail-fast", false, "cancel remaining tests after the first failure")
	runCmd.Flags().Bool("no-capture", false, "pin global-max to 1 and stream child output live")
	runCmd.Flags().String("db", ".testforge/state.db", "path to the SQLite state database")
	runCmd.Flags().Bool("tui", false, "show a live progress view instead of streaming log lines")
}

func runTests(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Warn("no configuration file found, running with default profile", "error", err)
		cfg = &config.Config{}
	}

	profileName, _ := cmd.Flags().GetString("profile")
	profile := cfg.Profiles[profileName]

	globalMax, _ := cmd.Flags().GetInt("global-max")
	if globalMax <= 0 {
		globalMax = runtime.NumCPU()
	}
	noCapture, _ := cmd.Flags().GetBool("no-capture")
	if noCapture {
		globalMax = 1
	}

	filter, _ := cmd.Flags().GetString("filter")
	partitionExpr, _ := cmd.Flags().GetString("partition")
	planOpts := planner.Options{
		Profile:   profile,
		Groups:    cfg.Groups,
		GlobalMax: globalMax,
		NameMatch: filter,
	}
	if partitionExpr != "" {
		spec, err := partition.Parse(partitionExpr)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		planOpts.HasPartition = true
		planOpts.Partition = spec
	}

	specs := make([]planner.BinarySpec, 0, len(args))
	for _, path := range args {
		specs = append(specs, planner.BinarySpec{
			BinaryID: path,
			Path:     path,
			CWD:      ".",
			Dialect:  listing.DialectTerse,
		})
	}

	registry := listing.NewRegistry()

	plan, err := planner.Build(ctx, specs, registry, planOpts)
	if err != nil {
		return fmt.Errorf("run: building plan: %w", err)
	}
	if len(plan.Tests) == 0 {
		return fmt.Errorf("run: no tests matched")
	}
	slog.Info("resolved run plan", "tests", len(plan.Tests), "global_max", globalMax)

	coordinator, err := buildSetupCoordinator(cfg, profile)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if coordinator != nil {
		if err := coordinator.RunAll(ctx); err != nil {
			return fmt.Errorf("run: setup scripts: %w", err)
		}
	}

	preTimeout, err := buildPreTimeoutCoordinator(cfg, profile)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	cancel := cancelbus.New()
	cleanup := cancel.InstallSignalHandler()
	defer cleanup()

	bus := event.NewBus()
	rec := newRunRecorder()
	progressCh := bus.Subscribe(64)
	recordCh := bus.Subscribe(256)
	var wg sync.WaitGroup
	wg.Add(2)
	useTUI, _ := cmd.Flags().GetBool("tui")
	if useTUI {
		go func() { defer wg.Done(); runProgressTUI(progressCh) }()
	} else {
		go func() { defer wg.Done(); logProgress(progressCh) }()
	}
	go func() { defer wg.Done(); rec.consume(recordCh) }()

	runner := &scheduler.ProcessRunner{
		Args: func(inst testspec.TestInstance) []string {
			return []string{inst.TestName, "--nocapture", "--exact"}
		},
		Cancel:     cancel,
		Events:     bus,
		PreTimeout: preTimeout,
	}

	failFast, _ := cmd.Flags().GetBool("fail-fast")
	opts := scheduler.Options{
		GlobalMax: globalMax,
		FailFast:  failFast,
		BaseEnv:   os.Environ(),
		Setup:     coordinator,
	}

	sched := scheduler.New(plan, bus, cancel, runner, opts)
	started := time.Now()
	stats := sched.Run(ctx)
	bus.Close()
	wg.Wait()

	fmt.Fprintf(os.Stderr, "\n═══════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Run Summary\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "Passed:   %d\n", stats.Passed)
	fmt.Fprintf(os.Stderr, "Failed:   %d\n", stats.Failed)
	fmt.Fprintf(os.Stderr, "Skipped:  %d\n", stats.Skipped)
	fmt.Fprintf(os.Stderr, "Leaked:   %d\n", stats.Leaky)
	fmt.Fprintf(os.Stderr, "Timedout: %d\n", stats.TimedOut)
	fmt.Fprintf(os.Stderr, "Wall time: %v\n", stats.WallTime.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════\n\n")

	dbPath, _ := cmd.Flags().GetString("db")
	if err := persistRun(dbPath, profileName, started, stats, rec.attempts()); err != nil {
		slog.Error("failed to persist run", "error", err)
	}

	if stats.Failed > 0 || stats.TimedOut > 0 || stats.ExecFail > 0 {
		return fmt.Errorf("%d test(s) did not pass", stats.Failed+stats.TimedOut+stats.ExecFail)
	}
	return nil
}

func buildSetupCoordinator(cfg *config.Config, profile config.Profile) (*setupscript.Coordinator, error) {
	if len(profile.SetupScripts) == 0 {
		return nil, nil
	}
	var defs []setupscript.ScriptDef
	for _, name := range profile.SetupScripts {
		s, ok := cfg.Scripts.Setup[name]
		if !ok {
			return nil, fmt.Errorf("setup script %q referenced by profile but not defined", name)
		}
		defs = append(defs, setupscript.ScriptDef{Name: name, Command: s.Command, CWD: s.CWD})
	}
	return setupscript.New(defs), nil
}

// buildPreTimeoutCoordinator resolves the profile's pre-timeout script
// references against the configuration's script table, in the same
// style as buildSetupCoordinator.
func buildPreTimeoutCoordinator(cfg *config.Config, profile config.Profile) (*pretimeout.Coordinator, error) {
	if len(profile.PreTimeoutScripts) == 0 {
		return nil, nil
	}
	var defs []pretimeout.ScriptDef
	for _, name := range profile.PreTimeoutScripts {
		s, ok := cfg.Scripts.PreTimeout[name]
		if !ok {
			return nil, fmt.Errorf("pre-timeout script %q referenced by profile but not defined", name)
		}
		defs = append(defs, pretimeout.ScriptDef{
			Name:    name,
			Command: s.Command,
			CWD:     s.CWD,
			Filter:  substringFilter(s.Filter),
		})
	}
	return pretimeout.New(defs), nil
}

// substringFilter builds a pretimeout.ScriptDef filter that matches
// test keys containing expr; an empty expr matches everything.
func substringFilter(expr string) func(string) bool {
	if expr == "" {
		return nil
	}
	return func(testKey string) bool { return strings.Contains(testKey, expr) }
}

func logProgress(ch <-chan event.Event) {
	for ev := range ch {
		switch ev.Kind {
		case event.KindRunStarted:
			slog.Info("run started")
		case event.KindAttemptStarted:
			slog.Debug("attempt started", "binary", ev.BinaryID, "test", ev.TestName, "attempt", ev.Attempt)
		case event.KindAttemptFinished:
			slog.Info("attempt finished", "binary", ev.BinaryID, "test", ev.TestName, "attempt", ev.Attempt, "outcome", ev.Outcome)
		case event.KindRetryScheduled:
			slog.Warn("retrying", "binary", ev.BinaryID, "test", ev.TestName, "attempt", ev.Attempt, "delay", ev.Delay)
		case event.KindTestSkipped:
			slog.Warn("skipped", "binary", ev.BinaryID, "test", ev.TestName, "reason", ev.Message)
		case event.KindPreTimeoutStarted:
			slog.Warn("slow, escalating toward termination", "binary", ev.BinaryID, "test", ev.TestName)
		case event.KindTerminationRequested:
			slog.Warn("terminating hung test", "binary", ev.BinaryID, "test", ev.TestName)
		case event.KindRunFinished:
			slog.Info("run finished")
		}
	}
}

// runProgressTUI drives a bubbletea program off the event stream until
// the bus closes the channel, falling back to plain logging if the
// terminal can't run the TUI.
func runProgressTUI(ch <-chan event.Event) {
	model := tui.New(ch)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		slog.Warn("live progress view failed, events may be incomplete", "error", err)
	}
}

// runRecorder reconstructs one AttemptRecord per (test, attempt) from
// the raw event stream, since the scheduler itself keeps only
// aggregate stats, not per-attempt history.
type runRecorder struct {
	mu      sync.Mutex
	starts  map[string]time.Time
	records []storage.AttemptRecord
}

func newRunRecorder() *runRecorder {
	return &runRecorder{starts: make(map[string]time.Time)}
}

func (r *runRecorder) consume(ch <-chan event.Event) {
	for ev := range ch {
		key := fmt.Sprintf("%s::%s::%d", ev.BinaryID, ev.TestName, ev.Attempt)
		switch ev.Kind {
		case event.KindAttemptStarted:
			r.mu.Lock()
			r.starts[key] = ev.Time
			r.mu.Unlock()
		case event.KindAttemptFinished:
			r.mu.Lock()
			start := r.starts[key]
			delete(r.starts, key)
			r.records = append(r.records, storage.AttemptRecord{
				TestKey:   ev.BinaryID + "::" + ev.TestName,
				BinaryID:  ev.BinaryID,
				TestName:  ev.TestName,
				Index:     ev.Attempt,
				Outcome:   ev.Outcome,
				Elapsed:   ev.Time.Sub(start),
				StartedAt: start,
			})
			r.mu.Unlock()
		}
	}
}

func (r *runRecorder) attempts() []storage.AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.AttemptRecord(nil), r.records...)
}

func persistRun(dbPath, profileID string, started time.Time, stats testspec.RunStats, attempts []storage.AttemptRecord) error {
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return fmt.Errorf("initializing state database: %w", err)
	}

	record := storage.RunRecord{
		StartedAt: started,
		Duration:  stats.WallTime,
		ProfileID: profileID,
		Stats:     stats,
		Attempts:  attempts,
	}
	id, err := store.SaveRun(record)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	slog.Info("run persisted", "run_id", id, "db", dbPath)
	return nil
}

// attemptSamplesFromRecord adapts stored attempts into the shape
// internal/aggregator needs, shared by report and compare.
func attemptSamplesFromRecord(run storage.RunRecord) []aggregator.AttemptSample {
	samples := make([]aggregator.AttemptSample, 0, len(run.Attempts))
	for _, a := range run.Attempts {
		samples = append(samples, aggregator.AttemptSample{
			TestKey:   a.TestKey,
			Elapsed:   a.Elapsed,
			Outcome:   a.Outcome,
			Timestamp: a.StartedAt,
		})
	}
	return samples
}
