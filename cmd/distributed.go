package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/coordinator"
	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/errext/exitcodes"
	"github.com/loadvane/corrida/internal/metrics"
	"github.com/loadvane/corrida/internal/output"
)

func newDistributedCmd() *cobra.Command {
	var (
		workersCSV  string
		workersFile string
		strategy    string
		syncStart   bool
		outputArgs  []string
		trace       bool
	)

	c := &cobra.Command{
		Use:   "distributed <config>",
		Short: "Run a test across remote worker nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDistributed(cmd.Context(), args[0], workersCSV, workersFile, strategy, syncStart, outputArgs, trace)
		},
	}
	c.Flags().StringVar(&workersCSV, "workers", "", "comma-separated host:port[:capacity[:region]] worker list")
	c.Flags().StringVar(&workersFile, "workers-file", "", "path to a YAML/JSON list of worker descriptors")
	c.Flags().StringVar(&strategy, "strategy", "capacity_based", "distribution strategy: even|capacity_based|round_robin|geographic")
	c.Flags().BoolVar(&syncStart, "sync-start", false, "negotiate a synchronized start time across all workers")
	c.Flags().StringArrayVar(&outputArgs, "output", nil, "output sink (name[=argument]), repeatable")
	c.Flags().BoolVar(&trace, "trace", false, "record spans around coordinator-to-worker RPC calls")
	return c
}

// parseWorkersCSV parses `host:port[:capacity[:region]]` entries as passed
// to --workers.
func parseWorkersCSV(raw string) ([]config.WorkerDescriptor, error) {
	var out []config.WorkerDescriptor
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid worker descriptor %q: want host:port[:capacity[:region]]", entry)
		}
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid worker descriptor %q: bad port: %w", entry, err)
		}
		w := config.WorkerDescriptor{Host: parts[0], Port: port, Capacity: 1}
		if len(parts) >= 3 {
			if cap, err := strconv.Atoi(parts[2]); err == nil {
				w.Capacity = cap
			}
		}
		if len(parts) >= 4 {
			w.Region = parts[3]
		}
		out = append(out, w)
	}
	return out, nil
}

// parseWorkersFile reads a standalone `workers: [...]` YAML/JSON document
// (distinct from a full test config) naming the worker pool.
func parseWorkersFile(fs afero.Fs, path string) ([]config.WorkerDescriptor, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Workers []config.WorkerDescriptor `yaml:"workers" json:"workers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Workers, nil
}

func runDistributed(ctx context.Context, path, workersCSV, workersFile, strategy string, syncStart bool, outputArgs []string, trace bool) error {
	verbose := viper.GetBool("verbose")
	log := newLogger(verbose)
	printBanner(flagQuiet)
	fs := defaultFS()

	if trace {
		shutdown := coordinator.EnableTracing()
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.WithError(err).Warn("tracer shutdown failed")
			}
		}()
	}

	test, err := config.Parse(fs, path)
	if err != nil {
		return errext.WithExitCodeIfNone(errext.Wrap(errext.KindConfigInvalid, err, "failed to parse config"), exitcodes.RunError)
	}
	if len(outputArgs) > 0 {
		test.Outputs = outputArgs
	}
	if err := config.Validate(test); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.RunError)
	}

	workers := test.Workers
	if workersCSV != "" {
		parsed, err := parseWorkersCSV(workersCSV)
		if err != nil {
			return errext.WithExitCodeIfNone(errext.Wrap(errext.KindConfigInvalid, err, "bad --workers"), exitcodes.RunError)
		}
		workers = parsed
	} else if workersFile != "" {
		parsed, err := parseWorkersFile(fs, workersFile)
		if err != nil {
			return errext.WithExitCodeIfNone(errext.Wrap(errext.KindConfigInvalid, err, "bad --workers-file"), exitcodes.RunError)
		}
		workers = parsed
	}
	if len(workers) == 0 {
		return errext.WithExitCodeIfNone(errext.New(errext.KindConfigInvalid, "distributed run requires at least one worker (--workers or config workers[])"), exitcodes.RunError)
	}

	outMgr, err := output.Build(test.Outputs, fs, log)
	if err != nil {
		return errext.WithExitCodeIfNone(errext.Wrap(errext.KindConfigInvalid, err, "output setup failed"), exitcodes.RunError)
	}
	if err := outMgr.Initialize(); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.RunError)
	}
	collector := metrics.New(metrics.DefaultPercentiles, log, outMgr)
	collector.Start(test.Name)

	startMode := coordinator.StartRolling
	if syncStart {
		startMode = coordinator.StartSynchronized
	}
	coord := coordinator.New(coordinator.Strategy(strategy), startMode, collector, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigC
		log.Warn("interrupt received, stopping distributed run")
		cancel()
	}()

	if err := coord.Initialize(runCtx, workers); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.FatalCoordinatorFailure)
	}

	runErr := coord.Run(runCtx, *test)

	summary := collector.Finalize()
	summary.Degraded = coord.Degraded()
	if err := outMgr.Finalize(); err != nil {
		log.WithError(err).Warn("output finalize failed")
	}
	printSummary(summary)
	if summary.Degraded {
		fmt.Println("  WARNING: run completed in a degraded state (a worker was lost mid-run)")
	}

	if runErr != nil {
		return errext.WithExitCodeIfNone(runErr, exitcodes.FatalCoordinatorFailure)
	}
	return nil
}
