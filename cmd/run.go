package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/errext/exitcodes"
	"github.com/loadvane/corrida/internal/metrics"
	"github.com/loadvane/corrida/internal/output"
	"github.com/loadvane/corrida/internal/scheduler"
	"github.com/loadvane/corrida/internal/ui"
	"github.com/loadvane/corrida/internal/vu"
)

func newRunCmd() *cobra.Command {
	var (
		env        []string
		outputArgs []string
		reportFlag bool
		dryRun     bool
		maxUsers   int
	)

	c := &cobra.Command{
		Use:   "run <config>",
		Short: "Run a test locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(cmd.Context(), args[0], env, outputArgs, reportFlag, dryRun, maxUsers)
		},
	}
	c.Flags().StringArrayVar(&env, "env", nil, "environment variable override (KEY=VALUE), repeatable")
	c.Flags().StringArrayVar(&outputArgs, "output", nil, "output sink (name[=argument]), repeatable; overrides the config's outputs[] when set")
	c.Flags().BoolVar(&reportFlag, "report", false, "emit the configured HTML report directive after the run")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "validate the config and print the computed VU/phase timeline without executing any VU")
	c.Flags().IntVar(&maxUsers, "max-users", 0, "cap the total concurrent VU count across all phases (0 = unbounded)")
	return c
}

func applyEnvOverrides(test *config.Test, env []string) {
	if test.Global.Variables == nil {
		test.Global.Variables = map[string]interface{}{}
	}
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		test.Global.Variables[parts[0]] = parts[1]
	}
}

func capMaxUsers(test *config.Test, maxUsers int) {
	if maxUsers <= 0 {
		return
	}
	for i, phase := range test.Load.Phases {
		if phase.VirtualUsers > maxUsers {
			test.Load.Phases[i].VirtualUsers = maxUsers
		}
		if phase.MaxVUs > maxUsers {
			test.Load.Phases[i].MaxVUs = maxUsers
		}
		for j, stage := range phase.Steps {
			if stage.Users > maxUsers {
				test.Load.Phases[i].Steps[j].Users = maxUsers
			}
		}
	}
}

func runLocal(ctx context.Context, path string, env, outputArgs []string, reportFlag, dryRun bool, maxUsers int) error {
	verbose := viper.GetBool("verbose")
	log := newLogger(verbose)
	printBanner(flagQuiet)
	fs := defaultFS()

	test, err := config.Parse(fs, path)
	if err != nil {
		return errext.WithExitCodeIfNone(errext.Wrap(errext.KindConfigInvalid, err, "failed to parse config"), exitcodes.RunError)
	}
	applyEnvOverrides(test, env)
	capMaxUsers(test, maxUsers)
	if len(outputArgs) > 0 {
		test.Outputs = outputArgs
	}

	if err := config.Validate(test); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.RunError)
	}

	if dryRun {
		printDryRun(test)
		return nil
	}

	outMgr, err := output.Build(test.Outputs, fs, log)
	if err != nil {
		return errext.WithExitCodeIfNone(errext.Wrap(errext.KindConfigInvalid, err, "output setup failed"), exitcodes.RunError)
	}
	if err := outMgr.Initialize(); err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.RunError)
	}

	collector := metrics.New(metrics.DefaultPercentiles, log, outMgr)
	vuCfg := vu.Assemble(test, fs, nil, collector, log)
	factory := func(maxIterations int64) (scheduler.VU, error) {
		return vu.New(vuCfg, maxIterations), nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigC
		log.Warn("interrupt received, stopping")
		cancel()
	}()

	collector.Start(test.Name)
	progressDone := renderProgress(collector, flagQuiet)

	runErr := scheduler.Run(runCtx, test.Load.Phases, factory, collector, log)

	summary := collector.Finalize()
	<-progressDone
	if err := outMgr.Finalize(); err != nil {
		log.WithError(err).Warn("output finalize failed")
	}

	printSummary(summary)

	if reportFlag && test.Report != nil {
		log.WithField("path", test.Report.Path).Info("report directive recorded; rendering is external to this core")
	}

	if runErr != nil {
		return errext.WithExitCodeIfNone(runErr, exitcodes.RunError)
	}
	if summary.TotalRequests > 0 && summary.TotalErrors == summary.TotalRequests {
		return errext.WithExitCodeIfNone(errext.New(errext.KindFatal, "every request failed"), exitcodes.RunError)
	}
	return nil
}

func printDryRun(test *config.Test) {
	fmt.Printf("test: %s\n", test.Name)
	for i, phase := range test.Load.Phases {
		switch phase.Pattern {
		case config.PatternBasic:
			fmt.Printf("phase %d (basic): %d VUs, ramp_up=%s, duration=%s\n", i, phase.VirtualUsers, phase.RampUp.Duration, phase.Duration.Duration)
		case config.PatternStepping:
			fmt.Printf("phase %d (stepping): %d stages\n", i, len(phase.Steps))
			for j, stage := range phase.Steps {
				fmt.Printf("  stage %d: %d users, ramp_up=%s, duration=%s\n", j, stage.Users, stage.RampUp.Duration, stage.Duration.Duration)
			}
		case config.PatternArrivals:
			fmt.Printf("phase %d (arrivals): rate=%.2f/s, max_vus=%d, duration=%s\n", i, phase.Rate, phase.MaxVUs, phase.Duration.Duration)
		}
	}
}

// renderProgress consumes the collector's live-progress feed and renders
// it with a ui.ProgressBar.
func renderProgress(collector *metrics.Collector, quiet bool) <-chan struct{} {
	done := make(chan struct{})
	if quiet {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		sub := collector.Subscribe()
		for p := range sub {
			bar := ui.ProgressBar{
				Width:    40,
				Progress: elapsedFraction(p.Elapsed),
				Left:     func() string { return fmt.Sprintf("vus=%d", p.VUCount) },
				Right:    func() string { return fmt.Sprintf("rps=%.1f reqs=%d errs=%d", p.RPS, p.TotalRequests, p.TotalErrors) },
			}
			fmt.Fprintf(logOutput(), "\r%s", bar.String())
		}
		fmt.Fprintln(logOutput())
	}()
	return done
}

func elapsedFraction(d time.Duration) float64 {
	// No fixed test length is known up front for duration-less
	// (iteration-governed) phases, so the bar's progress fraction tracks
	// a rolling 5-minute window as a heartbeat rather than true percent
	// complete.
	const window = 5 * time.Minute
	f := float64(d) / float64(window)
	if f > 1 {
		f -= float64(int64(f))
	}
	return f
}

func printSummary(s metrics.Summary) {
	fmt.Printf("\n%s summary\n", s.TestName)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"metric", "value"})
	table.SetAutoWrapText(false)
	table.Append([]string{"requests", fmt.Sprintf("%d", s.TotalRequests)})
	table.Append([]string{"errors", fmt.Sprintf("%d", s.TotalErrors)})
	table.Append([]string{"success rate", fmt.Sprintf("%.2f%%", s.SuccessRate*100)})
	table.Append([]string{"latency min/avg/max (ms)", fmt.Sprintf("%.1f / %.1f / %.1f", s.MinMS, s.AvgMS, s.MaxMS)})
	for _, key := range []string{"50", "95", "99"} {
		if v, ok := s.Percentiles[key]; ok {
			table.Append([]string{"p" + key + " (ms)", fmt.Sprintf("%.1f", v)})
		}
	}
	table.Append([]string{"throughput (req/s)", fmt.Sprintf("%.1f", s.ThroughputRPS)})
	table.Append([]string{"pacing misses", fmt.Sprintf("%d", s.PacingMisses)})
	table.Append([]string{"spawn failures", fmt.Sprintf("%d", s.SpawnFailures)})
	table.Render()
}
