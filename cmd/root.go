package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/errext/exitcodes"
)

var (
	flagVerbose bool
	flagQuiet   bool
)

// Execute builds and runs the root command, returning the process exit
// code: 0 on success, 1 for a validation or runtime error, 2 for a fatal
// coordinator failure.
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		return int(exitCodeFor(err))
	}
	return int(exitcodes.Success)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "corrida",
		Short:         "A declarative load-testing core: run, distributed, worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug-level logging")
	root.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress the startup banner")
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newRunCmd())
	root.AddCommand(newDistributedCmd())
	root.AddCommand(newWorkerCmd())
	return root
}

func exitCodeFor(err error) exitcodes.ExitCode {
	if err == nil {
		return exitcodes.Success
	}
	var coded errext.HasExitCode
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return exitcodes.RunError
}
