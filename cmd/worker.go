package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/errext/exitcodes"
	"github.com/loadvane/corrida/internal/protocol/script"
	"github.com/loadvane/corrida/internal/workernode"
)

func newWorkerCmd() *cobra.Command {
	var (
		host string
		port int
	)

	c := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker node that accepts prepare/start/stop commands from a coordinator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), host, port)
		},
	}
	c.Flags().StringVar(&host, "host", "0.0.0.0", "address to bind the worker's control surface")
	c.Flags().IntVar(&port, "port", 9090, "port to bind the worker's control surface")
	return c
}

func runWorker(ctx context.Context, host string, port int) error {
	verbose := viper.GetBool("verbose")
	log := newLogger(verbose)
	printBanner(flagQuiet)
	fs := defaultFS()

	srv := workernode.NewServer(fs, script.NewRegistry(), log)
	addr := fmt.Sprintf("%s:%d", host, port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("worker node listening")
		errC <- httpSrv.ListenAndServe()
	}()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errC:
		if err != nil && err != http.ErrServerClosed {
			return errext.WithExitCodeIfNone(errext.Wrap(errext.KindFatal, err, "worker server failed"), exitcodes.FatalCoordinatorFailure)
		}
		return nil
	case <-sigC:
		log.Warn("interrupt received, shutting down worker")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return errext.WithExitCodeIfNone(errext.Wrap(errext.KindFatal, err, "worker shutdown failed"), exitcodes.FatalCoordinatorFailure)
	}
	return nil
}
