// Package cmd implements the core's CLI surface: `run`, `distributed`,
// `worker`, plus the persistent flags shared across all three.
package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/loadvane/corrida/internal/ui"
)

// newLogger builds a per-invocation logger with a colorized, TTY-aware
// convention (`mattn/go-colorable` + `mattn/go-isatty`, degrading to
// plain text off a terminal).
func newLogger(verbose bool) logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(logOutput())
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:   isatty.IsTerminal(os.Stdout.Fd()),
		DisableColors: !isatty.IsTerminal(os.Stdout.Fd()),
	})
	return log
}

func logOutput() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return os.Stdout
}

// printBanner writes the startup banner unless quiet.
func printBanner(quiet bool) {
	if quiet {
		return
	}
	ui.BannerColor.Println(ui.Banner)
}

func defaultFS() afero.Fs {
	return afero.NewOsFs()
}
