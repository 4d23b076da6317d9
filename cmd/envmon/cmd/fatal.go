package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/managed"
)

const (
	exitError    = 1
	exitDiverged = 2
)

var (
	// globals used to patch over calls to os.Exit() during test

	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf
	osExit     = os.Exit

	// infoLogger wraps informative messages to os.Stdout without cluttering expected output in tests.
	// To be used instead on fmt.Printf(os.Stdout, ...)
	infoLogger = log.New(os.Stdout, "", 0)
)

func wrapFatalln(msg string, err error) {
	flushMetrics()
	if err == nil {
		logFatalln(msg)
	} else {
		logFatalf("%v", fmt.Errorf(msg+": %w", err))
	}
}

func wrapFatalWithCodef(code int, format string, args ...interface{}) {
	flushMetrics()
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(code)
}

// fatal exits with a dedicated code when the working copy and upstream diverged
func fatal(msg string, err error) {
	if errors.Is(err, managed.ErrDiverged) {
		wrapFatalWithCodef(exitDiverged, "%s: %v\nuse --force to overwrite", msg, err)
		return
	}
	wrapFatalln(msg, err)
}
