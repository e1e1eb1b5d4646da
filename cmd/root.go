package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bz888/chatprobe/internal/api"
	"github.com/bz888/chatprobe/internal/api/server"
	"github.com/bz888/chatprobe/internal/config"
	"github.com/bz888/chatprobe/internal/harness"
	"github.com/bz888/chatprobe/internal/logger"
	"github.com/bz888/chatprobe/internal/tracing"
	"github.com/bz888/chatprobe/internal/ui"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitStrict   = 2
	flushTimeout = 5 * time.Second
)

// Execute runs chatprobe and returns the process exit code. Failing test
// cases do not change the code unless -strict is set; anything that stops
// the run itself from happening exits with 1.
func Execute() int {
	if err := config.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var view *ui.View
	sink := io.Writer(os.Stderr)
	if config.TUI && config.Serve == "" {
		view = ui.New("Conversation")
		sink = view.DebugConsole()
	}
	if err := logger.InitLogger(config.Dev, config.LogPath, sink); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFailure
	}
	defer logger.Close()
	localLogger := logger.NewLogger("cmd")

	shutdown, err := tracing.Init(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFailure
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			localLogger.Warn("failed to flush traces: ", err)
		}
	}()

	if config.Serve != "" {
		if err := server.Run(ctx, config.Serve); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return exitFailure
		}
		return exitOK
	}

	cases, err := loadCases(config.CasesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFailure
	}

	var summary harness.Summary
	job := func(ctx context.Context, out, errOut io.Writer) {
		summary = runTests(ctx, out, errOut, cases)
	}

	if view != nil {
		if err := view.Run(ctx, job); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return exitFailure
		}
		// a run aborted from the view leaves summary partially filled
		select {
		case <-view.Done():
		default:
			return exitFailure
		}
	} else {
		job(ctx, os.Stdout, os.Stderr)
	}

	return exitCode(summary, config.Strict)
}

func loadCases(path string) ([]harness.Case, error) {
	if path == "" {
		return harness.DefaultCases(), nil
	}
	return harness.LoadCases(path)
}

func runTests(ctx context.Context, out, errOut io.Writer, cases []harness.Case) harness.Summary {
	client := api.NewClient(api.ClientConfig{
		URL:     config.URL,
		Timeout: config.Timeout,
		Verbose: config.Verbose,
		Out:     out,
		ErrOut:  errOut,
	})

	driver := harness.NewDriver(client, cases)
	driver.Delay = config.Delay
	driver.Title = "Testing chat agent at " + client.URL()
	driver.Out = out
	driver.ErrOut = errOut
	return driver.Run(ctx)
}

func exitCode(summary harness.Summary, strict bool) int {
	if strict && (summary.Failed > 0 || summary.Skipped > 0) {
		return exitStrict
	}
	return exitOK
}
