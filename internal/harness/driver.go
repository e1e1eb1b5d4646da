// Package harness runs an ordered list of chat messages against an endpoint,
// one at a time, and reports the outcome of each.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bz888/chatprobe/internal/logger"
)

const (
	DefaultDelay = time.Second
	DefaultTitle = "Testing Chat Agent"
	bannerWidth  = 60
)

var tracer = otel.Tracer("github.com/bz888/chatprobe/internal/harness")

// Chatter sends one message and returns the complete reply.
type Chatter interface {
	Chat(ctx context.Context, message string) (string, error)
}

type Result struct {
	Index    int
	Case     Case
	Response string
	Err      error
	Skipped  bool
	Duration time.Duration
}

type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Results []Result
}

// Driver runs cases strictly in order. A failing case never stops the run.
type Driver struct {
	Chatter Chatter
	Cases   []Case
	Delay   time.Duration
	Title   string
	Out     io.Writer
	ErrOut  io.Writer
	// Sleep waits between cases; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	log *logger.Logger
}

func NewDriver(chatter Chatter, cases []Case) *Driver {
	return &Driver{
		Chatter: chatter,
		Cases:   cases,
		Delay:   DefaultDelay,
		Title:   DefaultTitle,
		Out:     os.Stdout,
		ErrOut:  os.Stderr,
	}
}

// Run executes every case and prints a completion banner exactly once. If ctx
// is cancelled the case in flight finishes (or fails) and the rest are
// reported as skipped.
func (d *Driver) Run(ctx context.Context) Summary {
	if d.log == nil {
		d.log = logger.NewLogger("harness")
	}
	out, errOut := d.writers()
	sleep := d.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	n := len(d.Cases)
	summary := Summary{Total: n, Results: make([]Result, 0, n)}

	rule := strings.Repeat("=", bannerWidth)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, d.title())
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out)

	for i, c := range d.Cases {
		if ctx.Err() != nil {
			summary.skipFrom(d.Cases, i)
			fmt.Fprintf(errOut, "Skipped: %d remaining test case(s), %v\n", n-i, ctx.Err())
			break
		}

		res := d.runCase(ctx, out, errOut, i, n, c)
		summary.add(res)

		if i < n-1 {
			if err := sleep(ctx, d.Delay); err != nil {
				d.log.Warn("delay interrupted: ", err)
			}
		}
	}

	fmt.Fprintln(out, "\n"+rule)
	fmt.Fprintln(out, "All tests completed!")
	fmt.Fprintln(out, rule)

	d.log.Info(fmt.Sprintf("run finished: %d passed, %d failed, %d skipped", summary.Passed, summary.Failed, summary.Skipped))
	return summary
}

func (d *Driver) runCase(ctx context.Context, out, errOut io.Writer, i, n int, c Case) Result {
	ctx, span := tracer.Start(ctx, "harness.case")
	defer span.End()
	span.SetAttributes(
		attribute.Int("harness.case.index", i+1),
		attribute.Int("harness.case.total", n),
		attribute.String("harness.case.message", c.Message),
	)

	thin := strings.Repeat("─", bannerWidth)
	fmt.Fprintln(out, "\n"+thin)
	fmt.Fprintf(out, "Test %d/%d\n", i+1, n)
	fmt.Fprintf(out, "Message: %s\n", c.Message)
	if c.Note != "" {
		fmt.Fprintf(out, "Note: %s\n", c.Note)
	}
	fmt.Fprintln(out, thin)

	start := time.Now()
	response, err := d.Chatter.Chat(ctx, c.Message)
	res := Result{Index: i, Case: c, Response: response, Err: err, Duration: time.Since(start)}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.log.Error(fmt.Sprintf("test %d/%d failed: ", i+1, n), err)
		fmt.Fprintln(errOut, "Failed:", err.Error())
		return res
	}
	fmt.Fprintln(out, "Response:", response)
	return res
}

func (d *Driver) title() string {
	if d.Title == "" {
		return DefaultTitle
	}
	return d.Title
}

func (d *Driver) writers() (io.Writer, io.Writer) {
	out, errOut := d.Out, d.ErrOut
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return out, errOut
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	if r.Err != nil {
		s.Failed++
		return
	}
	s.Passed++
}

func (s *Summary) skipFrom(cases []Case, from int) {
	for i := from; i < len(cases); i++ {
		s.Results = append(s.Results, Result{Index: i, Case: cases[i], Skipped: true})
		s.Skipped++
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
