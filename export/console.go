package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jonwraymond/tylolens/ethics"
	"github.com/jonwraymond/tylolens/lens"
)

// ConsoleOptions configures Console.
type ConsoleOptions struct {
	// Writer receives the output. Default: os.Stdout.
	Writer io.Writer

	// Verbose also prints the indented trace document.
	Verbose bool
}

type consoleExporter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// Console prints one summary line per trace:
//
//	[tylo-lens] trace=<id> spans=<n> tokens=<n> cost=<0.000000> pii=<yes|no>
func Console(opts ConsoleOptions) lens.Exporter {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	return &consoleExporter{w: w, verbose: opts.Verbose}
}

func (e *consoleExporter) Name() string { return "console" }

func (e *consoleExporter) Export(_ context.Context, t *lens.Trace) error {
	s := ethics.Summarize(t)
	pii := "no"
	if s.HasPII {
		pii = "yes"
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "[tylo-lens] trace=%s spans=%d tokens=%d cost=%.6f pii=%s\n",
		t.TraceID, s.Spans, s.TotalTokens, s.TotalCost, pii); err != nil {
		return err
	}
	if !e.verbose {
		return nil
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode trace: %w", err)
	}
	_, err = fmt.Fprintf(e.w, "%s\n", data)
	return err
}
