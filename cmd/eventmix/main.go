// Command eventmix merges the i-th event of every input listing into one
// output event, writing the legacy IO_GenEvent format.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"eventmix/internal/blob"
	"eventmix/internal/cli"
	"eventmix/internal/eventio"
	"eventmix/internal/hepmc"
	"eventmix/internal/ledger"
	"eventmix/internal/mixer"
)

const rule = "========================================"

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "\n=== Multi-Source HepMC Event Mixer ===\n")
	fmt.Fprintf(w, "Usage: eventmix [flags] output.hepmc input1.hepmc [input2.hepmc ...] [--nevents N]\n")
	fmt.Fprintf(w, "\nArguments:\n")
	fmt.Fprintf(w, "  output.hepmc  : Output merged HepMC file\n")
	fmt.Fprintf(w, "  input1.hepmc  : First input HepMC file\n")
	fmt.Fprintf(w, "  inputN.hepmc  : Additional input files (optional)\n")
	fmt.Fprintf(w, "  --nevents N   : Maximum events to process (default: all)\n")
	fmt.Fprintf(w, "\nPaths of the form blob://key are read from and written to the blob store.\n")
}

// splitNEvents pulls every --nevents N (or --nevents=N) out of args, wherever
// it appears. The last occurrence wins.
func splitNEvents(args []string) ([]string, int, error) {
	rest := make([]string, 0, len(args))
	n := -1
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		if name != "--nevents" && name != "-nevents" {
			rest = append(rest, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, 0, errors.New("--nevents needs a value")
			}
			i++
			value = args[i]
		}
		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid --nevents %q", value)
		}
		n = v
	}
	return rest, n, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	args, nEvents, err := splitNEvents(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fs := flag.NewFlagSet("eventmix", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 2 {
		usage(stderr)
		return 1
	}
	output := fs.Arg(0)
	inputs := fs.Args()[1:]

	ctx := context.Background()
	env, err := cli.Setup(ctx, cli.Options{
		Tool:        "eventmix",
		Paths:       fs.Args(),
		MetricsFile: *metricsFile,
	}, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := env.Close(); err != nil {
			env.Logger.Error("shutdown", "error", err)
		}
	}()
	merger, err := mixer.NewMerger(env.Settings.BarcodeStep)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "\n=== Multi-Source HepMC Event Mixer ===\n")
	fmt.Fprintf(stdout, "Output:     %s\n", output)
	fmt.Fprintf(stdout, "N sources:  %d\n", len(inputs))
	for i, in := range inputs {
		fmt.Fprintf(stdout, "  Input %d: %s\n", i+1, in)
	}
	fmt.Fprintf(stdout, "N events:   %s\n", limitLabel(nEvents))
	fmt.Fprintf(stdout, "%s\n\n", rule)

	sources := make([]mixer.Source, 0, len(inputs))
	for _, in := range inputs {
		rc, err := env.OpenInput(ctx, in)
		if err != nil {
			fmt.Fprintf(stderr, "Error: Cannot open input file: %s\n", in)
			env.Logger.Error("open input", "path", in, "error", err)
			return 1
		}
		defer rc.Close()
		sources = append(sources, hepmc.NewReader(rc))
	}

	rec, err := env.StartRun(ctx, "", inputs, output)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	out, err := env.CreateOutput(ctx, output, blob.ContentTypeGenEvent, "hepmc2", rec.ID())
	if err != nil {
		fmt.Fprintf(stderr, "Error: Cannot open output file: %s\n", output)
		env.Logger.Error("create output", "path", output, "error", err)
		_ = rec.Finish(ctx, ledger.StatusFailed, nil, err)
		return 1
	}
	writer := hepmc.NewWriter2(out)

	fmt.Fprintln(stdout, "Processing events...")
	runner := mixer.Runner{
		Merger:   merger,
		Limit:    nEvents,
		Logger:   env.Logger,
		Recorder: env.Metrics,
		Progress: stdout,
	}
	sum, runErr := runner.Run(sources, writer)
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		if err := eventio.Abort(out); err != nil {
			env.Logger.Warn("discard output", "path", output, "error", err)
		}
	} else if err := out.Close(); err != nil {
		runErr = err
	}
	counters := map[string]float64{
		"merged":  float64(sum.Merged),
		"jpsi":    float64(sum.Counts.Jpsi),
		"upsilon": float64(sum.Counts.Upsilon),
		"phi":     float64(sum.Counts.Phi),
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		if err := rec.Finish(ctx, ledger.StatusFailed, counters, runErr); err != nil {
			env.Logger.Error("record run", "error", err)
		}
		return 1
	}
	if sum.StopReason == mixer.StopEndOfInput {
		fmt.Fprintln(stdout, "Reached end of at least one input file.")
	}

	fmt.Fprintf(stdout, "\n%s\n", rule)
	fmt.Fprintln(stdout, "Mixing Summary:")
	fmt.Fprintln(stdout, "----------------------------------------")
	fmt.Fprintf(stdout, "Total events merged: %d\n", sum.Merged)
	fmt.Fprintln(stdout, "Particle counts:")
	fmt.Fprintf(stdout, "  Total J/psi:   %d\n", sum.Counts.Jpsi)
	fmt.Fprintf(stdout, "  Total Upsilon: %d\n", sum.Counts.Upsilon)
	fmt.Fprintf(stdout, "  Total phi:     %d\n", sum.Counts.Phi)
	fmt.Fprintln(stdout, "----------------------------------------")
	fmt.Fprintf(stdout, "Output file: %s\n", output)
	fmt.Fprintln(stdout, rule)

	if err := rec.Finish(ctx, ledger.StatusCompleted, counters, nil); err != nil {
		env.Logger.Error("record run", "error", err)
	}
	return 0
}

func limitLabel(n int) string {
	if n > 0 {
		return strconv.Itoa(n)
	}
	return "all"
}
