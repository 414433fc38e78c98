// Command shower finalizes pre-finalization records with the stand-in
// engine, retrying each event until it passes the mode's acceptance cuts,
// and writes accepted events in the Asciiv3 format.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"eventmix/internal/blob"
	"eventmix/internal/cli"
	"eventmix/internal/eventio"
	"eventmix/internal/hepmc"
	"eventmix/internal/ledger"
	"eventmix/internal/selection"
	"eventmix/internal/shower"
	"eventmix/internal/toyengine"
)

const (
	wideRule = "======================================================"
	thinRule = "------------------------------------------------------"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "\n====== Shower Processing ======\n")
	fmt.Fprintf(w, "Usage: shower [-mode normal|phi] [flags] input.hepmc output.hepmc [nEvents] [minPhiPt] [minMuonPt] [maxMuonEta] [maxRetry]\n")
	fmt.Fprintf(w, "\nArguments:\n")
	fmt.Fprintf(w, "  input.hepmc : Pre-finalization records\n")
	fmt.Fprintf(w, "  output.hepmc: Output HepMC file\n")
	fmt.Fprintf(w, "  nEvents     : Number of events to process (default: -1, all)\n")
	fmt.Fprintf(w, "  minPhiPt    : Minimum phi pT in GeV, phi mode only (default: 0)\n")
	fmt.Fprintf(w, "  minMuonPt   : Minimum muon pT in GeV (default: 2.5)\n")
	fmt.Fprintf(w, "  maxMuonEta  : Maximum muon |eta| (default: 2.4)\n")
	fmt.Fprintf(w, "  maxRetry    : Maximum finalization attempts per event (default: 1000)\n")
	fmt.Fprintf(w, "\nFlags:\n")
}

// params are the positional tuning values.
type params struct {
	nEvents  int
	cuts     selection.Cuts
	maxRetry int
}

// parsePositional reads [nEvents] [minPhiPt] [minMuonPt] [maxMuonEta]
// [maxRetry]; minPhiPt is present only in phi mode.
func parsePositional(mode selection.Mode, args []string) (params, error) {
	p := params{nEvents: -1, cuts: selection.DefaultCuts(), maxRetry: shower.DefaultMaxRetry}
	type slot struct {
		name  string
		parse func(string) error
	}
	intInto := func(dst *int) func(string) error {
		return func(s string) (err error) { *dst, err = strconv.Atoi(s); return err }
	}
	floatInto := func(dst *float64) func(string) error {
		return func(s string) (err error) { *dst, err = strconv.ParseFloat(s, 64); return err }
	}
	slots := []slot{{"nEvents", intInto(&p.nEvents)}}
	if mode == selection.ModePhi {
		slots = append(slots, slot{"minPhiPt", floatInto(&p.cuts.MinPhiPt)})
	}
	slots = append(slots,
		slot{"minMuonPt", floatInto(&p.cuts.MinMuonPt)},
		slot{"maxMuonEta", floatInto(&p.cuts.MaxMuonEta)},
		slot{"maxRetry", intInto(&p.maxRetry)},
	)
	if len(args) > len(slots) {
		return params{}, fmt.Errorf("too many arguments: %d extra", len(args)-len(slots))
	}
	for i, a := range args {
		if err := slots[i].parse(a); err != nil {
			return params{}, fmt.Errorf("invalid %s %q", slots[i].name, a)
		}
	}
	return p, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shower", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		usage(stderr)
		fs.PrintDefaults()
	}
	modeName := fs.String("mode", string(selection.ModeNormal), "acceptance mode: normal or phi")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")
	seed := fs.Uint64("seed", 0, "engine seed; 0 uses EVENTMIX_SEED or the clock")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 1
	}
	mode, err := selection.ParseMode(*modeName)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	input, output := fs.Arg(0), fs.Arg(1)
	p, err := parsePositional(mode, fs.Args()[2:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	accept, err := selection.ForMode(mode, p.cuts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	env, err := cli.Setup(ctx, cli.Options{
		Tool:        "shower",
		Paths:       []string{input, output},
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

	printBanner(stdout, mode, input, output, p)

	in, err := env.OpenInput(ctx, input)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Cannot open input file: %s\n", input)
		env.Logger.Error("open input", "path", input, "error", err)
		return 1
	}
	defer in.Close()

	engineSeed := env.Settings.Seed
	if *seed != 0 {
		engineSeed = *seed
	}
	engine, err := toyengine.New(hepmc.NewReader(in), toyengine.Config{
		Seed:        engineSeed,
		FailureRate: env.Settings.FinalizeFailureRate,
		PhiRate:     env.Settings.PhiRate,
		PhiMeanPt:   env.Settings.PhiMeanPt,
	})
	if err != nil {
		fmt.Fprintln(stderr, "Engine initialization failed!")
		env.Logger.Error("engine init", "error", err)
		return 1
	}
	env.Logger.Info("engine ready", "seed", engine.Seed())
	if mode == selection.ModePhi && env.Settings.PhiRate == 0 {
		env.Logger.Warn("phi mode without phi production; only phi mesons already in the input can pass")
	}
	retrier, err := shower.NewRetrier(engine, accept, p.maxRetry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	env.Logger.Info("selection ready", "accept", accept.Name(), "max_retry", retrier.MaxRetry())

	rec, err := env.StartRun(ctx, string(mode), []string{input}, output)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	out, err := env.CreateOutput(ctx, output, blob.ContentTypeAsciiv3, "hepmc3", rec.ID())
	if err != nil {
		fmt.Fprintf(stderr, "Error: Cannot open output file: %s\n", output)
		env.Logger.Error("create output", "path", output, "error", err)
		_ = rec.Finish(ctx, ledger.StatusFailed, nil, err)
		return 1
	}
	writer := hepmc.NewWriter3(out)

	fmt.Fprintln(stdout, "Starting event processing...")
	runner := shower.Runner{
		Engine:   engine,
		Retrier:  retrier,
		Sink:     writer,
		Limit:    p.nEvents,
		MaxAbort: env.Settings.MaxAbort,
		Logger:   env.Logger,
		Recorder: env.Metrics,
		Progress: stdout,
	}
	st, runErr := runner.Run(ctx)
	aborted := errors.Is(runErr, shower.ErrGenerationAborted)
	if aborted {
		fmt.Fprintln(stdout, "Event generation aborted prematurely!")
	} else if runErr == nil && (p.nEvents <= 0 || st.Pulled < p.nEvents) {
		fmt.Fprintln(stdout, "Reached end of input file.")
	}
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

	printSummary(stdout, mode, output, p, st)

	counters := map[string]float64{
		"pulled":              float64(st.Pulled),
		"accepted":            float64(st.Accepted),
		"exhausted":           float64(st.Exhausted),
		"attempts":            float64(st.Attempts),
		"finalize_failures":   float64(st.FinalizeFailures),
		"generation_failures": float64(st.GenerationFailures),
		"efficiency_percent":  st.Efficiency(),
	}
	status := ledger.StatusCompleted
	switch {
	case aborted:
		status = ledger.StatusAborted
	case runErr != nil:
		status = ledger.StatusFailed
	}
	if err := rec.Finish(ctx, status, counters, runErr); err != nil {
		env.Logger.Error("record run", "error", err)
	}
	if runErr != nil {
		env.Logger.Error("run failed", "error", runErr)
		return 1
	}
	return 0
}

func printBanner(w io.Writer, mode selection.Mode, input, output string, p params) {
	if mode == selection.ModePhi {
		fmt.Fprintf(w, "\n====== Phi-Enriched Shower Processing ======\n")
	} else {
		fmt.Fprintf(w, "\n=== Standard Shower Processing ===\n")
	}
	fmt.Fprintf(w, "Input:        %s\n", input)
	fmt.Fprintf(w, "Output HepMC: %s\n", output)
	fmt.Fprintf(w, "Events:       %s\n", limitLabel(p.nEvents))
	if mode == selection.ModePhi {
		fmt.Fprintf(w, "Min phi pT:   %g GeV\n", p.cuts.MinPhiPt)
	}
	fmt.Fprintf(w, "Min muon pT:  %g GeV\n", p.cuts.MinMuonPt)
	fmt.Fprintf(w, "Max muon eta: %g\n", p.cuts.MaxMuonEta)
	fmt.Fprintf(w, "Max retries:  %d\n", p.maxRetry)
	fmt.Fprintf(w, "=============================================\n\n")
}

func printSummary(w io.Writer, mode selection.Mode, output string, p params, st shower.Stats) {
	fmt.Fprintf(w, "\n%s\n", wideRule)
	if mode == selection.ModePhi {
		fmt.Fprintln(w, "Phi-Enriched Processing Summary:")
	} else {
		fmt.Fprintln(w, "Processing Summary:")
	}
	fmt.Fprintln(w, thinRule)
	fmt.Fprintln(w, "Selection criteria:")
	if mode == selection.ModePhi {
		fmt.Fprintf(w, "  Phi pT > %g GeV\n", p.cuts.MinPhiPt)
	}
	fmt.Fprintf(w, "  Muon pT > %g GeV, |eta| < %g\n", p.cuts.MinMuonPt, p.cuts.MaxMuonEta)
	fmt.Fprintln(w, thinRule)
	fmt.Fprintf(w, "Total events processed:       %d\n", st.Pulled)
	fmt.Fprintf(w, "Events written (all cuts):    %d (%.2f%%)\n", st.Accepted, st.Efficiency())
	fmt.Fprintf(w, "Events skipped (failed cuts): %d\n", st.Exhausted)
	fmt.Fprintf(w, "Total finalization tries:     %d\n", st.Attempts)
	fmt.Fprintf(w, "Average tries per event:      %.2f\n", st.MeanAttempts())
	if st.GenerationFailures > 0 {
		fmt.Fprintf(w, "Generation failures:          %d\n", st.GenerationFailures)
	}
	fmt.Fprintln(w, thinRule)
	fmt.Fprintln(w, "Particle counts (in written events):")
	fmt.Fprintf(w, "  Total J/psi:   %d\n", st.Counts.Jpsi)
	fmt.Fprintf(w, "  Total Upsilon: %d\n", st.Counts.Upsilon)
	fmt.Fprintf(w, "  Total phi:     %d\n", st.Counts.Phi)
	fmt.Fprintf(w, "  Total muons:   %d\n", st.Counts.Muon)
	fmt.Fprintln(w, thinRule)
	fmt.Fprintf(w, "Output events: %d\n", st.Accepted)
	fmt.Fprintf(w, "Output file:   %s\n", output)
	fmt.Fprintln(w, wideRule)
}

func limitLabel(n int) string {
	if n > 0 {
		return strconv.Itoa(n)
	}
	return "all"
}
