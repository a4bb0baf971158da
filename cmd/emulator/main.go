package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"BCISpeller/internal/app/emulator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	p := emulator.Params{
		Strategy:  "single",
		GridSize:  4,
		TP:        0.8,
		TN:        0.8,
		MinReps:   1,
		MaxReps:   10,
		Trials:    10000,
		Threshold: 0.9,
		Seed:      1,
		Step:      176 * time.Millisecond,
		Baseline:  200 * time.Millisecond,
	}

	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Estimate selection accuracy vs repetitions",
		Long: "Monte-Carlo estimate of speller accuracy for a classifier with the given " +
			"true positive and true negative rates, using the real flashing strategies.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			sugar := logger.Sugar()

			started := time.Now()
			sugar.Infow("Emulation started",
				"strategy", p.Strategy, "grid", p.GridSize,
				"tp", p.TP, "tn", p.TN, "trials", p.Trials)
			res, err := emulator.Run(cmd.Context(), p)
			if err != nil {
				sugar.Errorw("Emulation failed", "error", err)
				return err
			}
			sugar.Infow("Emulation finished", "took", time.Since(started).String())

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "reps\taccuracy\ttrial time\t")
			for _, pt := range res.Points {
				fmt.Fprintf(w, "%d\t%.4f\t%s\t\n", pt.Repetitions, pt.Accuracy, pt.TrialTime)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if best, ok := res.Best(); ok {
				fmt.Fprintf(out, "\nminimal repetitions for %.2f: %d (trial %s)\n", p.Threshold, best.Repetitions, best.TrialTime)
			} else {
				fmt.Fprintf(out, "\nthreshold %.2f not reached up to %d repetitions\n", p.Threshold, p.MaxReps)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&p.Strategy, "strategy", "s", p.Strategy, "flashing strategy: single|rowcol")
	f.IntVarP(&p.GridSize, "grid", "g", p.GridSize, "grid size n for n×n keyboard")
	f.Float64Var(&p.TP, "tp", p.TP, "probability of a positive score on a target step")
	f.Float64Var(&p.TN, "tn", p.TN, "probability of a negative score on a non-target step")
	f.IntVar(&p.MinReps, "min-reps", p.MinReps, "smallest repetition count")
	f.IntVar(&p.MaxReps, "max-reps", p.MaxReps, "largest repetition count")
	f.IntVarP(&p.Trials, "trials", "n", p.Trials, "trials per repetition count")
	f.Float64Var(&p.Threshold, "threshold", p.Threshold, "target accuracy")
	f.Uint64Var(&p.Seed, "seed", p.Seed, "random seed")
	f.DurationVar(&p.Step, "step", p.Step, "flash + break duration")
	f.DurationVar(&p.Baseline, "baseline", p.Baseline, "pause before the first flash")
	f.IntVarP(&p.Workers, "workers", "w", p.Workers, "parallel workers, 0 means unlimited")
	return cmd
}
