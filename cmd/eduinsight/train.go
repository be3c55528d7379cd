package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/eduinsight/registry"
	"github.com/YuminosukeSato/eduinsight/student"
)

func (a *app) newTrainCmd() *cobra.Command {
	tc := registry.DefaultTrainConfig()
	var hidden []int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train every model on the dataset and save the artifacts",
		Long: `Train all seven models concurrently, save them to the model directory and
print the held-out evaluation.

Example: eduinsight train --seed 7 --test-size 0.25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("hidden-layers") {
				tc.HiddenLayers = hidden
			}
			ds, err := student.Load(a.cfg.Data.Path())
			if err != nil {
				return err
			}
			report, err := registry.New(a.cfg.Models.Dir).Retrain(cmd.Context(), ds, tc)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, a.cfg.Models.Dir)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&tc.TestSize, "test-size", tc.TestSize, "held-out fraction")
	f.Int64Var(&tc.Seed, "seed", tc.Seed, "random seed for splits and model initialisation")
	f.IntVar(&tc.NNeighbors, "neighbors", tc.NNeighbors, "k of the nearest-neighbours model")
	f.Float64Var(&tc.SVMC, "svm-c", tc.SVMC, "SVM regularisation")
	f.IntVar(&tc.TreeMaxDepth, "tree-max-depth", tc.TreeMaxDepth, "decision tree depth limit")
	f.IntVar(&tc.MaxIter, "max-iter", tc.MaxIter, "neural network iteration limit")
	f.IntSliceVar(&hidden, "hidden-layers", tc.HiddenLayers, "neural network hidden layer sizes")
	return cmd
}

func formatMetrics(m registry.Metrics) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, " ")
}

func printReport(w io.Writer, r *registry.TrainReport, dir string) {
	fmt.Fprintf(w, "samples: %d (classification %d/%d, regression %d/%d)\n",
		r.Samples,
		r.ClassificationSplit.Train, r.ClassificationSplit.Test,
		r.RegressionSplit.Train, r.RegressionSplit.Test)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tTEST\tTRAIN\tMS")
	for _, ev := range r.Models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", ev.Model, formatMetrics(ev.Test), formatMetrics(ev.Train), ev.DurationMs)
	}
	tw.Flush()
	fmt.Fprintf(w, "saved to %s\n", dir)
}
