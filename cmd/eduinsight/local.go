package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/eduinsight/chart"
	"github.com/YuminosukeSato/eduinsight/insight"
	"github.com/YuminosukeSato/eduinsight/page"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// stringFlags registers one string flag per form field. Flag names use
// dashes in place of underscores.
func stringFlags(cmd *cobra.Command, fields []string) map[string]*string {
	out := make(map[string]*string, len(fields))
	for _, name := range fields {
		out[name] = cmd.Flags().String(strings.ReplaceAll(name, "_", "-"), "", name)
	}
	return out
}

func formValues(flags map[string]*string) map[string]string {
	out := make(map[string]string, len(flags))
	for name, v := range flags {
		out[name] = *v
	}
	return out
}

func (a *app) newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run the decision-path classifier locally",
		Long: `Classify a student from attendance, assignment completion and average test
score (all percentages).

Example: eduinsight classify --attendance 80 --assignments 85 --test-score 90`,
		Args: cobra.NoArgs,
	}
	flags := stringFlags(cmd, insight.DecisionFields)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		res, err := submit(cmd.Context(), w, page.DecisionTree(), formValues(flags))
		if err != nil {
			return err
		}
		printDecision(w, res)
		return nil
	}
	return cmd
}

func printDecision(w io.Writer, res *insight.DecisionResult) {
	fmt.Fprintf(w, "Outcome: %s\n\nPath:\n", res.Outcome)
	for i, s := range res.Path {
		fmt.Fprintf(w, "  %d. %s %s: %s\n", i+1, s.Feature, s.Value, s.Result)
	}
	fmt.Fprintln(w, "\nRecommendations:")
	for _, r := range res.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	fmt.Fprintln(w, "\nTree:")
	res.Diagram().Walk(func(n *insight.TreeNode, depth int) {
		mark := " "
		if n.OnPath {
			mark = "*"
		}
		text := n.Feature + " " + n.Condition
		if n.IsLeaf() {
			text = string(n.Label)
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, strings.Repeat("  ", depth), strings.TrimSpace(text))
	})
}

func (a *app) newForecastCmd() *cobra.Command {
	var svgPath string
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Generate the performance trend curves locally",
		Long: `Project the score over the next six months from the current score, weekly
study hours, assignment quality and participation.

Example: eduinsight forecast --current-score 70 --study-hours 10 \
  --assignment-quality 80 --participation 60 --svg forecast.svg`,
		Args: cobra.NoArgs,
	}
	flags := stringFlags(cmd, insight.ForecastFields)
	cmd.Flags().StringVar(&svgPath, "svg", "", "write the chart to this file")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		res, err := submit(cmd.Context(), w, page.Trend(), formValues(flags))
		if err != nil {
			return err
		}
		if svgPath != "" {
			if err := writeTrendSVG(svgPath, *res); err != nil {
				return err
			}
		}
		return writeJSON(w, res)
	}
	return cmd
}

func writeTrendSVG(path string, t insight.Trend) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	if err := chart.TrendChart(t).WriteSVG(f); err != nil {
		return err
	}
	return f.Close()
}
