package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/eduinsight/chart"
	"github.com/YuminosukeSato/eduinsight/client"
	"github.com/YuminosukeSato/eduinsight/page"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/registry"
)

// Model names accepted by predict.
var predictModels = []string{"linear-regression", "naive-bayes", "knn", "svm", "decision-tree", "ann"}

// parseFields turns name=value pairs into form values.
func parseFields(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.NewValidationError("field", "must be name=value", p)
		}
		out[name] = value
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// submit fills a page controller and submits it. The validation modal and
// the inline error are printed the way the page would show them.
func submit[T any](ctx context.Context, w io.Writer, c *page.Controller[T], values map[string]string) (*T, error) {
	if err := c.SetAll(values); err != nil {
		return nil, err
	}
	err := c.Submit(ctx)
	st := c.State()
	if st.Modal.Visible {
		fmt.Fprintf(w, "%s\n%s\n", st.Modal.Title, st.Modal.Message)
		return nil, err
	}
	if err != nil {
		return nil, errors.New(st.Error)
	}
	return st.Result, nil
}

func runPage[T any](ctx context.Context, w io.Writer, c *page.Controller[T], values map[string]string) error {
	res, err := submit(ctx, w, c, values)
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}

func (a *app) newPredictCmd() *cobra.Command {
	var (
		fields  []string
		k       int
		periods int
		svgPath string
	)
	cmd := &cobra.Command{
		Use:   "predict <model>",
		Short: "Submit a model page form to the API and print the result",
		Long: `Fill the form of a model page from --field flags and submit it to the API.
Required fields left out show the validation message instead of sending a
request.

Models: ` + strings.Join(predictModels, ", ") + `

Example: eduinsight predict naive-bayes --field age=17 --field studytime=2 \
  --field absences=4 --field G1=12 --field G2=13`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: predictModels,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseFields(fields)
			if err != nil {
				return err
			}
			cl := client.New(a.cfg.Client.BaseURL)
			ctx, w := cmd.Context(), cmd.OutOrStdout()

			switch args[0] {
			case "linear-regression":
				return runPage(ctx, w, page.LinearRegression(cl), values)
			case "naive-bayes":
				return runPage(ctx, w, page.NaiveBayes(cl), values)
			case "knn":
				return runPage(ctx, w, page.KNN(cl, k), values)
			case "svm":
				return runPage(ctx, w, page.SVM(cl), values)
			case "decision-tree":
				return runPage(ctx, w, page.TreePath(cl), values)
			case "ann":
				res, err := submit(ctx, w, page.GradeForecast(cl, periods), values)
				if err != nil {
					return err
				}
				if svgPath != "" {
					if err := writeTimelineSVG(svgPath, res); err != nil {
						return err
					}
				}
				return writeJSON(w, res)
			default:
				return errors.NewValidationError("model", "must be one of "+strings.Join(predictModels, ", "), args[0])
			}
		},
	}
	cmd.Flags().StringArrayVar(&fields, "field", nil, "form field as name=value (repeatable)")
	cmd.Flags().IntVar(&k, "k", registry.DefaultK, "neighbours for knn")
	cmd.Flags().IntVar(&periods, "periods", registry.DefaultPeriods, "forecast periods for ann")
	cmd.Flags().StringVar(&svgPath, "svg", "", "write the ann forecast chart to this file")
	return cmd
}

func writeTimelineSVG(path string, res *registry.GradeForecast) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	c := chart.TimelineChart(chart.Timeline{
		Labels:        res.PeriodLabels,
		Optimistic:    res.Timeline.Optimistic,
		Realistic:     res.Timeline.Realistic,
		Conservative:  res.Timeline.Conservative,
		NoImprovement: res.Timeline.NoImprovement,
	})
	if err := c.WriteSVG(f); err != nil {
		return err
	}
	return f.Close()
}
