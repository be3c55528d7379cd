package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/student"
)

func (a *app) newExportCmd() *cobra.Command {
	var (
		limit  int
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dataset sample as CSV or XLSX",
		Long: `Write the first --limit records of the dataset with the export columns
(Age, Gender, Mother_Education, ...). "-" writes to stdout.

Example: eduinsight export --limit 100 --format xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := student.Load(a.cfg.Data.Path())
			if err != nil {
				return err
			}
			records := ds.Head(limit)

			var buf bytes.Buffer
			switch format {
			case "csv":
				err = student.WriteCSV(&buf, records)
			case "xlsx":
				err = student.WriteXLSX(&buf, records)
			default:
				return errors.NewValidationError("format", "must be csv or xlsx", format)
			}
			if err != nil {
				return err
			}

			if output == "" {
				output = student.ExportFilename + "." + format
			}
			if output == "-" {
				_, err := buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return errors.Wrapf(err, "write %s", output)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records to %s\n", len(records), output)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of records")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default student_performance_data.<format>)")
	return cmd
}
