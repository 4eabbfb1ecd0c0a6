package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/service"
)

var runFlags struct {
	xAxis      string
	yAxis      string
	operation  string
	groupBy    string
	sortDir    string
	formula    string
	mode       string
	exclude    []string
	sourceName string
}

var runCmd = &cobra.Command{
	Use:   "run [file.json]",
	Short: "Run the chart pipeline over a JSON file or a named source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var src service.Source
		switch {
		case runFlags.sourceName != "":
			named, err := openNamedSource(runFlags.sourceName)
			if err != nil {
				return err
			}
			src = named
		case len(args) == 1:
			src = &service.FileSource{Path: args[0]}
		default:
			return fmt.Errorf("provide a JSON file or --source")
		}
		defer src.Close()

		data, err := src.Fetch(context.Background())
		if err != nil {
			return err
		}

		cfg := models.DatasetConfig{
			XAxis:          runFlags.xAxis,
			YAxis:          runFlags.yAxis,
			YAxisOperation: models.AggregationOp(runFlags.operation),
			GroupBy:        runFlags.groupBy,
			Sort:           runFlags.sortDir,
			Formula:        runFlags.formula,
			ExcludedFields: runFlags.exclude,
		}

		result := service.Run(service.RunInput{
			Data:      data,
			Config:    cfg,
			Mode:      runFlags.mode,
			FirstLoad: cfg.XAxis == "",
			Seq:       1,
		})

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		return printResult(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.xAxis, "x", "", "x-axis field path (auto-selected when empty)")
	runCmd.Flags().StringVar(&runFlags.yAxis, "y", "", "y-axis field path")
	runCmd.Flags().StringVar(&runFlags.operation, "op", "count", "aggregation: count, sum, average, min, max")
	runCmd.Flags().StringVar(&runFlags.groupBy, "group-by", "", "secondary field path for sub-series")
	runCmd.Flags().StringVar(&runFlags.sortDir, "sort", "", "sort points by value: asc or desc")
	runCmd.Flags().StringVar(&runFlags.formula, "formula", "", "display formula, e.g. '$ {val / 100}'")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", models.ModeChart, "output mode: chart or table")
	runCmd.Flags().StringSliceVar(&runFlags.exclude, "exclude", nil, "columns to hide in table mode")
	runCmd.Flags().StringVar(&runFlags.sourceName, "source", "", "named source from sources.toml")
}

func printResult(result models.RunResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	if result.Table != nil {
		for i, col := range result.Table.Columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, col)
		}
		fmt.Fprintln(w)
		for _, row := range result.Table.Rows {
			for i, col := range result.Table.Columns {
				if i > 0 {
					fmt.Fprint(w, "\t")
				}
				fmt.Fprintf(w, "%v", row[col])
			}
			fmt.Fprintln(w)
		}
	} else {
		fmt.Fprintln(w, "SERIES\tX\tY\tDISPLAY")
		for _, s := range result.Series {
			for _, p := range s.Points {
				fmt.Fprintf(w, "%s\t%v\t%g\t%s\n", s.Name, p.X, p.Y, p.Display)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, "warning:", d)
	}
	return nil
}
