package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chartbuilder-go/internal/schema"
	"chartbuilder-go/internal/service"
)

var inferSampleSize int

var inferCmd = &cobra.Command{
	Use:   "infer <file.json>",
	Short: "Discover the field catalog of a JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := &service.FileSource{Path: args[0]}
		data, err := src.Fetch(context.Background())
		if err != nil {
			return err
		}

		opt := schema.DefaultOptions()
		if inferSampleSize > 0 {
			opt.SampleSize = inferSampleSize
		}
		fields := schema.InferWithOptions(data, opt)

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(fields)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tTYPE")
		for _, f := range fields {
			fmt.Fprintf(w, "%s\t%s\n", f.Path, f.Type)
		}
		return w.Flush()
	},
}

func init() {
	inferCmd.Flags().IntVar(&inferSampleSize, "sample-size", 0, "array elements to sample (default 1)")
}
