package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcom-dev/elevresolve/internal/model"
)

type batchRecord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func newBatchCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Resolve a newline-delimited JSON file of {lat,lon} points, preserving order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			var queries []model.Query
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				var rec batchRecord
				if err := json.Unmarshal([]byte(line), &rec); err != nil {
					return fmt.Errorf("parsing line %q: %w", line, err)
				}
				queries = append(queries, model.Query{Lat: rec.Lat, Lon: rec.Lon})
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			results, err := a.resolver.Batch(context.Background(), queries)
			if err != nil {
				return err
			}
			for _, res := range results {
				printResult(res)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to a newline-delimited JSON file of {lat,lon} records")
	cmd.MarkFlagRequired("file")

	return cmd
}
