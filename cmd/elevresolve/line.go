package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jcom-dev/elevresolve/internal/model"
)

func newLineCmd(a *app) *cobra.Command {
	var fromLat, fromLon, toLat, toLon float64
	var numPoints int

	cmd := &cobra.Command{
		Use:   "line",
		Short: "Resolve evenly spaced samples between two endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.resolver.Line(context.Background(),
				model.Query{Lat: fromLat, Lon: fromLon},
				model.Query{Lat: toLat, Lon: toLon},
				numPoints,
			)
			if err != nil {
				return err
			}
			for _, res := range results {
				printResult(res)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&fromLat, "from-lat", 0, "start latitude")
	cmd.Flags().Float64Var(&fromLon, "from-lon", 0, "start longitude")
	cmd.Flags().Float64Var(&toLat, "to-lat", 0, "end latitude")
	cmd.Flags().Float64Var(&toLon, "to-lon", 0, "end longitude")
	cmd.Flags().IntVar(&numPoints, "num-points", 10, "number of evenly spaced samples (>= 2)")

	return cmd
}
