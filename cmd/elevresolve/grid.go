package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcom-dev/elevresolve/internal/model"
)

func newGridCmd(a *app) *cobra.Command {
	var minLat, minLon, maxLat, maxLon float64
	var gridSize int

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Resolve a regular lat/lon grid over a bounding box, printed row-major.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.resolver.Grid(context.Background(), minLat, minLon, maxLat, maxLon, gridSize, model.Query{})
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				return enc.Encode(rows)
			}
			for r, row := range rows {
				for c, res := range row {
					if res.ElevationM == nil {
						fmt.Printf("[%d,%d] none\n", r, c)
						continue
					}
					fmt.Printf("[%d,%d] %.3f\n", r, c, *res.ElevationM)
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&minLat, "min-lat", 0, "bounding box min latitude")
	cmd.Flags().Float64Var(&minLon, "min-lon", 0, "bounding box min longitude")
	cmd.Flags().Float64Var(&maxLat, "max-lat", 0, "bounding box max latitude")
	cmd.Flags().Float64Var(&maxLon, "max-lon", 0, "bounding box max longitude")
	cmd.Flags().IntVar(&gridSize, "grid-size", 5, "number of samples per axis")

	return cmd
}
