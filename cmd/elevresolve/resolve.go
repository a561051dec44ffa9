package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jcom-dev/elevresolve/internal/model"
)

func newResolveCmd(a *app) *cobra.Command {
	var lat, lon float64
	var preferredProvider string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the elevation at a single (lat, lon) point.",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.resolver.Point(context.Background(), model.Query{
				Lat: lat, Lon: lon, PreferredProvider: preferredProvider,
			})
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in [-90, 90]")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in [-180, 180]")
	cmd.Flags().StringVar(&preferredProvider, "provider", "", "preferred provider id to try first")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")

	return cmd
}
