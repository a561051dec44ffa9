package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jcom-dev/elevresolve/internal/model"
	"github.com/jcom-dev/elevresolve/internal/resolver"
)

func newPathCmd(a *app) *cobra.Command {
	var encoded string
	var numPoints int

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Resolve samples along the arc length of an encoded polyline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			vertices, err := resolver.DecodePolyline(encoded)
			if err != nil {
				return err
			}
			results, err := a.resolver.Path(context.Background(), vertices, numPoints, model.Query{})
			if err != nil {
				return err
			}
			for _, res := range results {
				printResult(res)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&encoded, "polyline", "", "Google-encoded polyline string")
	cmd.Flags().IntVar(&numPoints, "num-points", 10, "number of samples along the path's arc length")
	cmd.MarkFlagRequired("polyline")

	return cmd
}
