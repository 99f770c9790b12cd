package main

import (
	"io"
	"os"

	"race-predictor/internal/batch"
	"race-predictor/internal/common"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score a CSV of observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		input, _ := cmd.Flags().GetString("input")
		out, _ := cmd.Flags().GetString("out")

		var r io.Reader = cmd.InOrStdin()
		if input != "-" {
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		observations, err := batch.LoadObservations(r, common.FieldCircuit, common.FieldManufacturer, common.FieldClass)
		if err != nil {
			return err
		}

		svc, err := loadService(true)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		_, err = batch.Run(cmd.Context(), svc, model, observations, w)
		return err
	},
}

func init() {
	batchCmd.Flags().StringP("model", "m", "", "Model name (lap_time or car_class)")
	batchCmd.Flags().StringP("input", "i", "-", "Observations CSV, - for stdin")
	batchCmd.Flags().StringP("out", "o", "-", "Results CSV, - for stdout")
	_ = batchCmd.MarkFlagRequired("model")
}
