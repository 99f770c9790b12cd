package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"race-predictor/internal/features"
	"race-predictor/internal/metrics"
	"race-predictor/internal/ml"
	"race-predictor/internal/predict"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the feature vector for one observation",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, obs, err := readRequest(cmd)
		if err != nil {
			return err
		}
		svc, err := loadService(false)
		if err != nil {
			return err
		}
		enc, err := svc.Encode(model, obs)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), enc)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run one observation through a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, obs, err := readRequest(cmd)
		if err != nil {
			return err
		}
		svc, err := loadService(true)
		if err != nil {
			return err
		}
		res, err := svc.Predict(cmd.Context(), ml.PredictRequest{Model: model, Observation: obs})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	for _, c := range []*cobra.Command{encodeCmd, predictCmd} {
		c.Flags().StringP("model", "m", "", "Model name (lap_time or car_class)")
		c.Flags().StringP("input", "i", "-", "Observation JSON file, - for stdin")
		_ = c.MarkFlagRequired("model")
	}
}

// loadService builds the service with metrics on a private registry.
// Encoding never calls a model, so the models are swapped for stubs.
func loadService(withModels bool) (*predict.Service, error) {
	mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))
	loader := predict.NewLoader(settings, mw)
	if !withModels {
		loader = loader.WithModelFactory(encodeOnlyModel)
	}
	return loader.Load()
}

func readRequest(cmd *cobra.Command) (string, features.Observation, error) {
	model, _ := cmd.Flags().GetString("model")
	input, _ := cmd.Flags().GetString("input")

	var r io.Reader = cmd.InOrStdin()
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return "", features.Observation{}, err
		}
		defer f.Close()
		r = f
	}

	var obs features.Observation
	if err := json.NewDecoder(r).Decode(&obs); err != nil {
		return "", features.Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	return model, obs, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
