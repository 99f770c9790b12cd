package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"race-predictor/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored predictions",
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored predictions of one model as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		out, _ := cmd.Flags().GetString("out")
		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")

		start, end, err := parseRange(since, until)
		if err != nil {
			return err
		}

		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		w := cmd.OutOrStdout()
		if out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		n, err := store.ExportCSV(model, start, end, w)
		if err != nil {
			return err
		}
		log.Info().Str("model", model).Int("records", n).Str("out", out).Msg("History exported")
		return nil
	},
}

var historyGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one stored prediction as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()
		return printRecord(cmd.OutOrStdout(), store, args[0])
	},
}

var historyCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print how many predictions are stored for a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()
		return printCount(cmd.OutOrStdout(), store, model)
	},
}

func init() {
	historyExportCmd.Flags().StringP("model", "m", "", "Model name")
	historyExportCmd.Flags().StringP("out", "o", "-", "Output file, - for stdout")
	historyExportCmd.Flags().String("since", "", "First day to include (YYYY-MM-DD)")
	historyExportCmd.Flags().String("until", "", "Last day to include (YYYY-MM-DD)")
	_ = historyExportCmd.MarkFlagRequired("model")

	historyCountCmd.Flags().StringP("model", "m", "", "Model name")
	_ = historyCountCmd.MarkFlagRequired("model")

	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyGetCmd)
	historyCmd.AddCommand(historyCountCmd)
}

func openHistory() (*storage.Store, error) {
	if settings.DataPath == "" {
		return nil, fmt.Errorf("no data path configured")
	}
	return storage.New(settings.DataPath)
}

func printRecord(w io.Writer, store *storage.Store, id string) error {
	rec, err := store.Get(id)
	if err != nil {
		return err
	}
	return printJSON(w, rec)
}

func printCount(w io.Writer, store *storage.Store, model string) error {
	n, err := store.Count(model)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\t%d\n", model, n)
	return err
}

// parseRange turns day bounds into an inclusive UTC time range. An open
// start is the Unix epoch, an open end is now.
func parseRange(since, until string) (time.Time, time.Time, error) {
	start := time.Unix(0, 0).UTC()
	end := time.Now().UTC()
	if since != "" {
		t, err := time.Parse(dateLayout, since)
		if err != nil {
			return start, end, fmt.Errorf("invalid --since: %w", err)
		}
		start = t
	}
	if until != "" {
		t, err := time.Parse(dateLayout, until)
		if err != nil {
			return start, end, fmt.Errorf("invalid --until: %w", err)
		}
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("--until is before --since")
	}
	return start, end, nil
}
