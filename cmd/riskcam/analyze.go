package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/riskcam/internal/app"
	"github.com/ayusman/riskcam/internal/metrics"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>...",
	Short: "Upload image files for risk analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openJournal(settings)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		a, err := app.New(app.Config{Settings: settings, Metrics: metrics.New(), Store: st})
		if err != nil {
			return err
		}
		defer a.Close()

		results := a.AnalyzeFiles(cmd.Context(), args, os.Stderr)
		fmt.Fprintln(os.Stderr)

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"results": results,
				"summary": app.Summarize(results),
			})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "FILE\tSEVERITY\tSCORE\tINDICATORS")
		for _, r := range results {
			if r.Result.Failed() {
				fmt.Fprintf(w, "%s\tERROR\t-\t%s\n", r.Path, r.Result.Error)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%.3f\t%v\n", r.Path, r.Severity, r.Result.Score, r.Result.Indicators)
		}
		w.Flush()

		s := app.Summarize(results)
		fmt.Printf("\n%d files: %d high, %d moderate, %d low, %d failed\n", s.Total, s.High, s.Moderate, s.Low, s.Failed)
		if s.Failed == s.Total {
			return fmt.Errorf("no file could be analyzed")
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
