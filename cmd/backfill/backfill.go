// Package backfill ingests the bulletins of a range of past dates
package backfill

import (
	"fmt"

	"fjacquet/aqi-bulletin/cmd/common"
	"fjacquet/aqi-bulletin/cmd/root"
	"fjacquet/aqi-bulletin/internal/batch"

	"github.com/spf13/cobra"
)

var (
	from         string
	to           string
	skipExisting bool
)

// Cmd represents the backfill command
var Cmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fetch AQI bulletins for a range of dates",
	Long: `Fetch and record the bulletin of every date from --from to --to
(inclusive, today by default), one date at a time, pausing
backfill.interval between requests.

Failed dates do not stop the backfill; the command exits 1 if any date
failed. Dates whose bulletin is not yet published are not failures.`,
	RunE: backfillFunc,
}

func init() {
	Cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD or YYYYMMDD)")
	Cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD or YYYYMMDD); defaults to today")
	Cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip dates that already have a record")
}

func backfillFunc(cmd *cobra.Command, args []string) error {
	if from == "" {
		return &common.ExitError{Code: common.ExitFailure, Err: fmt.Errorf("--from is required")}
	}
	appContainer := root.GetContainer()
	if appContainer == nil {
		return fmt.Errorf("container not initialized")
	}

	today := appContainer.GetPipeline().Today()
	start, err := common.ResolveDate(from, today)
	if err != nil {
		return &common.ExitError{Code: common.ExitFailure, Err: err}
	}
	end, err := common.ResolveDate(to, today)
	if err != nil {
		return &common.ExitError{Code: common.ExitFailure, Err: err}
	}
	dr, err := batch.NewDateRange(start, end)
	if err != nil {
		return &common.ExitError{Code: common.ExitFailure, Err: err}
	}

	summary, err := appContainer.NewBackfill(skipExisting).Run(cmd.Context(), dr)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: published=%d not_yet_published=%d failed=%d skipped=%d\n",
		dr, summary.Published, summary.NotYetPublished, summary.Failed, summary.Skipped)
	if err != nil {
		return &common.ExitError{Code: common.ExitFailure, Err: err}
	}
	return nil
}
