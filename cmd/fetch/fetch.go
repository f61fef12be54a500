// Package fetch handles the daily bulletin ingestion command
package fetch

import (
	"fmt"

	"fjacquet/aqi-bulletin/cmd/common"
	"fjacquet/aqi-bulletin/cmd/root"

	"github.com/spf13/cobra"
)

var (
	date                 string
	notPublishedExitCode int
)

// Cmd represents the fetch command
var Cmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the AQI bulletin and write its CSV record",
	Long: `Fetch the published AQI bulletin PDF for a date (today in the
configured offset by default), extract its city table and write the
normalized CSV record for that day.

A bulletin that is not yet published exits with --not-published-exit-code
(0 by default) so schedulers can simply retry later.`,
	RunE: fetchFunc,
}

func init() {
	Cmd.Flags().StringVar(&date, "date", "", "Target date (YYYY-MM-DD or YYYYMMDD); defaults to today")
	Cmd.Flags().IntVar(&notPublishedExitCode, "not-published-exit-code", common.ExitOK, "Exit code when the bulletin is not yet published")
}

func fetchFunc(cmd *cobra.Command, args []string) error {
	appContainer := root.GetContainer()
	if appContainer == nil {
		return fmt.Errorf("container not initialized")
	}
	p := appContainer.GetPipeline()

	target, err := common.ResolveDate(date, p.Today())
	if err != nil {
		return &common.ExitError{Code: common.ExitFailure, Err: err}
	}

	res, err := p.Run(cmd.Context(), target)
	if err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), res.OutputPath)
	}
	return common.OutcomeError(res, err, notPublishedExitCode, root.GetLogger())
}
