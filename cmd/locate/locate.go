// Package locate prints the bulletin URL for a date
package locate

import (
	"fmt"

	"fjacquet/aqi-bulletin/cmd/common"
	"fjacquet/aqi-bulletin/cmd/root"

	"github.com/spf13/cobra"
)

var date string

// Cmd represents the locate command
var Cmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the AQI bulletin URL for a date",
	Long:  `Print the location of the bulletin PDF for --date (today by default) without fetching it.`,
	RunE:  locateFunc,
}

func init() {
	Cmd.Flags().StringVar(&date, "date", "", "Target date (YYYY-MM-DD or YYYYMMDD); defaults to today")
}

func locateFunc(cmd *cobra.Command, args []string) error {
	appContainer := root.GetContainer()
	if appContainer == nil {
		return fmt.Errorf("container not initialized")
	}

	target, err := common.ResolveDate(date, appContainer.GetPipeline().Today())
	if err != nil {
		return &common.ExitError{Code: common.ExitFailure, Err: err}
	}
	fmt.Fprintln(cmd.OutOrStdout(), appContainer.GetLocator().URL(target))
	return nil
}
