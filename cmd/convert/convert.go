// Package convert handles conversion of a locally saved bulletin PDF
package convert

import (
	"fmt"
	"path/filepath"
	"time"

	"fjacquet/aqi-bulletin/cmd/common"
	"fjacquet/aqi-bulletin/cmd/root"
	"fjacquet/aqi-bulletin/internal/locator"

	"github.com/spf13/cobra"
)

var date string

// Cmd represents the convert command
var Cmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a local AQI bulletin PDF to CSV",
	Long: `Convert a bulletin PDF already on disk (--input) into the daily
CSV record. The date comes from --date, or from the bulletin file name
(AQI_Bulletin_YYYYMMDD.pdf) when omitted.`,
	RunE: convertFunc,
}

func init() {
	Cmd.Flags().StringVar(&date, "date", "", "Bulletin date (YYYY-MM-DD or YYYYMMDD); defaults to the file name date")
}

func convertFunc(cmd *cobra.Command, args []string) error {
	input := root.SharedFlags.Input
	if input == "" {
		return &common.ExitError{Code: common.ExitFailure, Err: fmt.Errorf("--input is required")}
	}

	appContainer := root.GetContainer()
	if appContainer == nil {
		return fmt.Errorf("container not initialized")
	}

	target, err := bulletinDate(input)
	if err != nil {
		return &common.ExitError{Code: common.ExitFailure, Err: err}
	}

	res, err := appContainer.GetPipeline().Convert(cmd.Context(), target, input)
	if err != nil {
		return common.OutcomeError(res, err, common.ExitFailure, root.GetLogger())
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.OutputPath)
	return nil
}

func bulletinDate(input string) (time.Time, error) {
	if date != "" {
		return common.ResolveDate(date, time.Time{})
	}
	parsed, err := locator.ParseFileName(filepath.Base(input))
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot infer bulletin date from %q, pass --date: %w", input, err)
	}
	return parsed, nil
}
