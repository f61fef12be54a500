package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/aqi-bulletin/cmd/backfill"
	"fjacquet/aqi-bulletin/cmd/common"
	"fjacquet/aqi-bulletin/cmd/configcmd"
	"fjacquet/aqi-bulletin/cmd/convert"
	"fjacquet/aqi-bulletin/cmd/fetch"
	"fjacquet/aqi-bulletin/cmd/locate"
	"fjacquet/aqi-bulletin/cmd/root"
)

func init() {
	// Environment first so AQI_* values from .env reach the config layer.
	// The logger depends on that configuration, so problems go to stderr.
	root.LoadEnv(os.Stderr)

	root.Init()

	root.Cmd.AddCommand(fetch.Cmd)
	root.Cmd.AddCommand(convert.Cmd)
	root.Cmd.AddCommand(backfill.Cmd)
	root.Cmd.AddCommand(locate.Cmd)
	root.Cmd.AddCommand(configcmd.Cmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(common.ExitCode(err))
}
