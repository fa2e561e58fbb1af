package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"stormlightlabs.org/propline/cmd"
	"stormlightlabs.org/propline/internal/echo"
)

// RootCmd is the root command for the PropLine CLI
var RootCmd = &cobra.Command{
	Use:   "propline",
	Short: "PropLine ingestion, scoring, and server toolkit",
	Long: echo.HeaderStyle().Render("PropLine") + "\n\n" +
		"A toolkit for ingesting PrizePicks-style player projections, ranking\n" +
		"them with an ensemble of scorers, and serving them over HTTP.",
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Path to config file")
	RootCmd.AddCommand(cmd.DbCmd())
	RootCmd.AddCommand(cmd.CacheCmd())
	RootCmd.AddCommand(cmd.ServerCmd())
	serve := cmd.ServerStartCmd()
	serve.Use = "serve"
	RootCmd.AddCommand(serve)
	RootCmd.AddCommand(cmd.IngestOnceCmd())
	RootCmd.AddCommand(cmd.StoreStatsCmd())
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		echo.Error(err.Error())
		if strings.Contains(err.Error(), "configuration error") {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
