package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "raffle",
	Short:         "Raffle ticket sale, escrow and payout server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with RAFFLE_* overrides")

	rootCmd.AddCommand(
		serveCmd(),
		eventsCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "raffle: %v\n", err)
		os.Exit(1)
	}
}
