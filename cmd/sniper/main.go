// cmd/sniper/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "sniper",
		Short:        "pump.fun sniper agent",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (yaml/json/toml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(subscriptionCmd())
	rootCmd.AddCommand(positionsCmd())
	rootCmd.AddCommand(tradesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
