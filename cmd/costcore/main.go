package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "costcore",
	Short: "Inventory accounting and landed-cost allocation core",
	Long: `costcore runs the monthly e-commerce cost-closing pipeline: it
allocates landed cost (freight, clearance, duty) across inbound batches,
normalizes marketplace sales into an internal-SKU demand stream, consumes
inventory FIFO against that demand, and closes the month into an
immutable summary.`,
	Version: "0.1.0",
}

var (
	cfgFile string
	tenant  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML/JSON/TOML, read by viper)")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", "", "tenant / company code scoping the writer lock (default tenant if empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
