package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/copytrader/config"
)

var rootCmd = &cobra.Command{
	Use:   "copytrader",
	Short: "Mirror trading positions from a master account onto slave accounts",
	Long: `Copytrader replicates positions opened and closed on one master
brokerage account onto any number of independent slave accounts, each with
its own broker, symbol naming, and slippage tolerance.

The launcher reads the account registry and runs one isolated process per
account: master processes poll their terminal and broadcast open/close
signals on the bus; slave processes subscribe, translate symbols, check
slippage, execute, and record the ticket correlation.`,
	SilenceUsage: true,
}

var cfgPath string

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Environment overrides may live in a local .env; absence is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (YAML or JSON)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}
