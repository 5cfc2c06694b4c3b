package main

import (
	"github.com/spf13/cobra"

	"github.com/interopkit/voucher/internal"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "voucher",
	Short: "Voucher token client",
	Long:  "Obtain OAuth2 voucher tokens from a federated data platform using a registered RSA key, and inspect the keys involved.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetupLogger(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./voucher.yaml or ~/.config/voucher/voucher.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")

	registerCompletion(rootCmd, completionInput{
		flagName:     "log-level",
		completeFunc: fixedCompletion("debug", "info", "warn", "error"),
	})
	registerCompletion(rootCmd, completionInput{
		flagName:     "config",
		completeFunc: fileCompletion,
	})

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(inspectCmd)
}
