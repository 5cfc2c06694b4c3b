package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/interopkit/voucher"
	"github.com/interopkit/voucher/internal"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <key.pem>",
	Short: "Display key information",
	Long: `Show structural information about an RSA private key file: encoding
variant, size, subject key identifier, and the registration-ready public
key. Private material is never printed.

The password for encrypted keys is taken from VOUCHER_KEY_PASSWORD.`,
	Example: `  voucher inspect client.pem
  voucher inspect client.pem --format json
  VOUCHER_KEY_PASSWORD=secret voucher inspect encrypted.pem`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text, json, or yaml")

	registerCompletion(inspectCmd, completionInput{
		flagName:     "format",
		completeFunc: fixedCompletion("text", "json", "yaml"),
	})
}

func runInspect(cmd *cobra.Command, args []string) error {
	password := voucher.NewSecret(os.Getenv("VOUCHER_KEY_PASSWORD"))
	defer password.Destroy()

	info, err := internal.InspectKey(args[0], password)
	if err != nil {
		return err
	}

	output, err := internal.FormatKeyInfo(info, inspectFormat)
	if err != nil {
		return err
	}

	fmt.Print(output)
	return nil
}
