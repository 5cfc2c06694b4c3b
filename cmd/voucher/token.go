package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/interopkit/voucher"
	"github.com/interopkit/voucher/internal"
)

var (
	tokenScopes  []string
	tokenNoCache bool
	tokenTimeout time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Obtain a voucher access token",
	Long: `Load the configured RSA key, sign a client assertion, and exchange it for
a voucher token at the platform's token endpoint.

The token is printed to stdout. When stdout is not a terminal only the bare
token is printed, so the command composes with curl and friends. Issued
vouchers are cached on disk and reused until they expire.`,
	Example: `  voucher token
  voucher token --scope accounts:read --scope accounts:write
  curl -H "Authorization: Bearer $(voucher token)" https://api.example.org/`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringSliceVarP(&tokenScopes, "scope", "s", nil, "Requested scope (repeatable; default: configured scopes)")
	tokenCmd.Flags().BoolVar(&tokenNoCache, "no-cache", false, "Skip the voucher cache for this request")
	tokenCmd.Flags().DurationVar(&tokenTimeout, "timeout", 30*time.Second, "Overall timeout for the exchange")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	scopes := tokenScopes
	if len(scopes) == 0 {
		scopes = cfg.Token.Scopes
	}

	var cache *internal.TokenCache
	if !tokenNoCache && !cfg.Cache.Disabled {
		cachePath, err := cfg.CachePath()
		if err != nil {
			return err
		}
		cache, err = internal.OpenTokenCache(cachePath)
		if err != nil {
			return err
		}
		defer cache.Close()

		if _, err := cache.Purge(); err != nil {
			slog.Warn("purging voucher cache", "error", err)
		}
		if cached, err := cache.Get(cfg.Token.Endpoint, cfg.Client.ID, scopes); err != nil {
			slog.Warn("reading voucher cache", "error", err)
		} else if cached != nil {
			printToken(cached)
			return nil
		}
	}

	password := voucher.NewSecret(cfg.Key.Password)
	defer password.Destroy()

	key, err := voucher.LoadPrivateKey(cfg.Key.Path, password)
	if err != nil {
		return err
	}

	assertion, err := voucher.BuildClientAssertion(key, voucher.AssertionConfig{
		ClientID:  cfg.Client.ID,
		Audience:  cfg.Audience(),
		KeyID:     cfg.Key.KeyID,
		Algorithm: cfg.Key.Algorithm,
		Lifetime:  cfg.Token.AssertionLifetime,
	})
	if err != nil {
		return err
	}

	client, err := voucher.NewTokenClient(cfg.Token.Endpoint, voucher.TokenClientOptions{
		Timeout:          tokenTimeout,
		UseEmbeddedRoots: cfg.Token.UseEmbeddedRoots,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), tokenTimeout)
	defer cancel()

	token, err := client.FetchVoucher(ctx, assertion, scopes)
	if err != nil {
		return err
	}

	if cache != nil {
		if err := cache.Put(cfg.Token.Endpoint, cfg.Client.ID, scopes, token); err != nil {
			slog.Warn("writing voucher cache", "error", err)
		}
	}

	printToken(token)
	return nil
}

// printToken writes the voucher to stdout: annotated for humans, bare for
// pipes.
func printToken(token *voucher.TokenResponse) {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("%s token, expires in %ds", token.TokenType, token.ExpiresIn)
		if token.Scope != "" {
			fmt.Printf(" (scope: %s)", token.Scope)
		}
		fmt.Printf(":\n%s\n", token.AccessToken)
		return
	}
	fmt.Println(token.AccessToken)
}
