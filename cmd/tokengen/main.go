package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/asakaida/relcalc/internal/infrastructure/auth"
	"github.com/asakaida/relcalc/internal/infrastructure/config"
)

var (
	envFlag     string
	subjectFlag string
	scopeFlag   string
	ttlFlag     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "tokengen",
	Short: "Issue access tokens for the analysis history API",
	Long: `Issue bearer tokens signed with SECRET_KEY and ALGORITHM.
Tokens are required by the analysis history endpoints.`,
	Args:         cobra.NoArgs,
	RunE:         runIssue,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.Flags().StringVarP(&subjectFlag, "subject", "s", "", "Token subject (required)")
	rootCmd.Flags().StringVar(&scopeFlag, "scope", "analyses:read", "Token scope")
	rootCmd.Flags().DurationVar(&ttlFlag, "ttl", 0, "Token lifetime (default ACCESS_TOKEN_EXPIRE_MINUTES)")
	_ = rootCmd.MarkFlagRequired("subject")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIssue(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	manager, err := auth.NewTokenManager(
		cfg.Security.SecretKey,
		cfg.Security.Algorithm,
		time.Duration(cfg.Security.AccessTokenExpireMinutes)*time.Minute,
	)
	if err != nil {
		return err
	}

	token, expiresAt, err := manager.Issue(subjectFlag, scopeFlag, ttlFlag)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
