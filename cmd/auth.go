package cmd

import (
	"fmt"

	"clippost/pkg/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	authSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	authErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with TikTok",
	Long:  `Complete the TikTok OAuth flow using credentials from .env and cache the token.`,
	RunE:  runAuth,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check credential and token status",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.RequireTikTok(); err != nil {
		return err
	}

	auth := newAuthenticator(cfg)
	if _, err := auth.Authenticate(cmd.Context()); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println(authSuccessStyle.Render("✓ TikTok authentication complete"))
	fmt.Println(authSuccessStyle.Render("  Token saved to: " + cfg.TikTokTokenPath))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	fmt.Println(infoStyle.Render("\nCredential Status:\n"))

	if cfg.TikTokClientKey != "" && cfg.TikTokClientSecret != "" {
		if newAuthenticator(cfg).IsAuthenticated() {
			fmt.Println(authSuccessStyle.Render("✓ TikTok: authenticated (token valid)"))
		} else {
			fmt.Println(authErrorStyle.Render("✗ TikTok: credentials set, but no valid token"))
			fmt.Println(infoStyle.Render("  Run: clippost auth"))
		}
	} else {
		fmt.Println(authErrorStyle.Render("✗ TikTok: missing TIKTOK_CLIENT_KEY or TIKTOK_CLIENT_SECRET"))
	}

	if cfg.GroqAPIKey != "" {
		fmt.Println(authSuccessStyle.Render("✓ Groq: API key configured"))
	} else {
		fmt.Println(authErrorStyle.Render("✗ Groq: missing GROQ_API_KEY (needed for captions)"))
	}

	if cfg.GCSBucket != "" {
		fmt.Println(authSuccessStyle.Render("✓ GCS: caption backup bucket configured"))
	} else {
		fmt.Println(infoStyle.Render("○ GCS: not configured (optional)"))
	}

	fmt.Println()
	return nil
}
