package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"clippost/internal/publisher"
	"clippost/internal/storage"
	"clippost/internal/tiktok"
	"clippost/pkg/config"
	"clippost/pkg/httputil"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	publishFile string
	publishDir  string
	publishYes  bool
)

var infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish videos to TikTok",
	Long: `Publish a single video or every .mp4 in a directory to TikTok.
Each video needs a caption sidecar (same name, .txt extension); run
"clippost caption" first for videos that lack one.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishFile, "file", "f", "", "Video file to publish")
	publishCmd.Flags().StringVarP(&publishDir, "dir", "d", "", "Directory of videos to publish")
	publishCmd.Flags().BoolVarP(&publishYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	videos, err := collectVideos(publishFile, publishDir)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		fmt.Println(infoStyle.Render("No videos found, nothing to publish"))
		return nil
	}

	cfg := config.Load()
	if err := cfg.RequireTikTok(); err != nil {
		return err
	}

	if !publishYes {
		var confirmed bool
		if err := huh.NewConfirm().
			Title(fmt.Sprintf("Publish %d video(s) to TikTok?", len(videos))).
			Description(fmt.Sprintf("Privacy level: %s", cfg.Publish.PrivacyLevel)).
			Value(&confirmed).
			Run(); err != nil {
			return err
		}
		if !confirmed {
			fmt.Println(infoStyle.Render("Aborted"))
			return nil
		}
	}

	ctx := cmd.Context()

	token, err := newAuthenticator(cfg).Token(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	client := tiktok.NewClient(tiktok.ClientOptions{
		AccessToken:  token.AccessToken,
		InitURL:      cfg.TikTok.InitURL,
		StatusURL:    cfg.TikTok.StatusURL,
		PrivacyLevel: cfg.Publish.PrivacyLevel,
		HTTPClient:   httputil.NewRetryClient(&http.Client{Timeout: 2 * time.Minute}, httputil.DefaultRetryConfig()),
	})

	session := publisher.NewSession(client, publisher.SessionConfig{
		PollInterval:    time.Duration(cfg.Publish.PollInterval) * time.Second,
		PollMaxAttempts: cfg.Publish.PollMaxAttempts,
	})

	outcomes := publisher.NewBatch(session, cfg.Publish.Workers).Run(ctx, videos)

	fmt.Print(publisher.NewReport(outcomes).Render())
	return nil
}

// collectVideos resolves the --file/--dir pair into a video list. Exactly one
// of the two must be set.
func collectVideos(file, dir string) ([]string, error) {
	switch {
	case file != "" && dir != "":
		return nil, errors.New("--file and --dir are mutually exclusive")
	case file == "" && dir == "":
		return nil, errors.New("please provide --file or --dir")
	case file != "":
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", file, err)
		}
		return []string{file}, nil
	default:
		return storage.ListVideos(dir)
	}
}

func newAuthenticator(cfg *config.Config) *tiktok.Authenticator {
	return tiktok.NewAuthenticator(tiktok.AuthOptions{
		ClientKey:    cfg.TikTokClientKey,
		ClientSecret: cfg.TikTokClientSecret,
		AuthURL:      cfg.TikTok.AuthURL,
		TokenURL:     cfg.TikTok.TokenURL,
		Scopes:       cfg.TikTok.Scopes,
		RedirectPort: cfg.TikTok.RedirectPort,
		TokenPath:    cfg.TikTokTokenPath,
		Timeout:      time.Duration(cfg.TikTok.AuthTimeoutMinutes) * time.Minute,
	})
}
