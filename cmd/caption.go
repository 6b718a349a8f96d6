package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"clippost/internal/caption"
	"clippost/internal/storage"
	"clippost/pkg/config"

	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
)

var (
	captionFile   string
	captionDir    string
	captionBackup bool
)

var captionCmd = &cobra.Command{
	Use:   "caption",
	Short: "Generate caption sidecars for videos",
	Long: `Transcribe each video with Whisper, generate a short caption with
hashtags from the transcript, and write it next to the video as a .txt
sidecar. Videos that already have a sidecar are skipped.`,
	RunE: runCaption,
}

var captionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List captions backed up to the GCS bucket",
	RunE:  runCaptionStatus,
}

func init() {
	captionCmd.Flags().StringVarP(&captionFile, "file", "f", "", "Video file to caption")
	captionCmd.Flags().StringVarP(&captionDir, "dir", "d", "", "Directory of videos to caption")
	captionCmd.Flags().BoolVar(&captionBackup, "backup", false, "Back up generated captions to the GCS bucket")
	captionCmd.AddCommand(captionStatusCmd)
	rootCmd.AddCommand(captionCmd)
}

func runCaption(cmd *cobra.Command, args []string) error {
	videos, err := collectVideos(captionFile, captionDir)
	if err != nil {
		return err
	}

	var pending []string
	for _, video := range videos {
		if caption.Exists(video) {
			slog.Debug("Caption already exists, skipping", "video", video)
			continue
		}
		pending = append(pending, video)
	}
	if len(pending) == 0 {
		fmt.Println(infoStyle.Render("All videos already have captions"))
		return nil
	}

	cfg := config.Load()
	if err := cfg.RequireCaptions(); err != nil {
		return err
	}

	transcriber := caption.NewTranscriber(cfg.GroqAPIKey, cfg.Captions.TranscriptionURL, cfg.Captions.TranscriptionModel)
	generator, err := caption.NewGenerator(cfg.GroqAPIKey, cfg.Captions.Model)
	if err != nil {
		return fmt.Errorf("failed to create caption generator: %w", err)
	}

	ctx := cmd.Context()

	var written []string
	_ = spinner.New().
		Title(fmt.Sprintf("Generating captions for %d video(s)", len(pending))).
		Action(func() {
			written = captionAll(ctx, pending, transcriber, generator, cfg.Captions.Workers)
		}).
		Run()

	fmt.Println(authSuccessStyle.Render(fmt.Sprintf("✓ Wrote %d caption(s), skipped %d, failed %d",
		len(written), len(videos)-len(pending), len(pending)-len(written))))

	if captionBackup && len(written) > 0 {
		if cfg.GCSBucket == "" {
			return fmt.Errorf("--backup requires GCS_BUCKET to be set")
		}
		return backupCaptions(ctx, cfg, written)
	}
	return nil
}

// captionAll runs the transcribe-then-generate pipeline over a bounded worker
// pool and returns the videos whose sidecars were written.
func captionAll(ctx context.Context, videos []string, transcriber *caption.Transcriber, generator *caption.Generator, workers int) []string {
	if workers < 1 {
		workers = 1
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		written []string
	)
	sem := make(chan struct{}, workers)

	for _, video := range videos {
		wg.Add(1)
		go func(video string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := captionOne(ctx, video, transcriber, generator); err != nil {
				slog.Warn("Caption generation failed", "video", video, "error", err)
				return
			}
			mu.Lock()
			written = append(written, video)
			mu.Unlock()
		}(video)
	}
	wg.Wait()

	return written
}

func captionOne(ctx context.Context, video string, transcriber *caption.Transcriber, generator *caption.Generator) error {
	transcript, err := transcriber.Transcribe(ctx, video)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	text, err := generator.Caption(ctx, transcript)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	sidecar, err := caption.Write(video, text)
	if err != nil {
		return err
	}
	slog.Info("Caption written", "video", video, "sidecar", sidecar)
	return nil
}

func runCaptionStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET must be set to inspect caption backups")
	}

	ctx := cmd.Context()

	store, err := storage.NewCaptionStore(ctx, cfg.GCSBucket, cfg.CaptionsFolder)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	objects, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		fmt.Println(infoStyle.Render("No captions backed up yet"))
		return nil
	}

	fmt.Println(infoStyle.Render(fmt.Sprintf("%d caption(s) in gs://%s:", len(objects), cfg.GCSBucket)))
	for _, object := range objects {
		fmt.Println("  " + object)
	}
	return nil
}

func backupCaptions(ctx context.Context, cfg *config.Config, videos []string) error {
	store, err := storage.NewCaptionStore(ctx, cfg.GCSBucket, cfg.CaptionsFolder)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for _, video := range videos {
		object, err := store.Upload(ctx, caption.SidecarPath(video))
		if err != nil {
			return err
		}
		slog.Info("Caption backed up", "object", object)
	}
	return nil
}
