// Package publisher drives TikTok direct-post uploads: a per-video
// Init -> Transfer -> Poll state machine, a bounded worker pool over a batch
// of videos, and the aggregated report.
package publisher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"clippost/internal/caption"
	"clippost/internal/tiktok"
)

// Status string the provider reports while the upload is still processing.
const processingStatus = "PROCESSING_UPLOAD"

// Terminal status synthesized when the status endpoint returns 404, which the
// provider does once processing has finished and the handle expired.
const completedStatus = "COMPLETED"

// DirectPoster is the slice of the TikTok client a session needs.
type DirectPoster interface {
	InitUpload(ctx context.Context, caption string, size int64) (*tiktok.InitResult, error)
	Transfer(ctx context.Context, uploadURL string, data []byte) error
	Status(ctx context.Context, publishID string) (*tiktok.StatusResult, error)
}

type State int

const (
	Published State = iota
	RateLimited
	Failed
)

func (s State) String() string {
	switch s {
	case Published:
		return "published"
	case RateLimited:
		return "rate-limited"
	default:
		return "failed"
	}
}

// Outcome is the terminal result of one video's publish session. A session
// never returns an error: every failure mode becomes an Outcome so one video
// cannot take down its siblings in a batch.
type Outcome struct {
	VideoPath   string
	State       State
	PublishID   string
	FinalStatus string // provider-reported terminal status
	Reason      string // set when State == Failed
}

type SessionConfig struct {
	PollInterval    time.Duration
	PollMaxAttempts int // 0 = poll until a terminal status
	Sleep           func(time.Duration)
}

// Session runs the per-video state machine. It holds no per-video state, so
// one Session is safe to share across workers.
type Session struct {
	api    DirectPoster
	config SessionConfig
}

func NewSession(api DirectPoster, config SessionConfig) *Session {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.Sleep == nil {
		config.Sleep = time.Sleep
	}
	return &Session{api: api, config: config}
}

// Publish walks one video through Init -> Transfer -> Poll. The caption
// sidecar must already exist; without it no network call is made. No step is
// retried once the session has advanced past it.
func (s *Session) Publish(ctx context.Context, videoPath string) Outcome {
	text, err := caption.Read(videoPath)
	if err != nil {
		slog.Warn("Caption file missing, skipping video", "video", videoPath)
		return failure(videoPath, "", "caption missing")
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return failure(videoPath, "", "video not readable")
	}

	slog.Info("Initializing video post", "video", videoPath, "size", info.Size())
	init, err := s.api.InitUpload(ctx, text, info.Size())
	if err != nil {
		slog.Warn("Init failed", "video", videoPath, "error", err)
		return failure(videoPath, "", "bad init response")
	}
	if init.RateLimited {
		slog.Warn("Rate limit reached: too many pending shares", "video", videoPath)
		return Outcome{VideoPath: videoPath, State: RateLimited}
	}

	data, err := os.ReadFile(videoPath)
	if err != nil {
		return failure(videoPath, init.PublishID, "video not readable")
	}

	slog.Info("Uploading video", "video", videoPath, "publish_id", init.PublishID)
	if err := s.api.Transfer(ctx, init.UploadURL, data); err != nil {
		slog.Warn("Upload failed", "video", videoPath, "error", err)
		return failure(videoPath, init.PublishID, "upload failed")
	}

	slog.Info("Waiting for video processing", "video", videoPath, "publish_id", init.PublishID)
	return s.poll(ctx, videoPath, init.PublishID)
}

// poll re-queries the status endpoint until the provider reports a
// non-processing status or the handle is gone. Transient poll errors are
// logged and tolerated.
func (s *Session) poll(ctx context.Context, videoPath, publishID string) Outcome {
	attempts := 0
	for {
		status, err := s.api.Status(ctx, publishID)
		switch {
		case err != nil:
			slog.Warn("Status poll failed, will retry", "video", videoPath, "error", err)
		case status.Gone:
			slog.Info("Status handle gone, processing complete", "video", videoPath)
			return Outcome{VideoPath: videoPath, State: Published, PublishID: publishID, FinalStatus: completedStatus}
		case status.Status != processingStatus:
			slog.Info("Video reached terminal status", "video", videoPath, "status", status.Status)
			return Outcome{VideoPath: videoPath, State: Published, PublishID: publishID, FinalStatus: status.Status}
		}

		if ctx.Err() != nil {
			return failure(videoPath, publishID, "cancelled while polling")
		}

		attempts++
		if s.config.PollMaxAttempts > 0 && attempts >= s.config.PollMaxAttempts {
			return failure(videoPath, publishID, "gave up polling for terminal status")
		}
		s.config.Sleep(s.config.PollInterval)
	}
}

func failure(videoPath, publishID, reason string) Outcome {
	return Outcome{VideoPath: videoPath, State: Failed, PublishID: publishID, Reason: reason}
}
