package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config.yaml"
	defaultTokenPath  = "./tiktok_token.json"

	defaultAuthURL   = "https://www.tiktok.com/v2/auth/authorize/"
	defaultTokenURL  = "https://open.tiktokapis.com/v2/oauth/token/"
	defaultInitURL   = "https://open.tiktokapis.com/v2/post/publish/inbox/video/init/"
	defaultStatusURL = "https://open.tiktokapis.com/v2/post/publish/inbox/video/status/"

	defaultRedirectPort = 8000
	defaultAuthTimeout  = 5 // minutes

	defaultWorkers      = 4
	defaultPollInterval = 5 // seconds
	defaultPrivacyLevel = "PUBLIC_TO_EVERYONE"

	defaultTranscriptionURL   = "https://api.groq.com/openai/v1/audio/transcriptions"
	defaultTranscriptionModel = "whisper-large-v3"
	defaultCaptionModel       = "llama-3.3-70b-versatile"
)

type Config struct {
	TikTokClientKey    string
	TikTokClientSecret string
	TikTokTokenPath    string
	GroqAPIKey         string
	GCSBucket          string
	CaptionsFolder     string

	TikTok   TikTokConfig   `yaml:"tiktok"`
	Publish  PublishConfig  `yaml:"publish"`
	Captions CaptionsConfig `yaml:"captions"`
}

type TikTokConfig struct {
	AuthURL            string   `yaml:"auth_url"`
	TokenURL           string   `yaml:"token_url"`
	InitURL            string   `yaml:"init_url"`
	StatusURL          string   `yaml:"status_url"`
	Scopes             []string `yaml:"scopes"`
	RedirectPort       int      `yaml:"redirect_port"`
	AuthTimeoutMinutes int      `yaml:"auth_timeout_minutes"`
}

type PublishConfig struct {
	Workers         int    `yaml:"workers"`
	PollInterval    int    `yaml:"poll_interval"`     // seconds between status polls
	PollMaxAttempts int    `yaml:"poll_max_attempts"` // 0 = poll until terminal
	PrivacyLevel    string `yaml:"privacy_level"`
}

type CaptionsConfig struct {
	TranscriptionURL   string `yaml:"transcription_url"`
	TranscriptionModel string `yaml:"transcription_model"`
	Model              string `yaml:"model"`
	Workers            int    `yaml:"workers"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		TikTokClientKey:    os.Getenv("TIKTOK_CLIENT_KEY"),
		TikTokClientSecret: os.Getenv("TIKTOK_CLIENT_SECRET"),
		TikTokTokenPath:    getEnvOrDefault("TIKTOK_TOKEN_PATH", defaultTokenPath),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		CaptionsFolder:     getEnvOrDefault("CAPTIONS_FOLDER", "captions"),
	}

	loadYAMLConfig(cfg)
	applyDefaults(cfg)

	return cfg
}

// RequireTikTok reports the credentials the publish pipeline cannot start
// without. Checked before any work so a misconfigured run fails immediately.
func (c *Config) RequireTikTok() error {
	var missing []string
	if c.TikTokClientKey == "" {
		missing = append(missing, "TIKTOK_CLIENT_KEY")
	}
	if c.TikTokClientSecret == "" {
		missing = append(missing, "TIKTOK_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) RequireCaptions() error {
	if c.GroqAPIKey == "" {
		return fmt.Errorf("missing required credentials: GROQ_API_KEY")
	}
	return nil
}

func loadYAMLConfig(cfg *Config) {
	data, err := os.ReadFile(defaultConfigPath)
	if err != nil {
		slog.Warn("No config.yaml found, using defaults")
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Error("Failed to parse config.yaml", "error", err)
	}
}

func applyDefaults(cfg *Config) {
	applyTikTokDefaults(cfg)
	applyPublishDefaults(cfg)
	applyCaptionsDefaults(cfg)
}

func applyTikTokDefaults(cfg *Config) {
	if cfg.TikTok.AuthURL == "" {
		cfg.TikTok.AuthURL = defaultAuthURL
	}
	if cfg.TikTok.TokenURL == "" {
		cfg.TikTok.TokenURL = defaultTokenURL
	}
	if cfg.TikTok.InitURL == "" {
		cfg.TikTok.InitURL = defaultInitURL
	}
	if cfg.TikTok.StatusURL == "" {
		cfg.TikTok.StatusURL = defaultStatusURL
	}
	if len(cfg.TikTok.Scopes) == 0 {
		cfg.TikTok.Scopes = []string{"user.info.basic", "video.upload"}
	}
	if cfg.TikTok.RedirectPort == 0 {
		cfg.TikTok.RedirectPort = defaultRedirectPort
	}
	if cfg.TikTok.AuthTimeoutMinutes == 0 {
		cfg.TikTok.AuthTimeoutMinutes = defaultAuthTimeout
	}
}

func applyPublishDefaults(cfg *Config) {
	if cfg.Publish.Workers == 0 {
		cfg.Publish.Workers = defaultWorkers
	}
	if cfg.Publish.PollInterval == 0 {
		cfg.Publish.PollInterval = defaultPollInterval
	}
	if cfg.Publish.PrivacyLevel == "" {
		cfg.Publish.PrivacyLevel = defaultPrivacyLevel
	}
}

func applyCaptionsDefaults(cfg *Config) {
	if cfg.Captions.TranscriptionURL == "" {
		cfg.Captions.TranscriptionURL = defaultTranscriptionURL
	}
	if cfg.Captions.TranscriptionModel == "" {
		cfg.Captions.TranscriptionModel = defaultTranscriptionModel
	}
	if cfg.Captions.Model == "" {
		cfg.Captions.Model = defaultCaptionModel
	}
	if cfg.Captions.Workers == 0 {
		cfg.Captions.Workers = defaultWorkers
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
