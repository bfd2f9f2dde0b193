package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for the embedded database and archived digests"`

	// Application configuration
	NewslettersDir   string `long:"newsletters-dir" env:"NEWSLETTERS_DIR" default:"./newsletters" description:"Directory containing newsletter bootstrap files"`
	Port             string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl          string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://digest.example.com)"`
	MaxConcurrency   int    `long:"max-concurrency" env:"MAX_CONCURRENCY" default:"6" description:"Maximum in-flight feed fetches per run (not read by the pipeline, which uses the max_concurrency setting, default 6)"`
	FeedTimeout      int    `long:"feed-timeout" env:"FEED_TIMEOUT" default:"10" description:"Per-feed HTTP timeout in seconds"`
	AITimeout        int    `long:"ai-timeout" env:"AI_TIMEOUT" default:"60" description:"Per-attempt AI provider timeout in seconds"`
	EmailTimeout     int    `long:"email-timeout" env:"EMAIL_TIMEOUT" default:"30" description:"Email transport timeout in seconds"`
	RunDeadline      int    `long:"run-deadline" env:"RUN_DEADLINE" default:"480" description:"Whole-run soft deadline in seconds"`
	RunRetentionDays int    `long:"run-retention-days" env:"RUN_RETENTION_DAYS" default:"30" description:"Delete runs older than this many days"`
	APIAccessKey     string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`
	AllowedOrigin    string `long:"allowed-origin" env:"ALLOWED_ORIGIN" description:"Allowed CORS origin for the admin UI"`

	// Provider credentials
	OpenAIAPIKey    string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`
	AnthropicAPIKey string `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key"`
	FinnhubAPIKey   string `long:"finnhub-api-key" env:"FINNHUB_API_KEY" description:"Finnhub API key for market quotes"`
	EmailAPIKey     string `long:"email-api-key" env:"EMAIL_API_KEY" description:"Bearer token for the HTTP email API"`

	// Email configuration
	EmailEndpoint string `long:"email-endpoint" env:"EMAIL_ENDPOINT" default:"https://api.resend.com/emails" description:"HTTP email API endpoint"`
	SMTPHost      string `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host (enables SMTP transport when set)"`
	SMTPPort      int    `long:"smtp-port" env:"SMTP_PORT" default:"587" description:"SMTP port"`
	SMTPUser      string `long:"smtp-user" env:"SMTP_USER" description:"SMTP username"`
	SMTPPassword  string `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
	SMTPTLS       bool   `long:"smtp-tls" env:"SMTP_TLS" description:"Use TLS for SMTP"`
	FromEmail     string `long:"from-email" env:"FROM_EMAIL" default:"digest@localhost" description:"From address for outgoing digests"`
	FromName      string `long:"from-name" env:"FROM_NAME" default:"AI News Digest" description:"From display name for outgoing digests"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"AI News Digest/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Default timezone (e.g., UTC, America/New_York)"`
	DevMode   bool   `long:"dev-mode" env:"DEV_MODE" description:"Development mode flag (.env loading and CORS do not depend on it)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// .env is a development convenience; missing file is not an error.
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DataDir:          raw.DataDir,
		NewslettersDir:   raw.NewslettersDir,
		Port:             raw.Port,
		BaseUrl:          raw.BaseUrl,
		MaxConcurrency:   raw.MaxConcurrency,
		FeedTimeout:      raw.FeedTimeout,
		AITimeout:        raw.AITimeout,
		EmailTimeout:     raw.EmailTimeout,
		RunDeadline:      raw.RunDeadline,
		RunRetentionDays: raw.RunRetentionDays,
		APIAccessKey:     raw.APIAccessKey,
		AllowedOrigin:    raw.AllowedOrigin,
		OpenAIAPIKey:     raw.OpenAIAPIKey,
		AnthropicAPIKey:  raw.AnthropicAPIKey,
		FinnhubAPIKey:    raw.FinnhubAPIKey,
		EmailAPIKey:      raw.EmailAPIKey,
		EmailEndpoint:    raw.EmailEndpoint,
		SMTPHost:         raw.SMTPHost,
		SMTPPort:         raw.SMTPPort,
		SMTPUser:         raw.SMTPUser,
		SMTPPassword:     raw.SMTPPassword,
		SMTPTLS:          raw.SMTPTLS,
		FromEmail:        raw.FromEmail,
		FromName:         raw.FromName,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		DevMode:          raw.DevMode,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg
	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetForTesting replaces the global configuration. Test helper only.
func SetForTesting(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
