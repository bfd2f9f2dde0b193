package database

import (
	"time"
)

type Newsletter struct {
	ID               string
	Slug             string
	Name             string
	Timezone         string   // IANA name
	ScheduleTimes    []string // HH:MM, 24h, ordered
	Active           bool
	IncludeWatchlist bool
	NewsletterType   string
	Verbosity        string // low, medium, high
	CustomPrompt     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Feed struct {
	ID           string
	NewsletterID string
	URL          string
	Title        string
	Category     string
	Enabled      bool
	OrderIndex   int
}

type Article struct {
	ID           string
	ContentHash  string
	Source       string // hostname
	Title        string
	CanonicalURL string
	PublishedAt  *time.Time
}

type Run struct {
	RunID           string
	NewsletterID    string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          string // started, success, partial, failed
	FeedsTotal      int
	FeedsOK         int
	ArticlesSeen    int
	ArticlesUsed    int
	AITokensIn      int
	AITokensOut     int
	AIProviderLabel string
	EmailSent       bool
	Error           string
}

type RunArticle struct {
	RunID     string
	ArticleID string
	Rank      int // 1-based, unique within run
	Score     float64
}

type MarketQuote struct {
	RunID         string
	Symbol        string
	Price         float64
	ChangeAmount  float64
	ChangePercent float64
	CapturedAt    time.Time
}

type Digest struct {
	RunID     string
	Subject   string
	HTML      string
	CreatedAt time.Time
}

type RunLog struct {
	RunID       string
	TS          time.Time
	Level       string // info, warn, error
	Message     string
	ContextJSON string
}

// SeenResetResult reports the effect of a windowed seen-hash reset.
type SeenResetResult struct {
	Before  int `json:"before"`
	Deleted int `json:"deleted"`
	After   int `json:"after"`
}
