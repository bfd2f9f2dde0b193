package database

import (
	"time"
)

type NewsletterRepository interface {
	ListNewsletters() ([]Newsletter, error)
	ListActiveNewsletters() ([]Newsletter, error)
	GetNewsletter(id string) (*Newsletter, error)
	GetNewsletterBySlug(slug string) (*Newsletter, error)
	GetNewsletterCount() (int, error)

	CreateNewsletter(n Newsletter) (string, error)
	UpdateNewsletter(n Newsletter) error
	DeleteNewsletter(id string) error

	ListFeeds(newsletterID string) ([]Feed, error)
	ListEnabledFeeds(newsletterID string) ([]Feed, error)
	ReplaceFeeds(newsletterID string, feeds []Feed) error

	ListWatchlist(newsletterID string) ([]string, error)
	ReplaceWatchlist(newsletterID string, symbols []string) error
}

type ArticleRepository interface {
	// CheckSeen reports whether the hash is already in the newsletter's seen set.
	CheckSeen(newsletterID, contentHash string) (bool, error)

	// RecordSighting marks the hash seen and inserts the article
	// (first-seen-wins). Returns the article's database id.
	RecordSighting(newsletterID string, article Article, seenAt time.Time) (string, error)

	ResetSeen(newsletterID string, window time.Duration, now time.Time) (*SeenResetResult, error)
}

type RunRepository interface {
	CreateRun(run Run) error
	FinishRun(run Run) error
	GetRun(runID string) (*Run, error)
	ListRuns(newsletterID string, limit int) ([]Run, error)
	GetRunCount() (int, error)
	HasActiveRun(newsletterID string) (bool, error)

	InsertRunArticles(runID string, entries []RunArticle) error
	GetRunArticles(runID string) ([]RunArticle, error)

	UpsertMarketQuote(quote MarketQuote) error
	GetMarketQuotes(runID string) ([]MarketQuote, error)

	SaveDigest(digest Digest) error
	GetDigest(runID string) (*Digest, error)
	GetLatestDigest() (*Digest, error)

	AppendRunLogs(entries []RunLog) error
	GetRunLogs(runID string) ([]RunLog, error)

	PruneRuns(olderThan time.Time) (int, error)
}

type SettingsRepository interface {
	GetAll() (map[string]string, error)
	Set(key, value string) error
	Settings() (*Settings, error)
}
