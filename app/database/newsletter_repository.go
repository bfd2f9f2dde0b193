package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewsletterRepositoryImpl handles database operations for newsletters,
// their feeds, and their watchlists.
type NewsletterRepositoryImpl struct {
	db *DB
}

var _ NewsletterRepository = (*NewsletterRepositoryImpl)(nil)

func NewNewsletterRepository(db *DB) *NewsletterRepositoryImpl {
	return &NewsletterRepositoryImpl{db: db}
}

const newsletterColumns = `id, slug, name, timezone, schedule_times, active,
	include_watchlist, newsletter_type, verbosity, custom_prompt, created_at, updated_at`

func (r *NewsletterRepositoryImpl) ListNewsletters() ([]Newsletter, error) {
	return r.queryNewsletters(fmt.Sprintf(
		"SELECT %s FROM newsletters ORDER BY created_at", newsletterColumns))
}

func (r *NewsletterRepositoryImpl) ListActiveNewsletters() ([]Newsletter, error) {
	return r.queryNewsletters(fmt.Sprintf(
		"SELECT %s FROM newsletters WHERE active = 1 ORDER BY created_at", newsletterColumns))
}

func (r *NewsletterRepositoryImpl) GetNewsletter(id string) (*Newsletter, error) {
	return r.getOne("id", id)
}

func (r *NewsletterRepositoryImpl) GetNewsletterBySlug(slug string) (*Newsletter, error) {
	return r.getOne("slug", slug)
}

func (r *NewsletterRepositoryImpl) GetNewsletterCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM newsletters").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get newsletter count: %w", err)
	}
	return count, nil
}

func (r *NewsletterRepositoryImpl) CreateNewsletter(n Newsletter) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	times, err := json.Marshal(n.ScheduleTimes)
	if err != nil {
		return "", fmt.Errorf("failed to encode schedule times: %w", err)
	}

	now := time.Now().UTC()
	err = withRetry(func() error {
		_, err := r.db.Exec(`
			INSERT INTO newsletters (id, slug, name, timezone, schedule_times, active,
				include_watchlist, newsletter_type, verbosity, custom_prompt, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.Slug, n.Name, n.Timezone, string(times), n.Active,
			n.IncludeWatchlist, n.NewsletterType, n.Verbosity, n.CustomPrompt, now, now)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create newsletter: %w", err)
	}

	return n.ID, nil
}

func (r *NewsletterRepositoryImpl) UpdateNewsletter(n Newsletter) error {
	times, err := json.Marshal(n.ScheduleTimes)
	if err != nil {
		return fmt.Errorf("failed to encode schedule times: %w", err)
	}

	err = withRetry(func() error {
		_, err := r.db.Exec(`
			UPDATE newsletters
			SET slug = ?, name = ?, timezone = ?, schedule_times = ?, active = ?,
				include_watchlist = ?, newsletter_type = ?, verbosity = ?,
				custom_prompt = ?, updated_at = ?
			WHERE id = ?
		`, n.Slug, n.Name, n.Timezone, string(times), n.Active,
			n.IncludeWatchlist, n.NewsletterType, n.Verbosity,
			n.CustomPrompt, time.Now().UTC(), n.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update newsletter: %w", err)
	}

	return nil
}

func (r *NewsletterRepositoryImpl) DeleteNewsletter(id string) error {
	err := withRetry(func() error {
		_, err := r.db.Exec("DELETE FROM newsletters WHERE id = ?", id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete newsletter: %w", err)
	}
	return nil
}

func (r *NewsletterRepositoryImpl) ListFeeds(newsletterID string) ([]Feed, error) {
	return r.queryFeeds(`
		SELECT id, newsletter_id, url, COALESCE(title, ''), COALESCE(category, ''), enabled, order_index
		FROM feeds WHERE newsletter_id = ? ORDER BY order_index, url
	`, newsletterID)
}

func (r *NewsletterRepositoryImpl) ListEnabledFeeds(newsletterID string) ([]Feed, error) {
	return r.queryFeeds(`
		SELECT id, newsletter_id, url, COALESCE(title, ''), COALESCE(category, ''), enabled, order_index
		FROM feeds WHERE newsletter_id = ? AND enabled = 1 ORDER BY order_index, url
	`, newsletterID)
}

// ReplaceFeeds swaps the newsletter's feed list in one transaction.
// (newsletter_id, url) stays unique; incoming order defines order_index.
func (r *NewsletterRepositoryImpl) ReplaceFeeds(newsletterID string, feeds []Feed) error {
	return withRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec("DELETE FROM feeds WHERE newsletter_id = ?", newsletterID); err != nil {
			return fmt.Errorf("failed to clear feeds: %w", err)
		}

		for i, feed := range feeds {
			id := feed.ID
			if id == "" {
				id = uuid.NewString()
			}
			_, err := tx.Exec(`
				INSERT INTO feeds (id, newsletter_id, url, title, category, enabled, order_index)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (newsletter_id, url) DO UPDATE SET
					title = excluded.title,
					category = excluded.category,
					enabled = excluded.enabled,
					order_index = excluded.order_index
			`, id, newsletterID, feed.URL, feed.Title, feed.Category, feed.Enabled, i)
			if err != nil {
				return fmt.Errorf("failed to insert feed %s: %w", feed.URL, err)
			}
		}

		return tx.Commit()
	})
}

func (r *NewsletterRepositoryImpl) ListWatchlist(newsletterID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT symbol FROM watchlist_symbols WHERE newsletter_id = ? ORDER BY symbol
	`, newsletterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

func (r *NewsletterRepositoryImpl) ReplaceWatchlist(newsletterID string, symbols []string) error {
	return withRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec("DELETE FROM watchlist_symbols WHERE newsletter_id = ?", newsletterID); err != nil {
			return fmt.Errorf("failed to clear watchlist: %w", err)
		}

		for _, symbol := range symbols {
			_, err := tx.Exec(`
				INSERT INTO watchlist_symbols (newsletter_id, symbol) VALUES (?, ?)
				ON CONFLICT (newsletter_id, symbol) DO NOTHING
			`, newsletterID, symbol)
			if err != nil {
				return fmt.Errorf("failed to insert symbol %s: %w", symbol, err)
			}
		}

		return tx.Commit()
	})
}

func (r *NewsletterRepositoryImpl) getOne(column, value string) (*Newsletter, error) {
	query := fmt.Sprintf("SELECT %s FROM newsletters WHERE %s = ?", newsletterColumns, column)
	row := r.db.QueryRow(query, value)

	n, err := scanNewsletter(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get newsletter: %w", err)
	}
	return n, nil
}

func (r *NewsletterRepositoryImpl) queryNewsletters(query string, args ...interface{}) ([]Newsletter, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query newsletters: %w", err)
	}
	defer rows.Close()

	var newsletters []Newsletter
	for rows.Next() {
		n, err := scanNewsletter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan newsletter row: %w", err)
		}
		newsletters = append(newsletters, *n)
	}

	return newsletters, rows.Err()
}

func (r *NewsletterRepositoryImpl) queryFeeds(query string, args ...interface{}) ([]Feed, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(&feed.ID, &feed.NewsletterID, &feed.URL, &feed.Title,
			&feed.Category, &feed.Enabled, &feed.OrderIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

func scanNewsletter(scan func(...interface{}) error) (*Newsletter, error) {
	var n Newsletter
	var times string
	err := scan(&n.ID, &n.Slug, &n.Name, &n.Timezone, &times, &n.Active,
		&n.IncludeWatchlist, &n.NewsletterType, &n.Verbosity, &n.CustomPrompt,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(times), &n.ScheduleTimes); err != nil {
		return nil, fmt.Errorf("failed to decode schedule times: %w", err)
	}
	return &n, nil
}
