package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArticleRepositoryImpl handles database operations for articles and the
// per-newsletter seen set.
type ArticleRepositoryImpl struct {
	db *DB
}

var _ ArticleRepository = (*ArticleRepositoryImpl)(nil)

func NewArticleRepository(db *DB) *ArticleRepositoryImpl {
	return &ArticleRepositoryImpl{db: db}
}

func (r *ArticleRepositoryImpl) CheckSeen(newsletterID, contentHash string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM seen_hashes WHERE newsletter_id = ? AND content_hash = ? LIMIT 1
	`, newsletterID, contentHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check seen hash: %w", err)
	}
	return true, nil
}

// RecordSighting inserts the seen hash and then the article row in one
// transaction. The article insert is first-seen-wins on content_hash; the
// returned id is always the canonical row's id.
func (r *ArticleRepositoryImpl) RecordSighting(newsletterID string, article Article, seenAt time.Time) (string, error) {
	var articleID string

	err := withRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO seen_hashes (content_hash, newsletter_id, first_seen_at)
			VALUES (?, ?, ?)
			ON CONFLICT (content_hash, newsletter_id) DO NOTHING
		`, article.ContentHash, newsletterID, seenAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert seen hash: %w", err)
		}

		id := article.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err = tx.Exec(`
			INSERT INTO articles (id, content_hash, source, title, canonical_url, published_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (content_hash) DO NOTHING
		`, id, article.ContentHash, article.Source, article.Title, article.CanonicalURL, article.PublishedAt)
		if err != nil {
			return fmt.Errorf("failed to insert article: %w", err)
		}

		err = tx.QueryRow(`
			SELECT id FROM articles WHERE content_hash = ?
		`, article.ContentHash).Scan(&articleID)
		if err != nil {
			return fmt.Errorf("failed to resolve article id: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return "", err
	}

	return articleID, nil
}

// ResetSeen deletes seen hashes whose first sighting falls inside the window
// and reports before/deleted/after counts for operator confirmation.
func (r *ArticleRepositoryImpl) ResetSeen(newsletterID string, window time.Duration, now time.Time) (*SeenResetResult, error) {
	cutoff := now.UTC().Add(-window)
	result := &SeenResetResult{}

	err := withRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		err = tx.QueryRow(`
			SELECT COUNT(*) FROM seen_hashes
			WHERE newsletter_id = ? AND first_seen_at >= ?
		`, newsletterID, cutoff).Scan(&result.Before)
		if err != nil {
			return fmt.Errorf("failed to count seen hashes: %w", err)
		}

		res, err := tx.Exec(`
			DELETE FROM seen_hashes
			WHERE newsletter_id = ? AND first_seen_at >= ?
		`, newsletterID, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete seen hashes: %w", err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		result.Deleted = int(deleted)

		err = tx.QueryRow(`
			SELECT COUNT(*) FROM seen_hashes
			WHERE newsletter_id = ? AND first_seen_at >= ?
		`, newsletterID, cutoff).Scan(&result.After)
		if err != nil {
			return fmt.Errorf("failed to recount seen hashes: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
