package database

import (
	"database/sql"
	"fmt"
	"time"
)

// RunRepositoryImpl handles database operations for runs and their
// dependent rows (run articles, market quotes, digests, run logs).
type RunRepositoryImpl struct {
	db *DB
}

var _ RunRepository = (*RunRepositoryImpl)(nil)

func NewRunRepository(db *DB) *RunRepositoryImpl {
	return &RunRepositoryImpl{db: db}
}

const runColumns = `run_id, newsletter_id, started_at, finished_at, status,
	feeds_total, feeds_ok, articles_seen, articles_used, ai_tokens_in,
	ai_tokens_out, COALESCE(ai_provider_label, ''), email_sent, COALESCE(error, '')`

func (r *RunRepositoryImpl) CreateRun(run Run) error {
	err := withRetry(func() error {
		_, err := r.db.Exec(`
			INSERT INTO runs (run_id, newsletter_id, started_at, status)
			VALUES (?, ?, ?, 'started')
		`, run.RunID, run.NewsletterID, run.StartedAt.UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun writes counters and the terminal status in a single statement so
// the transition is atomic.
func (r *RunRepositoryImpl) FinishRun(run Run) error {
	var label, errText interface{}
	if run.AIProviderLabel != "" {
		label = run.AIProviderLabel
	}
	if run.Error != "" {
		errText = run.Error
	}

	err := withRetry(func() error {
		_, err := r.db.Exec(`
			UPDATE runs
			SET finished_at = ?, status = ?, feeds_total = ?, feeds_ok = ?,
				articles_seen = ?, articles_used = ?, ai_tokens_in = ?,
				ai_tokens_out = ?, ai_provider_label = ?, email_sent = ?, error = ?
			WHERE run_id = ?
		`, run.FinishedAt, run.Status, run.FeedsTotal, run.FeedsOK,
			run.ArticlesSeen, run.ArticlesUsed, run.AITokensIn,
			run.AITokensOut, label, run.EmailSent, errText, run.RunID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

func (r *RunRepositoryImpl) GetRun(runID string) (*Run, error) {
	row := r.db.QueryRow(fmt.Sprintf("SELECT %s FROM runs WHERE run_id = ?", runColumns), runID)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (r *RunRepositoryImpl) ListRuns(newsletterID string, limit int) ([]Run, error) {
	query := fmt.Sprintf("SELECT %s FROM runs", runColumns)
	args := []interface{}{}
	if newsletterID != "" {
		query += " WHERE newsletter_id = ?"
		args = append(args, newsletterID)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func (r *RunRepositoryImpl) GetRunCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get run count: %w", err)
	}
	return count, nil
}

func (r *RunRepositoryImpl) HasActiveRun(newsletterID string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM runs WHERE newsletter_id = ? AND status = 'started' LIMIT 1
	`, newsletterID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check active run: %w", err)
	}
	return true, nil
}

func (r *RunRepositoryImpl) InsertRunArticles(runID string, entries []RunArticle) error {
	return withRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, entry := range entries {
			_, err := tx.Exec(`
				INSERT INTO run_articles (run_id, article_id, rank, score)
				VALUES (?, ?, ?, ?)
			`, runID, entry.ArticleID, entry.Rank, entry.Score)
			if err != nil {
				return fmt.Errorf("failed to insert run article rank %d: %w", entry.Rank, err)
			}
		}

		return tx.Commit()
	})
}

func (r *RunRepositoryImpl) GetRunArticles(runID string) ([]RunArticle, error) {
	rows, err := r.db.Query(`
		SELECT run_id, article_id, rank, score FROM run_articles
		WHERE run_id = ? ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run articles: %w", err)
	}
	defer rows.Close()

	var entries []RunArticle
	for rows.Next() {
		var entry RunArticle
		if err := rows.Scan(&entry.RunID, &entry.ArticleID, &entry.Rank, &entry.Score); err != nil {
			return nil, fmt.Errorf("failed to scan run article row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *RunRepositoryImpl) UpsertMarketQuote(quote MarketQuote) error {
	err := withRetry(func() error {
		_, err := r.db.Exec(`
			INSERT INTO market_data (run_id, symbol, price, change_amount, change_percent, captured_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, symbol) DO UPDATE SET
				price = excluded.price,
				change_amount = excluded.change_amount,
				change_percent = excluded.change_percent,
				captured_at = excluded.captured_at
		`, quote.RunID, quote.Symbol, quote.Price, quote.ChangeAmount,
			quote.ChangePercent, quote.CapturedAt.UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert market quote: %w", err)
	}
	return nil
}

func (r *RunRepositoryImpl) GetMarketQuotes(runID string) ([]MarketQuote, error) {
	rows, err := r.db.Query(`
		SELECT run_id, symbol, price, change_amount, change_percent, captured_at
		FROM market_data WHERE run_id = ? ORDER BY symbol
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query market quotes: %w", err)
	}
	defer rows.Close()

	var quotes []MarketQuote
	for rows.Next() {
		var q MarketQuote
		err := rows.Scan(&q.RunID, &q.Symbol, &q.Price, &q.ChangeAmount, &q.ChangePercent, &q.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market quote row: %w", err)
		}
		quotes = append(quotes, q)
	}

	return quotes, rows.Err()
}

func (r *RunRepositoryImpl) SaveDigest(digest Digest) error {
	err := withRetry(func() error {
		_, err := r.db.Exec(`
			INSERT INTO digests (run_id, subject, html, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (run_id) DO UPDATE SET
				subject = excluded.subject,
				html = excluded.html
		`, digest.RunID, digest.Subject, digest.HTML, time.Now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save digest: %w", err)
	}
	return nil
}

func (r *RunRepositoryImpl) GetDigest(runID string) (*Digest, error) {
	row := r.db.QueryRow(`
		SELECT run_id, subject, html, created_at FROM digests WHERE run_id = ?
	`, runID)
	return scanDigest(row)
}

func (r *RunRepositoryImpl) GetLatestDigest() (*Digest, error) {
	row := r.db.QueryRow(`
		SELECT d.run_id, d.subject, d.html, d.created_at
		FROM digests d JOIN runs r ON r.run_id = d.run_id
		ORDER BY r.started_at DESC LIMIT 1
	`)
	return scanDigest(row)
}

func (r *RunRepositoryImpl) AppendRunLogs(entries []RunLog) error {
	if len(entries) == 0 {
		return nil
	}
	return withRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, entry := range entries {
			var contextJSON interface{}
			if entry.ContextJSON != "" {
				contextJSON = entry.ContextJSON
			}
			_, err := tx.Exec(`
				INSERT INTO run_logs (run_id, ts, level, message, context_json)
				VALUES (?, ?, ?, ?, ?)
			`, entry.RunID, entry.TS.UTC(), entry.Level, entry.Message, contextJSON)
			if err != nil {
				return fmt.Errorf("failed to insert run log: %w", err)
			}
		}

		return tx.Commit()
	})
}

func (r *RunRepositoryImpl) GetRunLogs(runID string) ([]RunLog, error) {
	rows, err := r.db.Query(`
		SELECT run_id, ts, level, message, COALESCE(context_json, '')
		FROM run_logs WHERE run_id = ? ORDER BY ts, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run logs: %w", err)
	}
	defer rows.Close()

	var entries []RunLog
	for rows.Next() {
		var entry RunLog
		if err := rows.Scan(&entry.RunID, &entry.TS, &entry.Level, &entry.Message, &entry.ContextJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run log row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// PruneRuns deletes runs started before the cutoff. Dependent rows go with
// them via ON DELETE CASCADE.
func (r *RunRepositoryImpl) PruneRuns(olderThan time.Time) (int, error) {
	var deleted int64
	err := withRetry(func() error {
		res, err := r.db.Exec("DELETE FROM runs WHERE started_at < ?", olderThan.UTC())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return int(deleted), nil
}

func scanRun(scan func(...interface{}) error) (*Run, error) {
	var run Run
	var finished sql.NullTime
	err := scan(&run.RunID, &run.NewsletterID, &run.StartedAt, &finished,
		&run.Status, &run.FeedsTotal, &run.FeedsOK, &run.ArticlesSeen,
		&run.ArticlesUsed, &run.AITokensIn, &run.AITokensOut,
		&run.AIProviderLabel, &run.EmailSent, &run.Error)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

func scanDigest(row *sql.Row) (*Digest, error) {
	var d Digest
	err := row.Scan(&d.RunID, &d.Subject, &d.HTML, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}
	return &d, nil
}
