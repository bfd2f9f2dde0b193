package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jsnider89/ai-news-digest/app/database"
)

func setupRepo(t *testing.T) *database.NewsletterRepositoryImpl {
	t.Helper()

	db, err := database.NewMemoryConnection()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database.NewNewsletterRepository(db)
}

const bootstrapYAML = `name: Daily Markets
slug: daily-markets
timezone: America/New_York
schedule_times: ["07:30", "16:30"]
include_watchlist: true
newsletter_type: market_analysis
feeds:
  - url: https://a.example/rss
    title: Feed A
    category: markets
  - url: https://b.example/rss
    enabled: false
watchlist: [spy, qqq]
`

func writeBootstrapFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestLoaderCreatesNewsletter(t *testing.T) {
	repo := setupRepo(t)
	dir := t.TempDir()
	writeBootstrapFile(t, dir, "daily-markets.yml", bootstrapYAML)

	loader := NewLoader(dir, repo)
	created, err := loader.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if created != 1 {
		t.Fatalf("Expected 1 newsletter created, got %d", created)
	}

	n, err := repo.GetNewsletterBySlug("daily-markets")
	if err != nil || n == nil {
		t.Fatalf("Expected newsletter registered: %v", err)
	}
	if n.Timezone != "America/New_York" || !n.IncludeWatchlist || !n.Active {
		t.Errorf("Unexpected newsletter: %+v", n)
	}
	if len(n.ScheduleTimes) != 2 {
		t.Errorf("Expected 2 schedule times, got %v", n.ScheduleTimes)
	}

	feeds, _ := repo.ListFeeds(n.ID)
	if len(feeds) != 2 {
		t.Fatalf("Expected 2 feeds, got %d", len(feeds))
	}
	if feeds[1].Enabled {
		t.Error("Expected second feed disabled")
	}

	symbols, _ := repo.ListWatchlist(n.ID)
	if len(symbols) != 2 || symbols[0] != "QQQ" {
		t.Errorf("Expected uppercased watchlist, got %v", symbols)
	}
}

func TestLoaderSkipsExisting(t *testing.T) {
	repo := setupRepo(t)
	dir := t.TempDir()
	writeBootstrapFile(t, dir, "daily-markets.yml", bootstrapYAML)

	loader := NewLoader(dir, repo)
	if _, err := loader.Run(); err != nil {
		t.Fatalf("First run: %v", err)
	}

	// Simulate an admin edit, then re-run bootstrap.
	n, _ := repo.GetNewsletterBySlug("daily-markets")
	n.Name = "Renamed by admin"
	if err := repo.UpdateNewsletter(*n); err != nil {
		t.Fatalf("update: %v", err)
	}

	created, err := loader.Run()
	if err != nil {
		t.Fatalf("Second run: %v", err)
	}
	if created != 0 {
		t.Errorf("Expected no newsletters created on second run, got %d", created)
	}

	after, _ := repo.GetNewsletterBySlug("daily-markets")
	if after.Name != "Renamed by admin" {
		t.Error("Bootstrap must not clobber admin edits")
	}
}

func TestLoaderMissingDirectory(t *testing.T) {
	repo := setupRepo(t)
	loader := NewLoader("/nonexistent/path", repo)
	created, err := loader.Run()
	if err != nil || created != 0 {
		t.Errorf("Missing directory must be a no-op, got created=%d err=%v", created, err)
	}
}

func TestLoaderSlugFromFilename(t *testing.T) {
	repo := setupRepo(t)
	dir := t.TempDir()
	writeBootstrapFile(t, dir, "evening-wrap.yml", "name: Evening Wrap\nfeeds:\n  - url: https://c.example/rss\n")

	loader := NewLoader(dir, repo)
	if _, err := loader.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, _ := repo.GetNewsletterBySlug("evening-wrap")
	if n == nil {
		t.Fatal("Expected slug derived from filename")
	}
}
