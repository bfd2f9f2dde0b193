package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jsnider89/ai-news-digest/app/database"
)

// File is the on-disk bootstrap definition for one newsletter.
type File struct {
	Name             string      `yaml:"name"`
	Slug             string      `yaml:"slug"`
	Timezone         string      `yaml:"timezone"`
	ScheduleTimes    []string    `yaml:"schedule_times"`
	Active           *bool       `yaml:"active"`
	IncludeWatchlist bool        `yaml:"include_watchlist"`
	NewsletterType   string      `yaml:"newsletter_type"`
	Verbosity        string      `yaml:"verbosity"`
	CustomPrompt     string      `yaml:"custom_prompt"`
	Feeds            []FeedEntry `yaml:"feeds"`
	Watchlist        []string    `yaml:"watchlist"`
}

type FeedEntry struct {
	URL      string `yaml:"url"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Enabled  *bool  `yaml:"enabled"`
}

// Loader registers newsletters from *.yml files in the configured directory.
// Bootstrap only creates: a newsletter whose slug already exists is left
// untouched so admin edits win.
type Loader struct {
	dir  string
	repo database.NewsletterRepository
}

func NewLoader(dir string, repo database.NewsletterRepository) *Loader {
	return &Loader{dir: dir, repo: repo}
}

func (l *Loader) Run() (int, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.yml"))
	if err != nil {
		return 0, fmt.Errorf("failed to find YML files: %w", err)
	}

	created := 0
	for _, file := range files {
		ok, err := l.loadFile(file)
		if err != nil {
			slog.Warn("Failed to load newsletter file", "file", file, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	return created, nil
}

func (l *Loader) loadFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	var def File
	if err := yaml.Unmarshal(data, &def); err != nil {
		return false, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if def.Slug == "" {
		base := filepath.Base(path)
		def.Slug = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if def.Name == "" {
		def.Name = def.Slug
	}

	existing, err := l.repo.GetNewsletterBySlug(def.Slug)
	if err != nil {
		return false, err
	}
	if existing != nil {
		slog.Debug("Newsletter already registered, skipping bootstrap", "slug", def.Slug)
		return false, nil
	}

	active := true
	if def.Active != nil {
		active = *def.Active
	}

	newsletter := database.Newsletter{
		Slug:             def.Slug,
		Name:             def.Name,
		Timezone:         firstNonEmpty(def.Timezone, "UTC"),
		ScheduleTimes:    def.ScheduleTimes,
		Active:           active,
		IncludeWatchlist: def.IncludeWatchlist,
		NewsletterType:   firstNonEmpty(def.NewsletterType, "general_business"),
		Verbosity:        firstNonEmpty(def.Verbosity, "medium"),
		CustomPrompt:     def.CustomPrompt,
	}

	id, err := l.repo.CreateNewsletter(newsletter)
	if err != nil {
		return false, err
	}

	feeds := make([]database.Feed, 0, len(def.Feeds))
	for _, entry := range def.Feeds {
		if entry.URL == "" {
			continue
		}
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		feeds = append(feeds, database.Feed{
			URL:      entry.URL,
			Title:    entry.Title,
			Category: entry.Category,
			Enabled:  enabled,
		})
	}
	if len(feeds) > 0 {
		if err := l.repo.ReplaceFeeds(id, feeds); err != nil {
			return false, err
		}
	}

	if len(def.Watchlist) > 0 {
		symbols := make([]string, 0, len(def.Watchlist))
		for _, symbol := range def.Watchlist {
			if symbol = strings.ToUpper(strings.TrimSpace(symbol)); symbol != "" {
				symbols = append(symbols, symbol)
			}
		}
		if err := l.repo.ReplaceWatchlist(id, symbols); err != nil {
			return false, err
		}
	}

	slog.Info("Newsletter registered from bootstrap file", "slug", def.Slug, "feeds", len(feeds))
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
