package database

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings is the typed view over the dynamic (key, value) settings bag.
// Values unknown to the core stay in the bag and are ignored here.
type Settings struct {
	DefaultTimezone       string
	DefaultSendTimes      []string
	PrimaryModel          string
	SecondaryModel        string
	ReasoningLevel        string // low, medium, high
	DefaultRecipients     []string
	FromAddress           string
	PerSourceCap          int
	MaxArticlesConsidered int
	MaxArticlesForAI      int
	MaxConcurrency        int
}

const (
	defaultPerSourceCap          = 10
	defaultMaxArticlesConsidered = 200
	defaultMaxArticlesForAI      = 25
	defaultMaxConcurrency        = 6
)

// SettingsRepositoryImpl persists settings as strings and validates enum and
// numeric semantics on write, not on read.
type SettingsRepositoryImpl struct {
	db *DB
}

var _ SettingsRepository = (*SettingsRepositoryImpl)(nil)

func NewSettingsRepository(db *DB) *SettingsRepositoryImpl {
	return &SettingsRepositoryImpl{db: db}
}

func (r *SettingsRepositoryImpl) GetAll() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}
		values[key] = value
	}

	return values, rows.Err()
}

func (r *SettingsRepositoryImpl) Set(key, value string) error {
	if err := validateSetting(key, value); err != nil {
		return err
	}

	err := withRetry(func() error {
		_, err := r.db.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value
		`, key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Settings reads the bag and coerces known keys into the typed struct.
// Malformed stored values fall back to defaults.
func (r *SettingsRepositoryImpl) Settings() (*Settings, error) {
	values, err := r.GetAll()
	if err != nil {
		return nil, err
	}

	s := &Settings{
		DefaultTimezone:       "UTC",
		ReasoningLevel:        "medium",
		PerSourceCap:          defaultPerSourceCap,
		MaxArticlesConsidered: defaultMaxArticlesConsidered,
		MaxArticlesForAI:      defaultMaxArticlesForAI,
		MaxConcurrency:        defaultMaxConcurrency,
	}

	if v, ok := values["default_timezone"]; ok && v != "" {
		s.DefaultTimezone = v
	}
	if v, ok := values["default_send_times"]; ok {
		s.DefaultSendTimes = decodeStringList(v)
	}
	if v, ok := values["primary_model"]; ok {
		s.PrimaryModel = v
	}
	if v, ok := values["secondary_model"]; ok {
		s.SecondaryModel = v
	}
	if v, ok := values["reasoning_level"]; ok && v != "" {
		s.ReasoningLevel = v
	}
	if v, ok := values["default_recipients"]; ok {
		s.DefaultRecipients = decodeStringList(v)
	}
	if v, ok := values["from_address"]; ok {
		s.FromAddress = v
	}
	if v, ok := values["per_source_cap"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.PerSourceCap = n
		}
	}
	if v, ok := values["max_articles_considered"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.MaxArticlesConsidered = n
		}
	}
	if v, ok := values["max_articles_for_ai"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.MaxArticlesForAI = n
		}
	}
	if v, ok := values["max_concurrency"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.MaxConcurrency = n
		}
	}

	return s, nil
}

func validateSetting(key, value string) error {
	switch key {
	case "reasoning_level":
		switch value {
		case "low", "medium", "high":
		default:
			return fmt.Errorf("invalid reasoning_level %q: must be low, medium, or high", value)
		}
	case "default_timezone":
		if value != "" {
			if _, err := time.LoadLocation(value); err != nil {
				return fmt.Errorf("invalid default_timezone %q: %w", value, err)
			}
		}
	case "default_send_times":
		for _, t := range decodeStringList(value) {
			if _, err := time.Parse("15:04", t); err != nil {
				return fmt.Errorf("invalid send time %q: must be HH:MM", t)
			}
		}
	case "per_source_cap", "max_articles_considered", "max_articles_for_ai", "max_concurrency":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q: must be a positive integer", key, value)
		}
	}
	return nil
}

// decodeStringList accepts a JSON-stringified array or a comma-separated
// list; both appear in practice.
func decodeStringList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "[") {
		var list []string
		if err := json.Unmarshal([]byte(value), &list); err == nil {
			return trimStrings(list)
		}
	}

	return trimStrings(strings.Split(value, ","))
}

func trimStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
