package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsnider89/ai-news-digest/app/database"
	"github.com/jsnider89/ai-news-digest/app/pipeline"
	"github.com/jsnider89/ai-news-digest/app/scheduler"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

type Handler struct {
	newsletterRepo database.NewsletterRepository
	articleRepo    database.ArticleRepository
	runRepo        database.RunRepository
	settingsRepo   database.SettingsRepository
	runner         *pipeline.Runner
	sched          *scheduler.Scheduler
	buffer         *pipeline.LogBuffer
}

func NewHandler(newsletterRepo database.NewsletterRepository,
	articleRepo database.ArticleRepository, runRepo database.RunRepository,
	settingsRepo database.SettingsRepository, runner *pipeline.Runner,
	sched *scheduler.Scheduler, buffer *pipeline.LogBuffer) *Handler {
	return &Handler{
		newsletterRepo: newsletterRepo,
		articleRepo:    articleRepo,
		runRepo:        runRepo,
		settingsRepo:   settingsRepo,
		runner:         runner,
		sched:          sched,
		buffer:         buffer,
	}
}

// Public endpoints

func (h *Handler) GetLatestDigest(c *gin.Context) {
	digest, err := h.runRepo.GetLatestDigest()
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_digest", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if digest == nil {
		c.String(http.StatusNotFound, "No digest has been produced yet")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, digest.HTML)
}

func (h *Handler) GetRunDigest(c *gin.Context) {
	digest, err := h.runRepo.GetDigest(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_run_digest", "run_id", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if digest == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, digest.HTML)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.newsletterRepo.GetNewsletterCount(); err == nil {
		health["newsletters"] = count
	}
	if count, err := h.runRepo.GetRunCount(); err == nil {
		health["runs"] = count
	}
	health["buffered_logs"] = h.buffer.Size()

	c.JSON(http.StatusOK, health)
}

// Newsletter CRUD

func (h *Handler) ListNewsletters(c *gin.Context) {
	newsletters, err := h.newsletterRepo.ListNewsletters()
	if err != nil {
		slog.Error("Database error", "operation", "list_newsletters", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	responses := make([]NewsletterResponse, 0, len(newsletters))
	for _, n := range newsletters {
		responses = append(responses, h.newsletterResponse(n))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) GetNewsletter(c *gin.Context) {
	newsletter, ok := h.loadNewsletter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.newsletterResponse(*newsletter))
}

func (h *Handler) CreateNewsletter(c *gin.Context) {
	var req NewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := validateNewsletterRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	existing, err := h.newsletterRepo.GetNewsletterBySlug(req.Slug)
	if err != nil {
		slog.Error("Database error", "operation", "create_newsletter", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	id, err := h.newsletterRepo.CreateNewsletter(database.Newsletter{
		Slug:             req.Slug,
		Name:             req.Name,
		Timezone:         defaultString(req.Timezone, "UTC"),
		ScheduleTimes:    req.ScheduleTimes,
		Active:           active,
		IncludeWatchlist: req.IncludeWatchlist,
		NewsletterType:   defaultString(req.NewsletterType, "general_business"),
		Verbosity:        defaultString(req.Verbosity, "medium"),
		CustomPrompt:     req.CustomPrompt,
	})
	if err != nil {
		slog.Error("Database error", "operation", "create_newsletter", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.applyOwnedRows(id, req); err != nil {
		slog.Error("Database error", "operation", "create_newsletter_rows", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	h.sched.Refresh()

	created, _ := h.newsletterRepo.GetNewsletter(id)
	c.JSON(http.StatusCreated, h.newsletterResponse(*created))
}

func (h *Handler) UpdateNewsletter(c *gin.Context) {
	newsletter, ok := h.loadNewsletter(c)
	if !ok {
		return
	}

	var req NewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := validateNewsletterRequest(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	newsletter.Slug = req.Slug
	newsletter.Name = req.Name
	newsletter.Timezone = defaultString(req.Timezone, newsletter.Timezone)
	newsletter.ScheduleTimes = req.ScheduleTimes
	if req.Active != nil {
		newsletter.Active = *req.Active
	}
	newsletter.IncludeWatchlist = req.IncludeWatchlist
	newsletter.NewsletterType = defaultString(req.NewsletterType, newsletter.NewsletterType)
	newsletter.Verbosity = defaultString(req.Verbosity, newsletter.Verbosity)
	newsletter.CustomPrompt = req.CustomPrompt

	if err := h.newsletterRepo.UpdateNewsletter(*newsletter); err != nil {
		slog.Error("Database error", "operation", "update_newsletter", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.applyOwnedRows(newsletter.ID, req); err != nil {
		slog.Error("Database error", "operation", "update_newsletter_rows", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	h.sched.Refresh()

	updated, _ := h.newsletterRepo.GetNewsletter(newsletter.ID)
	c.JSON(http.StatusOK, h.newsletterResponse(*updated))
}

func (h *Handler) DeleteNewsletter(c *gin.Context) {
	newsletter, ok := h.loadNewsletter(c)
	if !ok {
		return
	}

	if err := h.newsletterRepo.DeleteNewsletter(newsletter.ID); err != nil {
		slog.Error("Database error", "operation", "delete_newsletter", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	h.sched.Refresh()
	c.Status(http.StatusNoContent)
}

// Runs

func (h *Handler) RunNewsletter(c *gin.Context) {
	newsletter, ok := h.loadNewsletter(c)
	if !ok {
		return
	}

	result, err := h.runner.Run(c.Request.Context(), newsletter.ID)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		slog.Error("Manual run failed", "newsletter", newsletter.Slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run failed to start"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListRuns(c *gin.Context) {
	newsletter, ok := h.loadNewsletter(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	runs, err := h.runRepo.ListRuns(newsletter.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.runRepo.GetRun(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_run", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if run == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) GetRunLogs(c *gin.Context) {
	logs, err := h.runRepo.GetRunLogs(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_run_logs", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ResetSeen clears the newsletter's recent dedupe window so items can be
// reprocessed on the next run.
func (h *Handler) ResetSeen(c *gin.Context) {
	newsletter, ok := h.loadNewsletter(c)
	if !ok {
		return
	}

	var req ResetSeenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Hours < 1 || req.Hours > 168 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be between 1 and 168"})
		return
	}

	result, err := h.articleRepo.ResetSeen(newsletter.ID,
		time.Duration(req.Hours)*time.Hour, time.Now().UTC())
	if err != nil {
		slog.Error("Database error", "operation", "reset_seen", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Settings

func (h *Handler) GetSettings(c *gin.Context) {
	values, err := h.settingsRepo.GetAll()
	if err != nil {
		slog.Error("Database error", "operation", "get_settings", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range values {
		if err := h.settingsRepo.Set(key, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.sched.Refresh()

	updated, _ := h.settingsRepo.GetAll()
	c.JSON(http.StatusOK, updated)
}

// Health & logs surface

func (h *Handler) GetLiveLogs(c *gin.Context) {
	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	c.JSON(http.StatusOK, h.buffer.Entries(limit))
}

func (h *Handler) GetSchedule(c *gin.Context) {
	c.JSON(http.StatusOK, h.sched.Jobs())
}

// Helpers

func (h *Handler) loadNewsletter(c *gin.Context) (*database.Newsletter, bool) {
	id := c.Param("id")

	newsletter, err := h.newsletterRepo.GetNewsletter(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_newsletter", "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if newsletter == nil {
		// Accept slugs as well as ids; handy for operator tooling.
		newsletter, err = h.newsletterRepo.GetNewsletterBySlug(id)
		if err != nil {
			slog.Error("Database error", "operation", "get_newsletter_by_slug", "error", err)
			c.Status(http.StatusInternalServerError)
			return nil, false
		}
	}
	if newsletter == nil {
		c.Status(http.StatusNotFound)
		return nil, false
	}

	return newsletter, true
}

func (h *Handler) newsletterResponse(n database.Newsletter) NewsletterResponse {
	resp := NewsletterResponse{
		ID:               n.ID,
		Slug:             n.Slug,
		Name:             n.Name,
		Timezone:         n.Timezone,
		ScheduleTimes:    n.ScheduleTimes,
		Active:           n.Active,
		IncludeWatchlist: n.IncludeWatchlist,
		NewsletterType:   n.NewsletterType,
		Verbosity:        n.Verbosity,
		CustomPrompt:     n.CustomPrompt,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
		WatchlistSymbols: []string{},
	}

	if feeds, err := h.newsletterRepo.ListFeeds(n.ID); err == nil {
		for _, feed := range feeds {
			resp.Feeds = append(resp.Feeds, FeedResponse{
				ID:         feed.ID,
				URL:        feed.URL,
				Title:      feed.Title,
				Category:   feed.Category,
				Enabled:    feed.Enabled,
				OrderIndex: feed.OrderIndex,
			})
		}
	}
	if symbols, err := h.newsletterRepo.ListWatchlist(n.ID); err == nil && symbols != nil {
		resp.WatchlistSymbols = symbols
	}

	return resp
}

func (h *Handler) applyOwnedRows(newsletterID string, req NewsletterRequest) error {
	feeds := make([]database.Feed, 0, len(req.Feeds))
	for _, f := range req.Feeds {
		enabled := true
		if f.Enabled != nil {
			enabled = *f.Enabled
		}
		feeds = append(feeds, database.Feed{
			URL:      f.URL,
			Title:    f.Title,
			Category: f.Category,
			Enabled:  enabled,
		})
	}
	if err := h.newsletterRepo.ReplaceFeeds(newsletterID, feeds); err != nil {
		return err
	}

	symbols := make([]string, 0, len(req.WatchlistSymbols))
	for _, s := range req.WatchlistSymbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return h.newsletterRepo.ReplaceWatchlist(newsletterID, symbols)
}

func validateNewsletterRequest(req NewsletterRequest) string {
	if !slugPattern.MatchString(req.Slug) {
		return "slug must match [a-z0-9-]+"
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return "invalid timezone: " + req.Timezone
		}
	}
	for _, t := range req.ScheduleTimes {
		if _, err := time.Parse("15:04", t); err != nil {
			return "invalid schedule time: " + t
		}
	}
	switch req.Verbosity {
	case "", "low", "medium", "high":
	default:
		return "verbosity must be low, medium, or high"
	}
	return ""
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
