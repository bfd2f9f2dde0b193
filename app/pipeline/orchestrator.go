package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jsnider89/ai-news-digest/app/ai"
	"github.com/jsnider89/ai-news-digest/app/cfg"
	"github.com/jsnider89/ai-news-digest/app/database"
	"github.com/jsnider89/ai-news-digest/app/feed"
	"github.com/jsnider89/ai-news-digest/app/mail"
	"github.com/jsnider89/ai-news-digest/app/market"
	"github.com/jsnider89/ai-news-digest/app/render"
)

// RunResult is the summary handed back to the scheduler or the manual-run
// endpoint.
type RunResult struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	FeedsTotal   int    `json:"feeds_total"`
	FeedsOK      int    `json:"feeds_ok"`
	ArticlesSeen int    `json:"articles_seen"`
	ArticlesUsed int    `json:"articles_used"`
	EmailSent    bool   `json:"email_sent"`
}

// Pipeline sequences one newsletter run: fetch, dedupe, select, quote,
// analyze, render, deliver, record.
type Pipeline struct {
	newsletterRepo database.NewsletterRepository
	articleRepo    database.ArticleRepository
	runRepo        database.RunRepository
	settingsRepo   database.SettingsRepository
	httpClient     *http.Client
	parser         *feed.Parser
	marketClient   *market.Client
	providers      []ai.Provider
	transport      mail.Transport
	buffer         *LogBuffer
}

func NewPipeline(
	newsletterRepo database.NewsletterRepository,
	articleRepo database.ArticleRepository,
	runRepo database.RunRepository,
	settingsRepo database.SettingsRepository,
	httpClient *http.Client,
	marketClient *market.Client,
	providers []ai.Provider,
	transport mail.Transport,
	buffer *LogBuffer,
) *Pipeline {
	return &Pipeline{
		newsletterRepo: newsletterRepo,
		articleRepo:    articleRepo,
		runRepo:        runRepo,
		settingsRepo:   settingsRepo,
		httpClient:     httpClient,
		parser:         feed.NewParser(),
		marketClient:   marketClient,
		providers:      providers,
		transport:      transport,
		buffer:         buffer,
	}
}

// Run executes the pipeline for one newsletter. The caller owns the
// per-newsletter serialization; ctx carries the whole-run deadline.
func (p *Pipeline) Run(ctx context.Context, newsletterID string) (*RunResult, error) {
	newsletter, err := p.newsletterRepo.GetNewsletter(newsletterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load newsletter: %w", err)
	}
	if newsletter == nil {
		return nil, fmt.Errorf("newsletter %s not found", newsletterID)
	}

	settings, err := p.settingsRepo.Settings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	run := database.Run{
		RunID:        uuid.NewString(),
		NewsletterID: newsletter.ID,
		StartedAt:    time.Now().UTC(),
		Status:       "started",
	}
	if err := p.runRepo.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	recorder := NewRecorder(run.RunID, p.runRepo, p.buffer)
	recorder.Info("Run started", map[string]interface{}{
		"newsletter": newsletter.Slug,
	})

	state := &runState{run: run, newsletter: newsletter, settings: settings, recorder: recorder}
	p.execute(ctx, state)
	p.finish(state)

	appCfg := cfg.Get()
	if appCfg.RunRetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -appCfg.RunRetentionDays)
		if pruned, err := p.runRepo.PruneRuns(cutoff); err != nil {
			recorder.Warn("Run pruning failed", map[string]interface{}{"error": err.Error()})
		} else if pruned > 0 {
			recorder.Info("Pruned old runs", map[string]interface{}{"deleted": pruned})
		}
	}

	return &RunResult{
		RunID:        state.run.RunID,
		Status:       state.run.Status,
		FeedsTotal:   state.run.FeedsTotal,
		FeedsOK:      state.run.FeedsOK,
		ArticlesSeen: state.run.ArticlesSeen,
		ArticlesUsed: state.run.ArticlesUsed,
		EmailSent:    state.run.EmailSent,
	}, nil
}

// runState accumulates everything the terminal-status decision needs.
type runState struct {
	run        database.Run
	newsletter *database.Newsletter
	settings   *database.Settings
	recorder   *Recorder

	selected  []feed.ScoredItem
	quotes    []market.Quote
	aiOK      bool
	cancelled bool
	deadline  bool
	fatal     string
}

func (p *Pipeline) execute(ctx context.Context, state *runState) {
	recorder := state.recorder
	newsletter := state.newsletter
	appCfg := cfg.Get()

	// Ingest
	feeds, err := p.newsletterRepo.ListEnabledFeeds(newsletter.ID)
	if err != nil {
		state.fatal = fmt.Sprintf("failed to list feeds: %v", err)
		return
	}
	state.run.FeedsTotal = len(feeds)

	fetcher := feed.NewFetcher(p.httpClient, p.parser, appCfg.UserAgent,
		time.Duration(appCfg.FeedTimeout)*time.Second, state.settings.MaxConcurrency)
	results := fetcher.Run(ctx, feeds)

	var items []feed.Item
	for _, result := range results {
		if !result.OK {
			kind := "feed.unreachable"
			if result.ParseFailed {
				kind = "feed.parse_invalid"
			}
			recorder.Warn(kind, map[string]interface{}{
				"url":   result.URL,
				"error": result.Err.Error(),
			})
			continue
		}
		state.run.FeedsOK++
		items = append(items, result.Items...)
	}
	state.run.ArticlesSeen = len(items)
	recorder.Info("Feeds ingested", map[string]interface{}{
		"feeds_ok":    state.run.FeedsOK,
		"feeds_total": state.run.FeedsTotal,
		"items":       len(items),
	})

	if p.checkInterrupted(ctx, state) {
		return
	}

	// Dedupe, then select
	if len(items) > state.settings.MaxArticlesConsidered {
		items = items[:state.settings.MaxArticlesConsidered]
	}

	now := time.Now().UTC()
	var fresh []feed.Item
	articleIDs := make(map[string]string)
	for _, item := range items {
		seen, err := p.articleRepo.CheckSeen(newsletter.ID, item.ContentHash)
		if err != nil {
			state.fatal = fmt.Sprintf("dedupe check failed: %v", err)
			return
		}
		if seen {
			continue
		}

		articleID, err := p.articleRepo.RecordSighting(newsletter.ID, database.Article{
			ContentHash:  item.ContentHash,
			Source:       item.Source,
			Title:        item.Title,
			CanonicalURL: item.CanonicalURL,
			PublishedAt:  item.PublishedAt,
		}, now)
		if err != nil {
			state.fatal = fmt.Sprintf("article insert failed: %v", err)
			return
		}
		articleIDs[item.ContentHash] = articleID
		fresh = append(fresh, item)
	}

	selector := feed.NewSelector(state.settings.MaxArticlesForAI, state.settings.PerSourceCap)
	state.selected = selector.Run(fresh, now)
	state.run.ArticlesUsed = len(state.selected)

	entries := make([]database.RunArticle, 0, len(state.selected))
	for i := range state.selected {
		state.selected[i].ArticleID = articleIDs[state.selected[i].ContentHash]
		entries = append(entries, database.RunArticle{
			RunID:     state.run.RunID,
			ArticleID: state.selected[i].ArticleID,
			Rank:      state.selected[i].Rank,
			Score:     state.selected[i].Score,
		})
	}
	if err := p.runRepo.InsertRunArticles(state.run.RunID, entries); err != nil {
		state.fatal = fmt.Sprintf("run article insert failed: %v", err)
		return
	}
	recorder.Info("Selection complete", map[string]interface{}{
		"fresh":  len(fresh),
		"ranked": len(state.selected),
	})

	if p.checkInterrupted(ctx, state) {
		return
	}

	// Market data: failures never fail the run.
	var watchlist []string
	if newsletter.IncludeWatchlist {
		watchlist, err = p.newsletterRepo.ListWatchlist(newsletter.ID)
		if err != nil {
			recorder.Warn("Watchlist lookup failed", map[string]interface{}{"error": err.Error()})
		}
		if len(watchlist) > 0 && p.marketClient.Enabled() {
			state.quotes = p.marketClient.FetchQuotes(ctx, watchlist)
			for _, quote := range state.quotes {
				err := p.runRepo.UpsertMarketQuote(database.MarketQuote{
					RunID:         state.run.RunID,
					Symbol:        quote.Symbol,
					Price:         quote.Price,
					ChangeAmount:  quote.ChangeAmount,
					ChangePercent: quote.ChangePercent,
					CapturedAt:    time.Now().UTC(),
				})
				if err != nil {
					recorder.Warn("market.lookup_failure", map[string]interface{}{
						"symbol": quote.Symbol,
						"error":  err.Error(),
					})
				}
			}
		}
	}

	if p.checkInterrupted(ctx, state) {
		return
	}

	// Analyze
	location, err := time.LoadLocation(newsletter.Timezone)
	if err != nil {
		location = time.UTC
	}
	localNow := time.Now().In(location)

	request := ai.BuildPrompt(ai.PromptInput{
		NewsletterName: newsletter.Name,
		NewsletterType: newsletter.NewsletterType,
		Verbosity:      newsletter.Verbosity,
		CustomPrompt:   newsletter.CustomPrompt,
		LocalDate:      localNow,
		Watchlist:      watchlist,
		Quotes:         state.quotes,
		Items:          state.selected,
	})

	attempts := ai.BuildAttempts(state.settings.PrimaryModel, state.settings.SecondaryModel,
		state.settings.ReasoningLevel)
	cascade := ai.NewCascade(p.providers, attempts, recorder)

	var analysis string
	result, err := cascade.Generate(ctx, request)
	switch {
	case err == nil:
		state.aiOK = true
		state.run.AITokensIn = result.TokensIn
		state.run.AITokensOut = result.TokensOut
		state.run.AIProviderLabel = result.Label
		analysis = result.Text
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		p.checkInterrupted(ctx, state)
		return
	default:
		recorder.Warn("ai.exhausted", map[string]interface{}{
			"attempts": len(attempts),
		})
		state.run.AIProviderLabel = ai.HeadlinesLabel
		analysis = ai.HeadlinesFallback(state.selected)
	}

	// Render and persist the digest before any delivery attempt.
	meta := render.DigestMetadata{
		NewsletterName: newsletter.Name,
		ProviderLabel:  state.run.AIProviderLabel,
		ArticleCount:   state.run.ArticlesUsed,
		FeedsOK:        state.run.FeedsOK,
		FeedsTotal:     state.run.FeedsTotal,
		RunStartedAt:   localNow,
		Watchlist:      watchlist,
		Quotes:         state.quotes,
	}
	analysisHTML := render.MarkdownToHTML(analysis)
	digestHTML := render.RenderEmail(analysisHTML, meta)
	digestText := render.PlainText(analysisHTML, meta)
	subject := render.Subject(newsletter.Name, localNow)

	if err := p.runRepo.SaveDigest(database.Digest{
		RunID:   state.run.RunID,
		Subject: subject,
		HTML:    digestHTML,
	}); err != nil {
		state.fatal = fmt.Sprintf("digest persist failed: %v", err)
		return
	}

	// Deliver
	recipients := state.settings.DefaultRecipients
	fromAddress := state.settings.FromAddress
	if fromAddress == "" {
		fromAddress = appCfg.FromEmail
	}
	from := fmt.Sprintf("%s <%s>", appCfg.FromName, fromAddress)

	switch {
	case p.transport == nil:
		recorder.Warn("email.transport_failure", map[string]interface{}{
			"error": "no email transport configured",
		})
	case len(recipients) == 0:
		recorder.Warn("email.transport_failure", map[string]interface{}{
			"error": "no recipients configured",
		})
	default:
		emailCtx, cancel := context.WithTimeout(ctx, time.Duration(appCfg.EmailTimeout)*time.Second)
		err := p.transport.Send(emailCtx, mail.Message{
			From:    from,
			To:      recipients,
			Subject: subject,
			HTML:    digestHTML,
			Text:    digestText,
		})
		cancel()
		if err != nil {
			recorder.Warn("email.transport_failure", map[string]interface{}{
				"transport": p.transport.Name(),
				"error":     err.Error(),
			})
		} else {
			state.run.EmailSent = true
			recorder.Info("Email delivered", map[string]interface{}{
				"transport":  p.transport.Name(),
				"recipients": len(recipients),
			})
		}
	}
}

// checkInterrupted records cancellation or deadline expiry and tells the
// caller to stop. No persistent state is mutated afterwards beyond logs and
// the terminal run row.
func (p *Pipeline) checkInterrupted(ctx context.Context, state *runState) bool {
	switch ctx.Err() {
	case nil:
		return false
	case context.DeadlineExceeded:
		state.deadline = true
		state.recorder.Error("run.deadline_exceeded", nil)
	default:
		state.cancelled = true
		state.recorder.Error("run.cancelled", nil)
	}
	return true
}

// finish computes the terminal status and writes it as the last, atomic
// update to the run row.
func (p *Pipeline) finish(state *runState) {
	now := time.Now().UTC()
	state.run.FinishedAt = &now

	switch {
	case state.cancelled:
		state.run.Status = "failed"
		state.run.Error = "cancelled"
	case state.fatal != "":
		state.run.Status = "failed"
		state.run.Error = Redact(state.fatal)
	case state.deadline:
		if state.run.FeedsOK > 0 {
			state.run.Status = "partial"
		} else {
			state.run.Status = "failed"
		}
		state.run.Error = "deadline_exceeded"
	case state.run.FeedsOK == 0:
		state.run.Status = "failed"
		state.run.Error = "no feeds succeeded"
	case state.aiOK && state.run.EmailSent:
		state.run.Status = "success"
	default:
		state.run.Status = "partial"
	}

	if err := p.runRepo.FinishRun(state.run); err != nil {
		state.recorder.Error("Failed to finalize run", map[string]interface{}{"error": err.Error()})
		return
	}

	state.recorder.Info("Run finished", map[string]interface{}{
		"status":        state.run.Status,
		"articles_used": state.run.ArticlesUsed,
		"email_sent":    state.run.EmailSent,
	})
}
