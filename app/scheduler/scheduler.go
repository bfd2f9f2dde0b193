package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jsnider89/ai-news-digest/app/database"
	"github.com/jsnider89/ai-news-digest/app/pipeline"
)

// job is one logical trigger: a newsletter at one time of day in its
// timezone.
type job struct {
	newsletterID string
	slug         string
	timeOfDay    string // HH:MM
	location     *time.Location
	nextFire     time.Time
}

// Scheduler materializes trigger instants for every active newsletter and
// dispatches pipeline runs. Overlapping fires for the same newsletter are
// coalesced by the runner.
type Scheduler struct {
	newsletterRepo database.NewsletterRepository
	settingsRepo   database.SettingsRepository
	runner         *pipeline.Runner

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	refreshCh chan struct{}

	mu   sync.Mutex
	jobs []job
}

func NewScheduler(newsletterRepo database.NewsletterRepository,
	settingsRepo database.SettingsRepository, runner *pipeline.Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		newsletterRepo: newsletterRepo,
		settingsRepo:   settingsRepo,
		runner:         runner,
		ctx:            ctx,
		cancel:         cancel,
		refreshCh:      make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start() {
	s.reload()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Refresh asks the scheduler to rebuild its job table after newsletter or
// settings changes. Non-blocking; repeated requests collapse into one.
func (s *Scheduler) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Jobs returns a snapshot of upcoming triggers for introspection.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, JobInfo{
			NewsletterID: j.newsletterID,
			Slug:         j.slug,
			TimeOfDay:    j.timeOfDay,
			Timezone:     j.location.String(),
			NextFire:     j.nextFire,
		})
	}
	sort.Slice(infos, func(a, b int) bool { return infos[a].NextFire.Before(infos[b].NextFire) })
	return infos
}

type JobInfo struct {
	NewsletterID string    `json:"newsletter_id"`
	Slug         string    `json:"slug"`
	TimeOfDay    string    `json:"time_of_day"`
	Timezone     string    `json:"timezone"`
	NextFire     time.Time `json:"next_fire"`
}

func (s *Scheduler) loop() {
	for {
		timer := time.NewTimer(s.untilNextFire())

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-s.refreshCh:
			timer.Stop()
			s.reload()
		case <-timer.C:
			s.fireDue()
		}
	}
}

// untilNextFire returns the sleep until the soonest job, with a floor so a
// busy table never spins and a ceiling so refreshes are picked up.
func (s *Scheduler) untilNextFire() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	wait := time.Hour
	now := time.Now()
	for _, j := range s.jobs {
		if d := j.nextFire.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// fireDue dispatches every job whose instant has passed and advances it to
// the next occurrence. Each scheduled instant fires at most once.
func (s *Scheduler) fireDue() {
	s.mu.Lock()
	now := time.Now()
	var due []job
	for i := range s.jobs {
		if !s.jobs[i].nextFire.After(now) {
			due = append(due, s.jobs[i])
			s.jobs[i].nextFire = nextFireAfter(s.jobs[i].nextFire.Add(time.Minute), s.jobs[i].timeOfDay, s.jobs[i].location)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.wg.Add(1)
		go func(j job) {
			defer s.wg.Done()
			s.dispatch(j)
		}(j)
	}
}

func (s *Scheduler) dispatch(j job) {
	slog.Info("Scheduled fire", "newsletter", j.slug, "time_of_day", j.timeOfDay)

	result, err := s.runner.Run(s.ctx, j.newsletterID)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			slog.Warn("schedule.overlap: fire coalesced", "newsletter", j.slug)
			return
		}
		slog.Error("Scheduled run failed", "newsletter", j.slug, "error", err)
		return
	}

	slog.Info("Scheduled run finished", "newsletter", j.slug,
		"run_id", result.RunID, "status", result.Status)
}

// reload rebuilds the job table from active newsletters, falling back to
// the settings' default send times and timezone where a newsletter has
// none. Next-fire instants are resolved fresh so DST shifts follow the
// timezone database.
func (s *Scheduler) reload() {
	newsletters, err := s.newsletterRepo.ListActiveNewsletters()
	if err != nil {
		slog.Error("Failed to load newsletters for scheduling", "error", err)
		return
	}

	settings, err := s.settingsRepo.Settings()
	if err != nil {
		slog.Error("Failed to load settings for scheduling", "error", err)
		return
	}

	now := time.Now()
	var jobs []job
	for _, n := range newsletters {
		times := n.ScheduleTimes
		if len(times) == 0 {
			times = settings.DefaultSendTimes
		}

		tz := n.Timezone
		if tz == "" {
			tz = settings.DefaultTimezone
		}
		location, err := time.LoadLocation(tz)
		if err != nil {
			slog.Warn("Invalid newsletter timezone, using UTC", "newsletter", n.Slug, "timezone", tz)
			location = time.UTC
		}

		for _, timeOfDay := range times {
			if _, _, err := parseTimeOfDay(timeOfDay); err != nil {
				slog.Warn("Invalid schedule time, skipping", "newsletter", n.Slug, "time", timeOfDay)
				continue
			}
			jobs = append(jobs, job{
				newsletterID: n.ID,
				slug:         n.Slug,
				timeOfDay:    timeOfDay,
				location:     location,
				nextFire:     nextFireAfter(now, timeOfDay, location),
			})
		}
	}

	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()

	slog.Info("Scheduler jobs reloaded", "jobs", len(jobs), "newsletters", len(newsletters))
}

// nextFireAfter computes the first instant after `after` matching HH:MM in
// the location's wall clock.
func nextFireAfter(after time.Time, timeOfDay string, location *time.Location) time.Time {
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return after.Add(24 * time.Hour)
	}

	local := after.In(location)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, location)
	for !candidate.After(after) {
		candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, hour, minute, 0, 0, location)
	}
	return candidate
}

func parseTimeOfDay(value string) (int, int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day: %s", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour: %s", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute: %s", value)
	}
	return hour, minute, nil
}
