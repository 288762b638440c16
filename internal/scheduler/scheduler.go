package scheduler

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"CryptoLens/internal/analysis"
	"CryptoLens/internal/model"
	"CryptoLens/internal/notifier"
	"CryptoLens/internal/watchlist"

	"github.com/robfig/cron/v3"
)

const (
	sendRetries    = 3
	commandTimeout = time.Minute
)

// Analyzer runs the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*analysis.Report, error)
	MultiTimeframe(ctx context.Context, pair model.AssetPair, tf model.Timeframe) (*analysis.MTFReport, error)
}

// Target is a watched pair and timeframe.
type Target struct {
	Pair      model.AssetPair
	Timeframe model.Timeframe
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Analyzer  Analyzer
	Watchlist *watchlist.Manager
	Targets   []Target
	Notifier  notifier.Sender
	Ctx       context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler. tn may be nil when Telegram is not configured.
func NewScheduler(ctx context.Context, an Analyzer, wl *watchlist.Manager, targets []Target, tn notifier.Sender) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Analyzer:  an,
		Watchlist: wl,
		Targets:   targets,
		Notifier:  tn,
		Ctx:       ctx,
		now:       time.Now,
	}
}

// RegisterAll registers the watchlist refresh and digest tasks.
func (s *Scheduler) RegisterAll(refreshCron, digestCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

// refreshTask analyzes every target and alerts when a recommendation flips.
func (s *Scheduler) refreshTask() {
	log.Printf("[INFO] refreshing %d watchlist targets", len(s.Targets))
	for _, t := range s.Targets {
		if s.Ctx.Err() != nil {
			return
		}
		report, err := s.Analyzer.Analyze(s.Ctx, t.Pair, t.Timeframe, analysis.BaseLimit)
		if err != nil {
			log.Printf("[ERROR] refresh %s %s: %v", t.Pair, t.Timeframe, err)
			continue
		}
		changed, previous := s.Watchlist.Update(t.Pair, t.Timeframe, report.Indicators)
		if changed {
			log.Printf("[INFO] %s %s recommendation %s -> %s", t.Pair, t.Timeframe, previous, report.Indicators.Recommendation)
			s.trySend(notifier.FormatChangeAlert(t.Pair, t.Timeframe, previous, report.Indicators))
		}
	}
}

func (s *Scheduler) digestTask() {
	log.Println("[INFO] sending watchlist digest")
	s.trySend(notifier.FormatDigest(s.Watchlist.Snapshot(), s.now()))
	s.Watchlist.MarkDigest()
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Telegram appends @botname to commands in group chats.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/analyze", "/mtf":
		if len(fields) < 2 {
			return fmt.Sprintf("Usage: %s PAIR [timeframe]", name)
		}
		pair, err := model.ParsePair(fields[1])
		if err != nil {
			return html.EscapeString(err.Error())
		}
		tf := model.TF1h
		if len(fields) > 2 {
			if tf, err = model.ParseTimeframe(fields[2]); err != nil {
				return html.EscapeString(err.Error())
			}
		}
		if name == "/mtf" {
			return s.multiTimeframe(pair, tf)
		}
		return s.analyze(pair, tf)
	case "/watchlist":
		return notifier.FormatDigest(s.Watchlist.Snapshot(), s.now())
	case "/refresh":
		s.refreshTask()
		return notifier.FormatDigest(s.Watchlist.Snapshot(), s.now())
	default:
		return helpText
	}
}

const helpText = "Available commands:\n" +
	"• /analyze PAIR [timeframe]\n" +
	"• /mtf PAIR [timeframe]\n" +
	"• /watchlist\n" +
	"• /refresh"

func (s *Scheduler) analyze(pair model.AssetPair, tf model.Timeframe) string {
	ctx, cancel := context.WithTimeout(s.Ctx, commandTimeout)
	defer cancel()
	report, err := s.Analyzer.Analyze(ctx, pair, tf, analysis.BaseLimit)
	if err != nil {
		log.Printf("[ERROR] /analyze %s %s: %v", pair, tf, err)
		return fmt.Sprintf("❌ Analysis failed for %s %s: %s", html.EscapeString(pair.String()), tf, html.EscapeString(err.Error()))
	}
	return notifier.FormatAnalysis(pair, tf, report.Source, report.Indicators) + "\n" + notifier.FormatNarrative(report.Commentary)
}

func (s *Scheduler) multiTimeframe(pair model.AssetPair, tf model.Timeframe) string {
	ctx, cancel := context.WithTimeout(s.Ctx, commandTimeout)
	defer cancel()
	report, err := s.Analyzer.MultiTimeframe(ctx, pair, tf)
	if err != nil {
		log.Printf("[ERROR] /mtf %s %s: %v", pair, tf, err)
		return fmt.Sprintf("❌ Multi-timeframe analysis failed for %s: %s", html.EscapeString(pair.String()), html.EscapeString(err.Error()))
	}
	return notifier.FormatNarrative(report.Summary)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
