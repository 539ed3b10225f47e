package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/manhunt/internal/manhunt"
)

// ErrTickInProgress is returned by Tick when the previous tick has not
// finished yet.
var ErrTickInProgress = errors.New("previous tick still running")

// Scheduler moves games through their lifecycle as time passes. It keeps no
// state between ticks other than what the stores hold.
type Scheduler struct {
	core
	mu sync.Mutex
}

func NewScheduler(cfg Config, d Deps) *Scheduler {
	return &Scheduler{core: newCore(cfg, d)}
}

// Run ticks once immediately and then every TickInterval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"tick_interval", s.cfg.TickInterval.String(),
		"round_interval", s.cfg.RoundInterval.String(),
		"workers", s.cfg.Workers,
	)

	s.runTick(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	err := s.Tick(ctx, s.now())
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.logger.Warn("tick skipped", "error", err)
	case err != nil:
		s.logger.Error("tick failed", "error", err)
	}
}

// Tick runs one promotion pass and one advance pass at now. Ticks never
// overlap: a tick that starts while another is running is skipped.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	if !s.mu.TryLock() {
		s.rec.TickSkipped()
		return ErrTickInProgress
	}
	defer s.mu.Unlock()

	start := time.Now()
	err := errors.Join(s.promotePass(ctx, now), s.advancePass(ctx, now))
	s.rec.TickCompleted(time.Since(start), err)
	return err
}

func (s *Scheduler) promotePass(ctx context.Context, now time.Time) error {
	games, err := s.games.FindDueToStart(ctx, now)
	if err != nil {
		return fmt.Errorf("finding games due to start: %w", err)
	}
	return s.each(ctx, games, func(ctx context.Context, g manhunt.Game) error {
		var loc *manhunt.Location
		if len(g.Hunters) > 0 {
			l, err := s.sponsorLocation(ctx, g)
			if err != nil {
				return err
			}
			loc = l
		}
		return s.apply(ctx, g.Status, manhunt.Promote(g, now, loc))
	})
}

func (s *Scheduler) advancePass(ctx context.Context, now time.Time) error {
	games, err := s.games.FindProcessed(ctx)
	if err != nil {
		return fmt.Errorf("finding running games: %w", err)
	}
	return s.each(ctx, games, func(ctx context.Context, g manhunt.Game) error {
		var loc *manhunt.Location
		if now.Before(g.EndDate) && !now.Before(manhunt.NextRoundTime(g, s.cfg.RoundInterval)) {
			l, err := s.sponsorLocation(ctx, g)
			if err != nil {
				return err
			}
			loc = l
		}
		tr := manhunt.Advance(g, now, loc, s.cfg.RoundInterval)
		if err := s.apply(ctx, g.Status, tr); err != nil {
			return err
		}
		if tr.Ended() {
			s.logger.Info("game over",
				"game_id", g.ID,
				"result", tr.Game.Result,
				"round", tr.Game.CurrentRound,
				"total_rounds", manhunt.TotalRounds(g.Duration, s.cfg.RoundInterval),
			)
		}
		return nil
	})
}

// each runs fn for every game on at most Workers goroutines. A failing game
// does not stop the others.
func (s *Scheduler) each(ctx context.Context, games []manhunt.Game, fn func(context.Context, manhunt.Game) error) error {
	var (
		mu   sync.Mutex
		errs []error
		eg   errgroup.Group
	)
	eg.SetLimit(s.cfg.Workers)

	for _, g := range games {
		eg.Go(func() error {
			if err := fn(ctx, g); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("game %s: %w", g.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	eg.Wait()
	return errors.Join(errs...)
}

// sponsorLocation returns nil when the sponsor has no stored location. Any
// other lookup failure skips the game for this tick instead of disqualifying.
func (s *Scheduler) sponsorLocation(ctx context.Context, g manhunt.Game) (*manhunt.Location, error) {
	loc, err := s.locations.Get(ctx, g.SponsorID)
	if errors.Is(err, manhunt.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading sponsor location: %w", err)
	}
	return &loc, nil
}
