// Package engine runs the game lifecycle: onboarding of new games, the
// join/leave/cancel/caught commands, and the scheduler that promotes,
// advances and ends games as wall-clock time passes.
//
// All state lives behind the store interfaces below; nothing held in memory
// is authoritative, so a restarted process resumes by re-reading the stores.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/manhunt/internal/manhunt"
)

// GameRepository persists games. Finders return manhunt.ErrNotFound when
// nothing matches.
type GameRepository interface {
	FindActiveBySponsor(ctx context.Context, sponsor manhunt.PersonID) (manhunt.Game, error)
	FindActiveByHunter(ctx context.Context, hunter manhunt.PersonID) (manhunt.Game, error)
	FindByID(ctx context.Context, id string) (manhunt.Game, error)
	FindDueToStart(ctx context.Context, now time.Time) ([]manhunt.Game, error)
	FindProcessed(ctx context.Context) ([]manhunt.Game, error)
	Create(ctx context.Context, g manhunt.NewGame) (manhunt.Game, error)
	Save(ctx context.Context, g manhunt.Game) error
}

type LocationStore interface {
	Get(ctx context.Context, p manhunt.PersonID) (manhunt.Location, error)
	Upsert(ctx context.Context, loc manhunt.Location) error
	Delete(ctx context.Context, p manhunt.PersonID) error
}

type SessionStore interface {
	Get(ctx context.Context, p manhunt.PersonID) (manhunt.Session, error)
	Upsert(ctx context.Context, s manhunt.Session) error
	Delete(ctx context.Context, p manhunt.PersonID) error
}

// BroadcastLog is the append-only audit trail of location broadcasts.
type BroadcastLog interface {
	AppendBroadcast(ctx context.Context, e manhunt.BroadcastEntry) error
}

// Notifier delivers messages to people. Delivery is fire-and-forget: the
// engine logs failures and never retries them.
type Notifier interface {
	SendText(ctx context.Context, to manhunt.PersonID, text string) error
	SendLocation(ctx context.Context, to manhunt.PersonID, lat, lon float64) error
}

// Recorder receives operational measurements.
type Recorder interface {
	TickCompleted(d time.Duration, err error)
	TickSkipped()
	Transition(status manhunt.Status, result manhunt.Result)
	DeliveryFailed()
}

type Config struct {
	// Location is the reference time zone for parsing and displaying dates.
	Location      *time.Location
	RoundInterval time.Duration
	TickInterval  time.Duration
	// Workers bounds how many games one tick processes in parallel.
	Workers int
	// JoinWhileProcessed lets hunters join games that have already started.
	JoinWhileProcessed bool
	InviteBaseURL      string
}

type Deps struct {
	Games     GameRepository
	Locations LocationStore
	Sessions  SessionStore
	Log       BroadcastLog
	Notifier  Notifier
	Recorder  Recorder
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// core holds what commands and the scheduler share: the stores and the
// persist-then-notify sequence every state change goes through.
type core struct {
	cfg       Config
	games     GameRepository
	locations LocationStore
	sessions  SessionStore
	log       BroadcastLog
	notifier  Notifier
	rec       Recorder
	logger    *slog.Logger
	clock     func() time.Time
}

func newCore(cfg Config, d Deps) core {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RoundInterval <= 0 {
		cfg.RoundInterval = 5 * time.Minute
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	c := core{
		cfg:       cfg,
		games:     d.Games,
		locations: d.Locations,
		sessions:  d.Sessions,
		log:       d.Log,
		notifier:  d.Notifier,
		rec:       d.Recorder,
		logger:    d.Logger,
		clock:     d.Now,
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

func (c *core) now() time.Time {
	return c.clock().In(c.cfg.Location)
}

// apply persists a transition and then performs its side effects. Only the
// save can fail the call: clearing the location, the broadcast log and
// notifications are best-effort once the new state is durable.
func (c *core) apply(ctx context.Context, prev manhunt.Status, tr manhunt.Transition) error {
	g := tr.Game
	if tr.Changed {
		if err := c.games.Save(ctx, g); err != nil {
			return fmt.Errorf("saving game %s: %w", g.ID, err)
		}
		if g.Status != prev {
			c.rec.Transition(g.Status, g.Result)
			c.logger.Info("game transition",
				"game_id", g.ID,
				"from", prev,
				"to", g.Status,
				"result", g.Result,
				"round", g.CurrentRound,
			)
		}
	}

	if tr.ClearLocation {
		if err := c.locations.Delete(ctx, g.SponsorID); err != nil {
			c.logger.Warn("clearing sponsor location failed", "game_id", g.ID, "person_id", g.SponsorID, "error", err)
		}
	}

	for _, b := range tr.Broadcasts {
		c.appendBroadcast(ctx, g, b)
	}

	c.deliver(ctx, g, tr.Notices)
	return nil
}

func (c *core) appendBroadcast(ctx context.Context, g manhunt.Game, b manhunt.Broadcast) {
	if c.log == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := c.log.AppendBroadcast(ctx, manhunt.BroadcastEntry{
		GameID:    g.ID,
		SponsorID: g.SponsorID,
		Round:     b.Round,
		Latitude:  b.Location.Latitude,
		Longitude: b.Location.Longitude,
		SentAt:    c.now(),
	})
	if err != nil {
		c.logger.Warn("appending broadcast log failed", "game_id", g.ID, "round", b.Round, "error", err)
	}
}

func (c *core) deliver(ctx context.Context, g manhunt.Game, notices []manhunt.Notice) {
	for _, n := range notices {
		if n.Location != nil {
			if err := c.notifier.SendLocation(ctx, n.To, n.Location.Latitude, n.Location.Longitude); err != nil {
				c.deliveryFailed(g, n, err)
			}
		}
		if err := c.notifier.SendText(ctx, n.To, noticeText(g, n, c.cfg.Location)); err != nil {
			c.deliveryFailed(g, n, err)
		}
	}
}

func (c *core) deliveryFailed(g manhunt.Game, n manhunt.Notice, err error) {
	c.rec.DeliveryFailed()
	c.logger.Warn("notification failed",
		"game_id", g.ID,
		"person_id", n.To,
		"event", n.Event,
		"error", err,
	)
}

type nopRecorder struct{}

func (nopRecorder) TickCompleted(time.Duration, error) {}
func (nopRecorder) TickSkipped() {}
func (nopRecorder) Transition(manhunt.Status, manhunt.Result) {}
func (nopRecorder) DeliveryFailed() {}
