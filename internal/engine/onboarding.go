package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/playperu/manhunt/internal/manhunt"
)

// Reply is what a command answers to the person who issued it.
type Reply struct {
	Text string
	// Accepted is false when onboarding input failed validation and the
	// same question is asked again.
	Accepted bool
	// Step is the onboarding question now awaiting an answer; empty once the
	// dialogue is over.
	Step manhunt.Step
	Game *manhunt.Game
	// FollowUp is a second message to send after Text.
	FollowUp string
}

// Service executes commands issued by people. Commands run independently of
// the scheduler and of each other.
type Service struct {
	core
	guard Guard
}

func NewService(cfg Config, d Deps) *Service {
	return &Service{core: newCore(cfg, d), guard: NewGuard(d.Games)}
}

func (s *Service) Guard() Guard { return s.guard }

// StartOnboarding begins the create-game dialogue. It replaces any dialogue
// p already had in progress.
func (s *Service) StartOnboarding(ctx context.Context, p manhunt.PersonID) (Reply, error) {
	if err := s.guard.Check(ctx, p); err != nil {
		return Reply{}, err
	}
	sess := manhunt.Session{
		PersonID:  p,
		SponsorID: p,
		Step:      manhunt.StepAwaitingName,
		UpdatedAt: s.now(),
	}
	if err := s.sessions.Upsert(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("saving session: %w", err)
	}
	return Reply{Text: msgAskName, Accepted: true, Step: sess.Step}, nil
}

// Input feeds one message of text into p's create-game dialogue. Input that
// fails validation leaves the session untouched and asks again.
func (s *Service) Input(ctx context.Context, p manhunt.PersonID, text string) (Reply, error) {
	sess, err := s.sessions.Get(ctx, p)
	if errors.Is(err, manhunt.ErrNotFound) {
		return Reply{}, ErrNoSession
	}
	if err != nil {
		return Reply{}, fmt.Errorf("loading session: %w", err)
	}

	now := s.now()
	var prompt string
	switch sess.Step {
	case manhunt.StepAwaitingName:
		name, err := manhunt.ValidateName(text)
		if err != nil {
			return reprompt(sess, err), nil
		}
		sess.Name = name
		sess.Step = manhunt.StepAwaitingStartDate
		prompt = askStartDate(now)

	case manhunt.StepAwaitingStartDate:
		start, err := manhunt.ParseStartDate(text, s.cfg.Location, now)
		if err != nil {
			return reprompt(sess, err), nil
		}
		sess.StartDate = start
		sess.Step = manhunt.StepAwaitingDuration
		prompt = msgAskDuration

	case manhunt.StepAwaitingDuration:
		d, err := manhunt.ParseDuration(text)
		if err != nil {
			return reprompt(sess, err), nil
		}
		sess.Duration = d
		sess.Step = manhunt.StepAwaitingPrize
		prompt = msgAskPrize

	case manhunt.StepAwaitingPrize:
		prize, err := manhunt.ParsePrize(text)
		if err != nil {
			return reprompt(sess, err), nil
		}
		return s.createGame(ctx, sess, prize)

	default:
		return Reply{}, fmt.Errorf("session for %s: unknown step %q", p, sess.Step)
	}

	sess.UpdatedAt = now
	if err := s.sessions.Upsert(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("saving session: %w", err)
	}
	return Reply{Text: prompt, Accepted: true, Step: sess.Step}, nil
}

func reprompt(sess manhunt.Session, err error) Reply {
	return Reply{Text: rejection(err), Step: sess.Step}
}

func (s *Service) createGame(ctx context.Context, sess manhunt.Session, prize int) (Reply, error) {
	// Someone may have invited the sponsor into a game while they were typing.
	// The session stays at the prize step so the answer can be resent later.
	if err := s.guard.Check(ctx, sess.SponsorID); err != nil {
		return Reply{}, err
	}

	g, err := s.games.Create(ctx, manhunt.NewGame{
		SponsorID: sess.SponsorID,
		Name:      sess.Name,
		StartDate: sess.StartDate,
		Duration:  sess.Duration,
		Prize:     prize,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("creating game: %w", err)
	}
	if err := s.sessions.Delete(ctx, sess.PersonID); err != nil {
		s.logger.Warn("deleting session failed", "person_id", sess.PersonID, "error", err)
	}

	s.logger.Info("game created",
		slog.String("game_id", g.ID),
		slog.String("sponsor_id", string(g.SponsorID)),
		slog.Time("start_date", g.StartDate),
		slog.Int("duration", g.Duration),
	)

	return Reply{
		Text:     gameCreated(g, s.InviteLink(g.ID), s.cfg.Location),
		Accepted: true,
		Game:     &g,
		FollowUp: msgAskLocation,
	}, nil
}

// CancelOnboarding abandons p's create-game dialogue.
func (s *Service) CancelOnboarding(ctx context.Context, p manhunt.PersonID) (Reply, error) {
	if _, err := s.sessions.Get(ctx, p); errors.Is(err, manhunt.ErrNotFound) {
		return Reply{}, ErrNoSession
	} else if err != nil {
		return Reply{}, fmt.Errorf("loading session: %w", err)
	}
	if err := s.sessions.Delete(ctx, p); err != nil {
		return Reply{}, fmt.Errorf("deleting session: %w", err)
	}
	return Reply{Text: msgOnboardingCancelled, Accepted: true}, nil
}

// Help is the rules text for this service's round interval.
func (s *Service) Help() string { return HelpText(s.cfg.RoundInterval) }

// InviteLink is the deep link that joins a game when opened.
func (s *Service) InviteLink(gameID string) string {
	token := manhunt.InviteToken(gameID)
	if s.cfg.InviteBaseURL == "" {
		return token
	}
	return s.cfg.InviteBaseURL + "?start=" + url.QueryEscape(token)
}
