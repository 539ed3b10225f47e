package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/playperu/manhunt/internal/manhunt"
)

type Role string

const (
	RoleSponsor Role = "sponsor"
	RoleHunter  Role = "hunter"
)

// Start handles an opened deep link. A join_<gameId> payload joins the game;
// anything else greets the person.
func (s *Service) Start(ctx context.Context, p manhunt.PersonID, payload string) (Reply, error) {
	if id, ok := manhunt.ParseInvite(payload); ok {
		return s.Join(ctx, p, id)
	}
	return Reply{Text: msgWelcome, Accepted: true}, nil
}

// Join adds p to the game's hunters. Joining a game p already hunts in
// succeeds without changing it.
func (s *Service) Join(ctx context.Context, p manhunt.PersonID, gameID string) (Reply, error) {
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return Reply{}, err
	}
	if g.SponsorID == p {
		return Reply{}, ErrOwnGame
	}
	if g.HasHunter(p) && g.Status.Active() {
		return Reply{Text: msgJoined, Accepted: true, Game: &g}, nil
	}

	if err := s.guard.Check(ctx, p); err != nil {
		return Reply{}, err
	}

	switch g.Status {
	case manhunt.StatusCreated:
	case manhunt.StatusProcessed:
		if !s.cfg.JoinWhileProcessed {
			return Reply{}, ErrNotJoinable
		}
	default:
		return Reply{}, ErrGameEnded
	}

	g.AddHunter(p)
	if err := s.apply(ctx, g.Status, manhunt.Transition{Game: g, Changed: true}); err != nil {
		return Reply{}, err
	}
	s.logger.Info("hunter joined", "game_id", g.ID, "person_id", p, "hunters", len(g.Hunters))
	return Reply{Text: msgJoined, Accepted: true, Game: &g}, nil
}

// Leave removes p from the game's hunters in any status.
func (s *Service) Leave(ctx context.Context, p manhunt.PersonID, gameID string) (Reply, error) {
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return Reply{}, err
	}
	if !g.RemoveHunter(p) {
		return Reply{}, ErrNotHunter
	}
	if err := s.apply(ctx, g.Status, manhunt.Transition{Game: g, Changed: true}); err != nil {
		return Reply{}, err
	}
	s.logger.Info("hunter left", "game_id", g.ID, "person_id", p, "hunters", len(g.Hunters))
	return Reply{Text: msgLeft, Accepted: true, Game: &g}, nil
}

// Cancel ends a game on its sponsor's request.
func (s *Service) Cancel(ctx context.Context, p manhunt.PersonID, gameID string) (Reply, error) {
	g, err := s.gameByID(ctx, gameID)
	if err != nil {
		return Reply{}, err
	}
	if g.SponsorID != p {
		return Reply{}, ErrNotSponsor
	}
	if g.Status == manhunt.StatusEnded {
		return Reply{}, ErrGameEnded
	}

	tr := manhunt.End(g, manhunt.ResultCancelled)
	if err := s.apply(ctx, g.Status, tr); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgCancelled, Accepted: true, Game: &tr.Game}, nil
}

// Caught records the sponsor's own report of being caught.
func (s *Service) Caught(ctx context.Context, p manhunt.PersonID) (Reply, error) {
	g, err := s.games.FindActiveBySponsor(ctx, p)
	if errors.Is(err, manhunt.ErrNotFound) {
		return Reply{}, ErrNoActiveGame
	}
	if err != nil {
		return Reply{}, fmt.Errorf("finding sponsored game: %w", err)
	}
	if g.Status != manhunt.StatusProcessed {
		return Reply{}, ErrNoActiveGame
	}

	tr := manhunt.End(g, manhunt.ResultHuntersWin)
	if err := s.apply(ctx, g.Status, tr); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgCaught, Accepted: true, Game: &tr.Game}, nil
}

// ReportLocation stores p's latest position.
func (s *Service) ReportLocation(ctx context.Context, p manhunt.PersonID, lat, lon float64) (Reply, error) {
	if !validCoordinates(lat, lon) {
		return Reply{}, ErrInvalidLocation
	}
	err := s.locations.Upsert(ctx, manhunt.Location{
		PersonID:  p,
		Latitude:  lat,
		Longitude: lon,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("saving location: %w", err)
	}
	return Reply{Text: locationSaved(s.cfg.RoundInterval), Accepted: true}, nil
}

func validCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ActiveGame returns the created or running game p takes part in and the
// role p plays in it.
func (s *Service) ActiveGame(ctx context.Context, p manhunt.PersonID) (manhunt.Game, Role, error) {
	g, ok, err := s.guard.ActiveAsSponsor(ctx, p)
	if err != nil {
		return manhunt.Game{}, "", err
	}
	if ok {
		return g, RoleSponsor, nil
	}
	g, ok, err = s.guard.ActiveAsHunter(ctx, p)
	if err != nil {
		return manhunt.Game{}, "", err
	}
	if ok {
		return g, RoleHunter, nil
	}
	return manhunt.Game{}, "", ErrNoActiveGame
}

func (s *Service) GameByID(ctx context.Context, id string) (manhunt.Game, error) {
	return s.gameByID(ctx, id)
}

func (s *Service) gameByID(ctx context.Context, id string) (manhunt.Game, error) {
	g, err := s.games.FindByID(ctx, id)
	if errors.Is(err, manhunt.ErrNotFound) {
		return manhunt.Game{}, ErrGameNotFound
	}
	if err != nil {
		return manhunt.Game{}, fmt.Errorf("loading game %s: %w", id, err)
	}
	return g, nil
}
