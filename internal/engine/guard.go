package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/playperu/manhunt/internal/manhunt"
)

// Guard enforces that a person is active in at most one game, as sponsor or
// as hunter. The check is not transactional with the write that follows it.
type Guard struct {
	games GameRepository
}

func NewGuard(games GameRepository) Guard {
	return Guard{games: games}
}

// ActiveAsSponsor returns the created or running game p sponsors, if any.
func (g Guard) ActiveAsSponsor(ctx context.Context, p manhunt.PersonID) (manhunt.Game, bool, error) {
	return found(g.games.FindActiveBySponsor(ctx, p))
}

// ActiveAsHunter returns the created or running game p hunts in, if any.
func (g Guard) ActiveAsHunter(ctx context.Context, p manhunt.PersonID) (manhunt.Game, bool, error) {
	return found(g.games.FindActiveByHunter(ctx, p))
}

func (g Guard) IsActiveSponsor(ctx context.Context, p manhunt.PersonID) (bool, error) {
	_, ok, err := g.ActiveAsSponsor(ctx, p)
	return ok, err
}

func (g Guard) IsActiveHunter(ctx context.Context, p manhunt.PersonID) (bool, error) {
	_, ok, err := g.ActiveAsHunter(ctx, p)
	return ok, err
}

// Check fails with ErrAlreadyHunter or ErrAlreadySponsor when p is busy.
func (g Guard) Check(ctx context.Context, p manhunt.PersonID) error {
	hunter, err := g.IsActiveHunter(ctx, p)
	if err != nil {
		return err
	}
	if hunter {
		return ErrAlreadyHunter
	}
	sponsor, err := g.IsActiveSponsor(ctx, p)
	if err != nil {
		return err
	}
	if sponsor {
		return ErrAlreadySponsor
	}
	return nil
}

func found(game manhunt.Game, err error) (manhunt.Game, bool, error) {
	if errors.Is(err, manhunt.ErrNotFound) {
		return manhunt.Game{}, false, nil
	}
	if err != nil {
		return manhunt.Game{}, false, fmt.Errorf("checking membership: %w", err)
	}
	return game, true, nil
}
