package engine

import (
	"errors"

	"github.com/playperu/manhunt/internal/manhunt"
)

// Command errors. None of them leave state changed.
var (
	// Membership conflicts.
	ErrAlreadySponsor = errors.New("already sponsoring an active game")
	ErrAlreadyHunter  = errors.New("already hunting in an active game")

	// Authorization.
	ErrNotSponsor = errors.New("not the sponsor of this game")
	ErrOwnGame    = errors.New("sponsor cannot hunt in their own game")
	ErrNotHunter  = errors.New("not a hunter in this game")

	// Missing entities.
	ErrGameNotFound = errors.New("game not found")
	ErrNoActiveGame = errors.New("no active game")
	ErrNoSession    = errors.New("no onboarding in progress")

	// Game state.
	ErrNotJoinable = errors.New("game is no longer open for joining")
	ErrGameEnded   = errors.New("game has already ended")

	ErrInvalidLocation = errors.New("coordinates out of range")
)

// UserMessage is the text shown to a person whose command failed with err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySponsor):
		return "You already organise an active game. You cannot start or join another one until it is over."
	case errors.Is(err, ErrAlreadyHunter):
		return "You are already playing in another active game. You cannot start or join a new one until it is over."
	case errors.Is(err, ErrNotSponsor):
		return "Only the sponsor can cancel this game."
	case errors.Is(err, ErrOwnGame):
		return "The organiser cannot take part as a hunter."
	case errors.Is(err, ErrNotHunter):
		return "You are not a hunter in this game."
	case errors.Is(err, ErrGameNotFound), errors.Is(err, manhunt.ErrNotFound):
		return "Game not found."
	case errors.Is(err, ErrNoActiveGame):
		return "You are not the sponsor of a running game, or the game is already over."
	case errors.Is(err, ErrNoSession):
		return "Nothing in progress. Use /create_obrgame to create a game."
	case errors.Is(err, ErrNotJoinable):
		return "This game has already started or finished; joining is closed."
	case errors.Is(err, ErrGameEnded):
		return "This game has already ended."
	case errors.Is(err, manhunt.ErrConflict):
		return "The game changed while we were processing your request. Please try again."
	case errors.Is(err, ErrInvalidLocation):
		return "That location does not look right. Please share it again."
	}
	return "Something went wrong. Please try again later."
}
