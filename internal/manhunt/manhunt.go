// Package manhunt defines the core domain types of the game and the pure
// rules that move a single game through its lifecycle.
// It has zero external dependencies; everything here is pure Go.
package manhunt

import (
	"fmt"
	"slices"
	"time"
)

// PersonID identifies a participant on whatever chat transport fronts the
// service (a Telegram or Discord user id, for example).
type PersonID string

type Status string

const (
	StatusCreated   Status = "created"
	StatusProcessed Status = "processed"
	StatusEnded     Status = "ended"
)

// ParseStatus rejects anything that is not a known status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusCreated, StatusProcessed, StatusEnded:
		return st, nil
	}
	return "", fmt.Errorf("unknown game status %q", s)
}

// Active reports whether a game in this status still binds its players.
func (s Status) Active() bool {
	return s == StatusCreated || s == StatusProcessed
}

func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 1
	case StatusProcessed:
		return 2
	case StatusEnded:
		return 3
	}
	return 0
}

// Precedes reports whether a game may move from s to next. Status only moves
// forward; staying in place is allowed.
func (s Status) Precedes(next Status) bool {
	return s.rank() > 0 && next.rank() >= s.rank()
}

// Overwritable reports whether a stored game in status s may be replaced by
// one in status next. An ended game is final: its result is never rewritten.
func (s Status) Overwritable(next Status) bool {
	return s != StatusEnded && s.Precedes(next)
}

type Result string

const (
	ResultNone         Result = ""
	ResultSponsorWin   Result = "sponsor-win"
	ResultHuntersWin   Result = "hunters-win"
	ResultDisqualified Result = "sponsor-disqualified"
	ResultCancelled    Result = "cancelled"
)

func ParseResult(s string) (Result, error) {
	switch r := Result(s); r {
	case ResultNone, ResultSponsorWin, ResultHuntersWin, ResultDisqualified, ResultCancelled:
		return r, nil
	}
	return "", fmt.Errorf("unknown game result %q", s)
}

type Game struct {
	ID           string
	SponsorID    PersonID
	Hunters      []PersonID
	Name         string
	StartDate    time.Time
	Duration     int // minutes
	EndDate      time.Time
	Prize        int
	Status       Status
	Result       Result
	CurrentRound int
	CreatedAt    time.Time
}

// NewGame holds the fields collected by onboarding.
type NewGame struct {
	SponsorID PersonID
	Name      string
	StartDate time.Time
	Duration  int
	Prize     int
}

func (g Game) HasHunter(p PersonID) bool {
	return slices.Contains(g.Hunters, p)
}

// AddHunter adds p once. It reports whether the set changed.
func (g *Game) AddHunter(p PersonID) bool {
	if g.HasHunter(p) {
		return false
	}
	g.Hunters = append(g.Hunters, p)
	return true
}

// RemoveHunter reports whether p was a hunter.
func (g *Game) RemoveHunter(p PersonID) bool {
	i := slices.Index(g.Hunters, p)
	if i < 0 {
		return false
	}
	g.Hunters = slices.Delete(g.Hunters, i, i+1)
	return true
}

// Check verifies the status/result/round invariants of a game record.
func (g Game) Check() error {
	if _, err := ParseStatus(string(g.Status)); err != nil {
		return err
	}
	if _, err := ParseResult(string(g.Result)); err != nil {
		return err
	}
	switch g.Status {
	case StatusCreated:
		if g.Result != ResultNone || g.CurrentRound != 0 {
			return fmt.Errorf("game %s: created game must have no result and round 0", g.ID)
		}
	case StatusProcessed:
		if g.Result != ResultNone {
			return fmt.Errorf("game %s: processed game must have no result", g.ID)
		}
	case StatusEnded:
		if g.Result == ResultNone {
			return fmt.Errorf("game %s: ended game must have a result", g.ID)
		}
	}
	return nil
}

type Location struct {
	PersonID  PersonID
	Latitude  float64
	Longitude float64
	UpdatedAt time.Time
}

type Step string

const (
	StepAwaitingName      Step = "awaiting_name"
	StepAwaitingStartDate Step = "awaiting_start_date"
	StepAwaitingDuration  Step = "awaiting_duration"
	StepAwaitingPrize     Step = "awaiting_prize"
)

func ParseStep(s string) (Step, error) {
	switch st := Step(s); st {
	case StepAwaitingName, StepAwaitingStartDate, StepAwaitingDuration, StepAwaitingPrize:
		return st, nil
	}
	return "", fmt.Errorf("unknown onboarding step %q", s)
}

// Session is the partially collected input of a game being created.
type Session struct {
	PersonID  PersonID
	Step      Step
	SponsorID PersonID
	Name      string
	StartDate time.Time
	Duration  int
	UpdatedAt time.Time
}

// BroadcastEntry is one line of the append-only location broadcast log.
type BroadcastEntry struct {
	GameID    string
	SponsorID PersonID
	Round     int
	Latitude  float64
	Longitude float64
	SentAt    time.Time
}
