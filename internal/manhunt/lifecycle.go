package manhunt

import "time"

// Event names what a notice tells its recipient.
type Event string

const (
	EventNotEnoughHunters  Event = "not_enough_hunters"
	EventStartedSponsor    Event = "started_sponsor"
	EventStartedHunter     Event = "started_hunter"
	EventSponsorLocation   Event = "sponsor_location"
	EventSponsorWon        Event = "sponsor_won"
	EventHuntersLost       Event = "hunters_lost"
	EventDisqualified      Event = "disqualified"
	EventWonByDisqualified Event = "won_by_disqualification"
	EventCaught            Event = "caught"
	EventHuntersCaught     Event = "hunters_caught"
	EventCancelled         Event = "cancelled"
)

// Notice is one message owed to one person as a consequence of a transition.
type Notice struct {
	To       PersonID
	Event    Event
	Location *Location // set for EventSponsorLocation
}

// Broadcast records a location sent to hunters for one round.
type Broadcast struct {
	Round    int
	Location Location
}

// Transition is the outcome of applying the lifecycle rules to a game at an
// instant. Game is the state to persist when Changed is set; everything else
// is side effects owed after persistence.
type Transition struct {
	Game          Game
	Changed       bool
	ClearLocation bool
	Broadcasts    []Broadcast
	Notices       []Notice
}

// Ended reports whether the transition terminated the game.
func (t Transition) Ended() bool {
	return t.Changed && t.Game.Status == StatusEnded
}

func (t *Transition) notify(to PersonID, ev Event) {
	t.Notices = append(t.Notices, Notice{To: to, Event: ev})
}

func (t *Transition) notifyHunters(hunters []PersonID, ev Event) {
	for _, h := range hunters {
		t.notify(h, ev)
	}
}

// End terminates g with result. Hunters are notified from the membership held
// before termination; the persisted game has its hunters cleared.
func End(g Game, result Result) Transition {
	t := Transition{Game: g}
	t.end(result)
	return t
}

func (t *Transition) end(result Result) {
	if t.Game.Status == StatusEnded {
		return
	}
	hunters := t.Game.Hunters
	sponsor := t.Game.SponsorID

	t.Game.Status = StatusEnded
	t.Game.Result = result
	t.Game.Hunters = nil
	t.Changed = true
	t.ClearLocation = true

	switch result {
	case ResultSponsorWin:
		t.notify(sponsor, EventSponsorWon)
		t.notifyHunters(hunters, EventHuntersLost)
	case ResultDisqualified:
		t.notify(sponsor, EventDisqualified)
		t.notifyHunters(hunters, EventWonByDisqualified)
	case ResultHuntersWin:
		t.notify(sponsor, EventCaught)
		t.notifyHunters(hunters, EventHuntersCaught)
	case ResultCancelled:
		t.notifyHunters(hunters, EventCancelled)
	}
}

// broadcast sends the sponsor's location for the current round, or
// disqualifies the sponsor when no location is known. It reports whether the
// game is still running.
func (t *Transition) broadcast(loc *Location) bool {
	if loc == nil {
		t.end(ResultDisqualified)
		return false
	}
	// TODO: treat locations older than one round as unknown once a staleness
	// policy is agreed; today any stored record counts.
	t.Broadcasts = append(t.Broadcasts, Broadcast{Round: t.Game.CurrentRound, Location: *loc})
	for _, h := range t.Game.Hunters {
		l := *loc
		t.Notices = append(t.Notices, Notice{To: h, Event: EventSponsorLocation, Location: &l})
	}
	return true
}

// NextRoundTime is when the round after CurrentRound begins.
func NextRoundTime(g Game, interval time.Duration) time.Time {
	return g.StartDate.Add(time.Duration(g.CurrentRound) * interval)
}

// TotalRounds is the number of rounds played by a game that runs its full
// duration.
func TotalRounds(durationMinutes int, interval time.Duration) int {
	return int(time.Duration(durationMinutes) * time.Minute / interval)
}

// Promote starts a created game whose start date has passed. A game without
// hunters stays created and its sponsor is told so; it is reconsidered on the
// next tick.
func Promote(g Game, now time.Time, loc *Location) Transition {
	t := Transition{Game: g}
	if g.Status != StatusCreated || now.Before(g.StartDate) {
		return t
	}
	if len(g.Hunters) == 0 {
		t.notify(g.SponsorID, EventNotEnoughHunters)
		return t
	}

	t.Game.Status = StatusProcessed
	t.Game.EndDate = g.StartDate.Add(time.Duration(g.Duration) * time.Minute)
	t.Game.CurrentRound = 1
	t.Changed = true

	t.notify(g.SponsorID, EventStartedSponsor)
	t.notifyHunters(g.Hunters, EventStartedHunter)
	t.broadcast(loc)
	return t
}

// Advance ends a running game whose time is up, or moves it through every
// round boundary crossed by now, broadcasting once per round.
func Advance(g Game, now time.Time, loc *Location, interval time.Duration) Transition {
	t := Transition{Game: g}
	if g.Status != StatusProcessed || interval <= 0 {
		return t
	}
	if !now.Before(g.EndDate) {
		t.end(ResultSponsorWin)
		return t
	}
	for !now.Before(NextRoundTime(t.Game, interval)) {
		t.Game.CurrentRound++
		t.Changed = true
		if !t.broadcast(loc) {
			break
		}
	}
	return t
}
