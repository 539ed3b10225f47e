package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playperu/manhunt/internal/manhunt"
)

const (
	msgWelcome = "Hello! Use /create_obrgame to create a game."

	msgAskName             = "Enter the game name (no more than 20 characters):"
	msgAskDuration         = "How long will the game last? (30 to 120 minutes, in steps of 10):"
	msgAskPrize            = "Enter the prize amount (50 to 1000 UAH, in steps of 50):"
	msgAskLocation         = "📍 To take part, allow access to your location and share it with the bot."
	msgJoined              = "You have joined the game!"
	msgLeft                = "You have left the game."
	msgCancelled           = "The game has been cancelled."
	msgCaught              = "Capture recorded. The hunters win."
	msgOnboardingCancelled = "Game creation cancelled."
)

const helpRules = `🕵️ Rules of the game:
- Players split into the sponsor (S) and hunters (H).
- 🎯 Goal: S must stay free until time runs out; H must catch S by touching them or their clothes.
- 📍 %s the position of S is sent to every hunter.
- 🚫 Hiding where hunters cannot follow (locked entrances, private premises) is forbidden.
- 🚶 No transport: moving on foot only.
- ❌ S is disqualified if no location is available or S leaves the agreed area.
- 🏆 The prize goes to whoever catches S.`

// HelpText explains the rules for games broadcasting every interval.
func HelpText(interval time.Duration) string {
	phrase := every(interval)
	return fmt.Sprintf(helpRules, strings.ToUpper(phrase[:1])+phrase[1:])
}

func locationSaved(interval time.Duration) string {
	return "✅ Location received! Keep sharing it: hunters receive it " + every(interval) + "."
}

// every phrases a round interval, e.g. "every 5 minutes" or "every minute".
func every(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "every minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("every %d minutes", int(d/time.Minute))
	case d == time.Second:
		return "every second"
	case d%time.Second == 0:
		return fmt.Sprintf("every %d seconds", int(d/time.Second))
	}
	return "every " + d.String()
}

func askStartDate(now time.Time) string {
	return fmt.Sprintf("Enter the start date and time (format: YYYY-MM-DD HH:MM), for example %s:",
		now.Add(time.Hour).Format(manhunt.StartDateLayout))
}

// rejection is the re-prompt for input that failed validation.
func rejection(err error) string {
	switch {
	case errors.Is(err, manhunt.ErrNameEmpty):
		return "The game name cannot be empty. Enter another:"
	case errors.Is(err, manhunt.ErrNameTooLong):
		return "The game name must be at most 20 characters! Enter another:"
	case errors.Is(err, manhunt.ErrDateFormat):
		return "Invalid format. Use: YYYY-MM-DD HH:MM"
	case errors.Is(err, manhunt.ErrDateInvalid):
		return "Invalid date. Check that this date exists (for example, 30 February does not)."
	case errors.Is(err, manhunt.ErrDatePast):
		return "That time has already passed. Enter a time in the future."
	case errors.Is(err, manhunt.ErrDurationInvalid):
		return "Invalid duration. Enter a number from 30 to 120 in steps of 10."
	case errors.Is(err, manhunt.ErrPrizeInvalid):
		return "Invalid amount. Enter a number from 50 to 1000 in steps of 50."
	}
	return "Invalid input, try again."
}

func gameCreated(g manhunt.Game, inviteLink string, loc *time.Location) string {
	return fmt.Sprintf("🎉 Game \"%s\" created!\n\n"+
		"📅 Start: %s\n"+
		"⏳ Duration: %d min.\n"+
		"🏆 Prize: %d UAH\n\n"+
		"🔗 Join: %s\n\n"+
		"📢 Invite your friends: more players, better game! 🎯",
		g.Name, g.StartDate.In(loc).Format(manhunt.StartDateLayout), g.Duration, g.Prize, inviteLink)
}

func noticeText(g manhunt.Game, n manhunt.Notice, loc *time.Location) string {
	switch n.Event {
	case manhunt.EventNotEnoughHunters:
		return fmt.Sprintf("⏳ Game \"%s\" cannot start yet: nobody has joined as a hunter. We will try again in a minute.", g.Name)
	case manhunt.EventStartedSponsor:
		return fmt.Sprintf("🎮 Game \"%s\" has started!\nYour goal is to stay hidden as long as possible. Game time: %d min.", g.Name, g.Duration)
	case manhunt.EventStartedHunter:
		return fmt.Sprintf("🎯 Game \"%s\" has started!\nFind and catch the sponsor as fast as you can. Game time: %d min.", g.Name, g.Duration)
	case manhunt.EventSponsorLocation:
		return "📍 The sponsor is here right now!\nKeep searching!"
	case manhunt.EventSponsorWon:
		return fmt.Sprintf("🏆 Congratulations! You won game \"%s\"!\nYou stayed unseen until the end.", g.Name)
	case manhunt.EventHuntersLost:
		return fmt.Sprintf("❌ Game \"%s\" is over.\nUnfortunately you did not catch the sponsor this time.", g.Name)
	case manhunt.EventDisqualified:
		return fmt.Sprintf("❌ You were disqualified from game \"%s\" because your location was unavailable.", g.Name)
	case manhunt.EventWonByDisqualified:
		return fmt.Sprintf("🏆 Congratulations! Game \"%s\" is over and you win: the sponsor was disqualified.", g.Name)
	case manhunt.EventCaught:
		return fmt.Sprintf("❌ You were caught! Game \"%s\" ended with a win for the hunters.", g.Name)
	case manhunt.EventHuntersCaught:
		return fmt.Sprintf("🏆 Congratulations! You caught the sponsor in game \"%s\". The hunters win!", g.Name)
	case manhunt.EventCancelled:
		return fmt.Sprintf("🚫 Game \"%s\" scheduled for %s was cancelled by the sponsor.", g.Name, g.StartDate.In(loc).Format(manhunt.StartDateLayout))
	}
	return ""
}
