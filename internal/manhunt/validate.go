package manhunt

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength = 20

	MinDuration  = 30
	MaxDuration  = 120
	DurationStep = 10

	MinPrize  = 50
	MaxPrize  = 1000
	PrizeStep = 50

	// StartDateLayout is the YYYY-MM-DD HH:MM input format.
	StartDateLayout = "2006-01-02 15:04"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a game changed between being read and being saved.
	ErrConflict = errors.New("game was modified concurrently")
)

var (
	ErrNameEmpty       = errors.New("game name is empty")
	ErrNameTooLong     = errors.New("game name is too long")
	ErrDateFormat      = errors.New("start date does not match YYYY-MM-DD HH:MM")
	ErrDateInvalid     = errors.New("start date is not a real calendar date")
	ErrDatePast        = errors.New("start date is not in the future")
	ErrDurationInvalid = errors.New("duration is out of range")
	ErrPrizeInvalid    = errors.New("prize is out of range")
)

var startDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)

func ValidateName(text string) (string, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return "", ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// ParseStartDate reads text in loc and requires the instant to be strictly
// after now. Wall times that do not exist in loc are rejected.
func ParseStartDate(text string, loc *time.Location, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if !startDatePattern.MatchString(text) {
		return time.Time{}, ErrDateFormat
	}
	t, err := time.ParseInLocation(StartDateLayout, text, loc)
	if err != nil {
		return time.Time{}, ErrDateInvalid
	}
	// A wall time skipped by a DST jump comes back shifted by an hour.
	if t.Format(StartDateLayout) != text {
		return time.Time{}, ErrDateInvalid
	}
	if !t.After(now) {
		return time.Time{}, ErrDatePast
	}
	return t, nil
}

func ParseDuration(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < MinDuration || n > MaxDuration || n%DurationStep != 0 {
		return 0, ErrDurationInvalid
	}
	return n, nil
}

func ParsePrize(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < MinPrize || n > MaxPrize || n%PrizeStep != 0 {
		return 0, ErrPrizeInvalid
	}
	return n, nil
}

const invitePrefix = "join_"

// InviteToken is the deep-link payload that makes the bot join gameID.
func InviteToken(gameID string) string {
	return invitePrefix + gameID
}

// ParseInvite extracts the game id from a deep-link payload.
func ParseInvite(payload string) (string, bool) {
	id, ok := strings.CutPrefix(strings.TrimSpace(payload), invitePrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
