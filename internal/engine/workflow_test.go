package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/playperu/manhunt/internal/manhunt"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(e *testEnv)
		person      manhunt.PersonID
		game        string
		joinStarted bool
		wantErr     error
		wantHunters []manhunt.PersonID
	}{
		{
			name:        "created game",
			person:      "h1",
			game:        "g1",
			wantHunters: []manhunt.PersonID{"h1"},
		},
		{
			name:    "unknown game",
			person:  "h1",
			game:    "nope",
			wantErr: ErrGameNotFound,
		},
		{
			name:    "own game",
			person:  "s1",
			game:    "g1",
			wantErr: ErrOwnGame,
		},
		{
			name: "repeat join is idempotent",
			setup: func(e *testEnv) {
				e.game("g1", "s1", e.now.Add(time.Hour), "h1")
			},
			person:      "h1",
			game:        "g1",
			wantHunters: []manhunt.PersonID{"h1"},
		},
		{
			name: "hunter elsewhere",
			setup: func(e *testEnv) {
				e.game("g2", "s2", e.now.Add(time.Hour), "h1")
			},
			person:  "h1",
			game:    "g1",
			wantErr: ErrAlreadyHunter,
		},
		{
			name: "sponsor elsewhere",
			setup: func(e *testEnv) {
				e.game("g2", "h1", e.now.Add(time.Hour))
			},
			person:  "h1",
			game:    "g1",
			wantErr: ErrAlreadySponsor,
		},
		{
			name: "started game",
			setup: func(e *testEnv) {
				g := e.game("g1", "s1", e.now.Add(-time.Minute), "h0")
				g.Status = manhunt.StatusProcessed
				g.CurrentRound = 1
				e.games.put(g)
			},
			person:      "h1",
			game:        "g1",
			wantErr:     ErrNotJoinable,
			wantHunters: []manhunt.PersonID{"h0"},
		},
		{
			name: "started game with late joining allowed",
			setup: func(e *testEnv) {
				g := e.game("g1", "s1", e.now.Add(-time.Minute), "h0")
				g.Status = manhunt.StatusProcessed
				g.CurrentRound = 1
				e.games.put(g)
			},
			person:      "h1",
			game:        "g1",
			joinStarted: true,
			wantHunters: []manhunt.PersonID{"h0", "h1"},
		},
		{
			name: "ended game",
			setup: func(e *testEnv) {
				g := e.game("g1", "s1", e.now.Add(-time.Hour))
				g.Status = manhunt.StatusEnded
				g.Result = manhunt.ResultCancelled
				e.games.put(g)
			},
			person:  "h1",
			game:    "g1",
			wantErr: ErrGameEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *Config) { c.JoinWhileProcessed = tt.joinStarted })
			env.game("g1", "s1", env.now.Add(time.Hour))
			if tt.setup != nil {
				tt.setup(env)
			}

			reply, err := env.svc.Join(context.Background(), tt.person, tt.game)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && reply.Text != msgJoined {
				t.Errorf("reply = %q, want %q", reply.Text, msgJoined)
			}
			if tt.game != "g1" {
				return
			}
			got := env.games.get(t, "g1").Hunters
			if diff := cmp.Diff(tt.wantHunters, got); diff != "" {
				t.Errorf("hunters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJoinTwiceAddsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.game("g1", "s1", env.now.Add(time.Hour))

	for range 3 {
		if _, err := env.svc.Join(ctx, "h1", "g1"); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	if got := env.games.get(t, "g1").Hunters; len(got) != 1 {
		t.Errorf("hunters = %v, want exactly one entry", got)
	}
}

func TestStartDeepLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.game("g1", "s1", env.now.Add(time.Hour))

	reply, err := env.svc.Start(ctx, "h1", "join_g1")
	if err != nil {
		t.Fatalf("start with invite: %v", err)
	}
	if reply.Text != msgJoined || !env.games.get(t, "g1").HasHunter("h1") {
		t.Errorf("deep link did not join: reply %q", reply.Text)
	}

	reply, err = env.svc.Start(ctx, "h2", "")
	if err != nil {
		t.Fatalf("plain start: %v", err)
	}
	if reply.Text != msgWelcome {
		t.Errorf("reply = %q, want welcome", reply.Text)
	}
}

func TestLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.game("g1", "s1", env.now.Add(time.Hour), "h1", "h2")

	if _, err := env.svc.Leave(ctx, "h3", "g1"); !errors.Is(err, ErrNotHunter) {
		t.Errorf("non-hunter: err = %v, want ErrNotHunter", err)
	}
	if _, err := env.svc.Leave(ctx, "h1", "missing"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("missing game: err = %v, want ErrGameNotFound", err)
	}
	if _, err := env.svc.Leave(ctx, "h1", "g1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if diff := cmp.Diff([]manhunt.PersonID{"h2"}, env.games.get(t, "g1").Hunters); diff != "" {
		t.Errorf("hunters mismatch (-want +got):\n%s", diff)
	}

	// A hunter who left is free to join elsewhere.
	env.game("g2", "s2", env.now.Add(time.Hour))
	if _, err := env.svc.Join(ctx, "h1", "g2"); err != nil {
		t.Errorf("join after leave: %v", err)
	}
}

func TestLeaveRunningGame(t *testing.T) {
	env := newTestEnv(t)
	g := env.game("g1", "s1", env.now.Add(-time.Minute), "h1", "h2")
	g.Status = manhunt.StatusProcessed
	g.CurrentRound = 1
	env.games.put(g)

	if _, err := env.svc.Leave(context.Background(), "h2", "g1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got := env.games.get(t, "g1")
	if got.Status != manhunt.StatusProcessed || got.HasHunter("h2") {
		t.Errorf("got status %s hunters %v", got.Status, got.Hunters)
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.game("g1", "s1", env.now.Add(time.Hour), "h1", "h2")
	env.locate("s1")

	if _, err := env.svc.Cancel(ctx, "h1", "g1"); !errors.Is(err, ErrNotSponsor) {
		t.Fatalf("hunter cancel: err = %v, want ErrNotSponsor", err)
	}
	if got := env.games.get(t, "g1"); got.Status != manhunt.StatusCreated {
		t.Fatalf("status changed by rejected cancel: %s", got.Status)
	}

	if _, err := env.svc.Cancel(ctx, "s1", "g1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got := env.games.get(t, "g1")
	if got.Status != manhunt.StatusEnded || got.Result != manhunt.ResultCancelled {
		t.Errorf("got %s/%s, want ended/cancelled", got.Status, got.Result)
	}
	if len(got.Hunters) != 0 {
		t.Errorf("hunters not cleared: %v", got.Hunters)
	}
	if env.locations.has("s1") {
		t.Error("sponsor location kept after cancel")
	}
	for _, h := range []manhunt.PersonID{"h1", "h2"} {
		if len(env.notifier.to(h)) != 1 {
			t.Errorf("%s received %d messages, want 1", h, len(env.notifier.to(h)))
		}
	}

	if _, err := env.svc.Cancel(ctx, "s1", "g1"); !errors.Is(err, ErrGameEnded) {
		t.Errorf("second cancel: err = %v, want ErrGameEnded", err)
	}

	// Everyone is free again.
	if err := env.svc.Guard().Check(ctx, "h1"); err != nil {
		t.Errorf("hunter still bound after cancel: %v", err)
	}
	if err := env.svc.Guard().Check(ctx, "s1"); err != nil {
		t.Errorf("sponsor still bound after cancel: %v", err)
	}
}

func TestCaught(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.game("g1", "s1", env.now.Add(time.Hour), "h1")

	if _, err := env.svc.Caught(ctx, "s1"); !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("created game: err = %v, want ErrNoActiveGame", err)
	}
	if _, err := env.svc.Caught(ctx, "h1"); !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("hunter: err = %v, want ErrNoActiveGame", err)
	}

	g := env.games.get(t, "g1")
	g.Status = manhunt.StatusProcessed
	g.CurrentRound = 2
	env.games.put(g)
	env.locate("s1")

	if _, err := env.svc.Caught(ctx, "s1"); err != nil {
		t.Fatalf("caught: %v", err)
	}
	got := env.games.get(t, "g1")
	if got.Status != manhunt.StatusEnded || got.Result != manhunt.ResultHuntersWin {
		t.Errorf("got %s/%s, want ended/hunters-win", got.Status, got.Result)
	}
	if env.locations.has("s1") {
		t.Error("sponsor location kept after capture")
	}
	if msgs := env.notifier.to("h1"); len(msgs) != 1 || msgs[0].Text != noticeText(got, manhunt.Notice{Event: manhunt.EventHuntersCaught}, kyiv) {
		t.Errorf("hunter messages = %+v", msgs)
	}
	if len(env.notifier.to("s1")) != 1 {
		t.Errorf("sponsor messages = %+v", env.notifier.to("s1"))
	}
}

// A command that read the game before the scheduler ended it must not
// overwrite the result or announce a second outcome.
func TestCommandLosesToSchedulerEnd(t *testing.T) {
	tests := []struct {
		name string
		run  func(env *testEnv) error
	}{
		{"caught", func(env *testEnv) error {
			_, err := env.svc.Caught(context.Background(), "s1")
			return err
		}},
		{"cancel", func(env *testEnv) error {
			_, err := env.svc.Cancel(context.Background(), "s1", "g1")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			g := env.game("g1", "s1", env.now.Add(-10*time.Minute), "h1")
			g.Status = manhunt.StatusProcessed
			g.CurrentRound = 2
			env.games.put(g)
			env.locate("s1")

			env.games.interleave = func(stored *manhunt.Game) {
				*stored = manhunt.End(*stored, manhunt.ResultSponsorWin).Game
			}

			err := tt.run(env)
			if !errors.Is(err, manhunt.ErrConflict) {
				t.Fatalf("err = %v, want ErrConflict", err)
			}
			got := env.games.get(t, "g1")
			if got.Status != manhunt.StatusEnded || got.Result != manhunt.ResultSponsorWin {
				t.Errorf("got %s/%s, want ended/sponsor-win", got.Status, got.Result)
			}
			if msgs := env.notifier.to("h1"); len(msgs) != 0 {
				t.Errorf("hunter messages = %+v, want none", msgs)
			}
			if msgs := env.notifier.to("s1"); len(msgs) != 0 {
				t.Errorf("sponsor messages = %+v, want none", msgs)
			}
			if !env.locations.has("s1") {
				t.Error("rejected command cleared the sponsor location")
			}
		})
	}
}

func TestReportLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, c := range []struct{ lat, lon float64 }{
		{91, 0}, {-91, 0}, {0, 181}, {0, -181}, {math.NaN(), 0},
	} {
		if _, err := env.svc.ReportLocation(ctx, "p1", c.lat, c.lon); !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("(%v, %v): err = %v, want ErrInvalidLocation", c.lat, c.lon, err)
		}
	}

	reply, err := env.svc.ReportLocation(ctx, "p1", 50.45, 30.52)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if want := "✅ Location received! Keep sharing it: hunters receive it every 5 minutes."; reply.Text != want {
		t.Errorf("reply = %q", reply.Text)
	}
	env.svc.ReportLocation(ctx, "p1", 50.46, 30.53)
	loc, err := env.locations.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loc.Latitude != 50.46 || loc.Longitude != 30.53 {
		t.Errorf("latest location = %+v", loc)
	}
}

func TestTextsFollowRoundInterval(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     string
	}{
		{time.Minute, "every minute"},
		{10 * time.Minute, "every 10 minutes"},
		{90 * time.Second, "every 90 seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			env := newTestEnv(t, func(c *Config) { c.RoundInterval = tt.interval })

			reply, err := env.svc.ReportLocation(context.Background(), "p1", 50.45, 30.52)
			if err != nil {
				t.Fatalf("report: %v", err)
			}
			if !strings.Contains(reply.Text, "hunters receive it "+tt.want+".") {
				t.Errorf("reply = %q, want %q", reply.Text, tt.want)
			}

			help := env.svc.Help()
			if help != HelpText(tt.interval) {
				t.Errorf("Help() differs from HelpText(%s)", tt.interval)
			}
			upper := strings.ToUpper(tt.want[:1]) + tt.want[1:]
			if !strings.Contains(help, "📍 "+upper+" the position of S") {
				t.Errorf("help does not mention %q:\n%s", upper, help)
			}
			if strings.Contains(help, "5 minutes") {
				t.Errorf("help still mentions the default interval:\n%s", help)
			}
		})
	}
}

func TestActiveGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.game("g1", "s1", env.now.Add(time.Hour), "h1")

	for _, tt := range []struct {
		person   manhunt.PersonID
		wantRole Role
		wantErr  error
	}{
		{"s1", RoleSponsor, nil},
		{"h1", RoleHunter, nil},
		{"x", "", ErrNoActiveGame},
	} {
		g, role, err := env.svc.ActiveGame(ctx, tt.person)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: err = %v, want %v", tt.person, err, tt.wantErr)
			continue
		}
		if role != tt.wantRole {
			t.Errorf("%s: role = %q, want %q", tt.person, role, tt.wantRole)
		}
		if err == nil && g.ID != "g1" {
			t.Errorf("%s: game = %s", tt.person, g.ID)
		}
	}
}

// Random create and join attempts never leave a person active in two games
// or active as both sponsor and hunter.
func TestMembershipIsExclusive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))
	people := make([]manhunt.PersonID, 8)
	for i := range people {
		people[i] = manhunt.PersonID(fmt.Sprintf("p%d", i))
	}

	for step := range 400 {
		p := people[rng.IntN(len(people))]
		switch rng.IntN(4) {
		case 0:
			if _, err := env.svc.StartOnboarding(ctx, p); err != nil {
				continue
			}
			for _, in := range []string{"Run", "2025-06-02 10:00", "60", "100"} {
				env.svc.Input(ctx, p, in)
			}
		case 1, 2:
			games := env.games.find(func(g manhunt.Game) bool { return g.Status.Active() })
			if len(games) == 0 {
				continue
			}
			env.svc.Join(ctx, p, games[rng.IntN(len(games))].ID)
		case 3:
			if g, role, err := env.svc.ActiveGame(ctx, p); err == nil {
				if role == RoleSponsor {
					env.svc.Cancel(ctx, p, g.ID)
				} else {
					env.svc.Leave(ctx, p, g.ID)
				}
			}
		}

		active := map[manhunt.PersonID]int{}
		for _, g := range env.games.find(func(g manhunt.Game) bool { return g.Status.Active() }) {
			active[g.SponsorID]++
			for _, h := range g.Hunters {
				active[h]++
			}
		}
		for person, n := range active {
			if n > 1 {
				t.Fatalf("step %d: %s is active in %d roles", step, person, n)
			}
		}
	}
}
