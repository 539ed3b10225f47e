package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playperu/manhunt/internal/manhunt"
)

var kyiv = time.FixedZone("EEST", 3*60*60)

type memGames struct {
	mu    sync.Mutex
	games map[string]manhunt.Game
	seq   int
	// saves counts successful Save calls.
	saves int
	// interleave, when set, runs under the lock just before Save compares
	// against the stored game, standing in for a concurrent writer.
	interleave func(stored *manhunt.Game)
}

func newMemGames() *memGames {
	return &memGames{games: map[string]manhunt.Game{}}
}

func clone(g manhunt.Game) manhunt.Game {
	g.Hunters = slices.Clone(g.Hunters)
	return g
}

func (m *memGames) put(g manhunt.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = clone(g)
}

func (m *memGames) get(t *testing.T, id string) manhunt.Game {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		t.Fatalf("game %s not stored", id)
	}
	return clone(g)
}

func (m *memGames) find(match func(manhunt.Game) bool) []manhunt.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []manhunt.Game
	for _, g := range m.games {
		if match(g) {
			out = append(out, clone(g))
		}
	}
	slices.SortFunc(out, func(a, b manhunt.Game) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func first(gs []manhunt.Game) (manhunt.Game, error) {
	if len(gs) == 0 {
		return manhunt.Game{}, manhunt.ErrNotFound
	}
	return gs[0], nil
}

func (m *memGames) FindActiveBySponsor(_ context.Context, p manhunt.PersonID) (manhunt.Game, error) {
	return first(m.find(func(g manhunt.Game) bool { return g.Status.Active() && g.SponsorID == p }))
}

func (m *memGames) FindActiveByHunter(_ context.Context, p manhunt.PersonID) (manhunt.Game, error) {
	return first(m.find(func(g manhunt.Game) bool { return g.Status.Active() && g.HasHunter(p) }))
}

func (m *memGames) FindByID(_ context.Context, id string) (manhunt.Game, error) {
	return first(m.find(func(g manhunt.Game) bool { return g.ID == id }))
}

func (m *memGames) FindDueToStart(_ context.Context, now time.Time) ([]manhunt.Game, error) {
	return m.find(func(g manhunt.Game) bool {
		return g.Status == manhunt.StatusCreated && !g.StartDate.After(now)
	}), nil
}

func (m *memGames) FindProcessed(context.Context) ([]manhunt.Game, error) {
	return m.find(func(g manhunt.Game) bool { return g.Status == manhunt.StatusProcessed }), nil
}

func (m *memGames) Create(_ context.Context, ng manhunt.NewGame) (manhunt.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	g := manhunt.Game{
		ID:        fmt.Sprintf("g%d", m.seq),
		SponsorID: ng.SponsorID,
		Name:      ng.Name,
		StartDate: ng.StartDate,
		Duration:  ng.Duration,
		Prize:     ng.Prize,
		Status:    manhunt.StatusCreated,
	}
	m.games[g.ID] = g
	return clone(g), nil
}

func (m *memGames) Save(_ context.Context, g manhunt.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.games[g.ID]
	if !ok {
		return manhunt.ErrNotFound
	}
	if m.interleave != nil {
		m.interleave(&prev)
		m.games[g.ID] = prev
		m.interleave = nil
	}
	if !prev.Status.Overwritable(g.Status) || prev.CurrentRound > g.CurrentRound {
		return manhunt.ErrConflict
	}
	m.games[g.ID] = clone(g)
	m.saves++
	return nil
}

type memLocations struct {
	mu   sync.Mutex
	locs map[manhunt.PersonID]manhunt.Location
	err  error
}

func newMemLocations() *memLocations {
	return &memLocations{locs: map[manhunt.PersonID]manhunt.Location{}}
}

func (m *memLocations) Get(_ context.Context, p manhunt.PersonID) (manhunt.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return manhunt.Location{}, m.err
	}
	l, ok := m.locs[p]
	if !ok {
		return manhunt.Location{}, manhunt.ErrNotFound
	}
	return l, nil
}

func (m *memLocations) Upsert(_ context.Context, l manhunt.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locs[l.PersonID] = l
	return nil
}

func (m *memLocations) Delete(_ context.Context, p manhunt.PersonID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locs, p)
	return nil
}

func (m *memLocations) has(p manhunt.PersonID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locs[p]
	return ok
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[manhunt.PersonID]manhunt.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[manhunt.PersonID]manhunt.Session{}}
}

func (m *memSessions) Get(_ context.Context, p manhunt.PersonID) (manhunt.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[p]
	if !ok {
		return manhunt.Session{}, manhunt.ErrNotFound
	}
	return s, nil
}

func (m *memSessions) Upsert(_ context.Context, s manhunt.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.PersonID] = s
	return nil
}

func (m *memSessions) Delete(_ context.Context, p manhunt.PersonID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, p)
	return nil
}

type memLog struct {
	mu      sync.Mutex
	entries []manhunt.BroadcastEntry
}

func (m *memLog) AppendBroadcast(_ context.Context, e manhunt.BroadcastEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type sent struct {
	To       manhunt.PersonID
	Text     string
	Location bool
}

// recordingNotifier keeps every message; sends to people in fail return an
// error after being recorded.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	fail map[manhunt.PersonID]bool
}

func (n *recordingNotifier) SendText(_ context.Context, to manhunt.PersonID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{To: to, Text: text})
	if n.fail[to] {
		return errors.New("recipient blocked the bot")
	}
	return nil
}

func (n *recordingNotifier) SendLocation(_ context.Context, to manhunt.PersonID, _, _ float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{To: to, Location: true})
	if n.fail[to] {
		return errors.New("recipient blocked the bot")
	}
	return nil
}

func (n *recordingNotifier) to(p manhunt.PersonID) []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sent
	for _, s := range n.sent {
		if s.To == p {
			out = append(out, s)
		}
	}
	return out
}

func (n *recordingNotifier) locationsTo(p manhunt.PersonID) int {
	c := 0
	for _, s := range n.to(p) {
		if s.Location {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type countingRecorder struct {
	mu          sync.Mutex
	ticks       int
	skipped     int
	transitions map[manhunt.Status]int
	failures    int
}

func (r *countingRecorder) TickCompleted(time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *countingRecorder) TickSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

func (r *countingRecorder) Transition(s manhunt.Status, _ manhunt.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitions == nil {
		r.transitions = map[manhunt.Status]int{}
	}
	r.transitions[s]++
}

func (r *countingRecorder) DeliveryFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

type testEnv struct {
	games     *memGames
	locations *memLocations
	sessions  *memSessions
	log       *memLog
	notifier  *recordingNotifier
	rec       *countingRecorder
	now       time.Time

	svc   *Service
	sched *Scheduler
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		games:     newMemGames(),
		locations: newMemLocations(),
		sessions:  newMemSessions(),
		log:       &memLog{},
		notifier:  &recordingNotifier{},
		rec:       &countingRecorder{},
		now:       time.Date(2025, 6, 1, 18, 0, 0, 0, kyiv),
	}
	cfg := Config{
		Location:      kyiv,
		RoundInterval: 5 * time.Minute,
		TickInterval:  time.Minute,
		Workers:       4,
		InviteBaseURL: "https://t.me/manhunt_bot",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	deps := Deps{
		Games:     env.games,
		Locations: env.locations,
		Sessions:  env.sessions,
		Log:       env.log,
		Notifier:  env.notifier,
		Recorder:  env.rec,
		Now:       func() time.Time { return env.now },
	}
	env.svc = NewService(cfg, deps)
	env.sched = NewScheduler(cfg, deps)
	return env
}

// game stores a created game starting at start with the given hunters.
func (e *testEnv) game(id string, sponsor manhunt.PersonID, start time.Time, hunters ...manhunt.PersonID) manhunt.Game {
	g := manhunt.Game{
		ID:        id,
		SponsorID: sponsor,
		Hunters:   hunters,
		Name:      "Night Run",
		StartDate: start,
		Duration:  30,
		Prize:     100,
		Status:    manhunt.StatusCreated,
	}
	e.games.put(g)
	return g
}

func (e *testEnv) locate(p manhunt.PersonID) {
	e.locations.Upsert(context.Background(), manhunt.Location{PersonID: p, Latitude: 50.45, Longitude: 30.52, UpdatedAt: e.now})
}

func (e *testEnv) tick(t *testing.T, at time.Time) {
	t.Helper()
	if err := e.sched.Tick(context.Background(), at); err != nil {
		t.Fatalf("tick at %s: %v", at.Format(time.TimeOnly), err)
	}
}
