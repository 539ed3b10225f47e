package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/manhunt/internal/manhunt"
)

// gameDoc is the JSONB document kept in games.data. Scalar columns next to it
// carry what the finders filter on.
type gameDoc struct {
	ID           string     `json:"id"`
	SponsorID    string     `json:"sponsorId"`
	Hunters      []string   `json:"hunters"`
	Name         string     `json:"name"`
	StartDate    time.Time  `json:"startDate"`
	Duration     int        `json:"duration"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Prize        int        `json:"prize"`
	Status       string     `json:"status"`
	Result       string     `json:"result,omitempty"`
	CurrentRound int        `json:"currentRound"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toDoc(g manhunt.Game) gameDoc {
	d := gameDoc{
		ID:           g.ID,
		SponsorID:    string(g.SponsorID),
		Hunters:      make([]string, 0, len(g.Hunters)),
		Name:         g.Name,
		StartDate:    g.StartDate.UTC(),
		Duration:     g.Duration,
		Prize:        g.Prize,
		Status:       string(g.Status),
		Result:       string(g.Result),
		CurrentRound: g.CurrentRound,
		CreatedAt:    g.CreatedAt.UTC(),
	}
	for _, h := range g.Hunters {
		d.Hunters = append(d.Hunters, string(h))
	}
	if !g.EndDate.IsZero() {
		end := g.EndDate.UTC()
		d.EndDate = &end
	}
	return d
}

func (d gameDoc) game() (manhunt.Game, error) {
	status, err := manhunt.ParseStatus(d.Status)
	if err != nil {
		return manhunt.Game{}, err
	}
	result, err := manhunt.ParseResult(d.Result)
	if err != nil {
		return manhunt.Game{}, err
	}
	g := manhunt.Game{
		ID:           d.ID,
		SponsorID:    manhunt.PersonID(d.SponsorID),
		Name:         d.Name,
		StartDate:    d.StartDate,
		Duration:     d.Duration,
		Prize:        d.Prize,
		Status:       status,
		Result:       result,
		CurrentRound: d.CurrentRound,
		CreatedAt:    d.CreatedAt,
	}
	for _, h := range d.Hunters {
		g.Hunters = append(g.Hunters, manhunt.PersonID(h))
	}
	if d.EndDate != nil {
		g.EndDate = *d.EndDate
	}
	return g, nil
}

// Games is the game repository.
type Games struct {
	db  *sql.DB
	now func() time.Time
}

func NewGames(db *sql.DB) *Games {
	return &Games{db: db, now: time.Now}
}

const activeStatuses = `('created', 'processed')`

func (s *Games) FindActiveBySponsor(ctx context.Context, sponsor manhunt.PersonID) (manhunt.Game, error) {
	return s.one(ctx,
		`SELECT json(data) FROM games
		 WHERE sponsor_id = ? AND status IN `+activeStatuses+`
		 ORDER BY start_date LIMIT 1`,
		string(sponsor),
	)
}

func (s *Games) FindActiveByHunter(ctx context.Context, hunter manhunt.PersonID) (manhunt.Game, error) {
	return s.one(ctx,
		`SELECT json(g.data) FROM games g, json_each(g.data, '$.hunters') h
		 WHERE g.status IN `+activeStatuses+` AND h.value = ?
		 ORDER BY g.start_date LIMIT 1`,
		string(hunter),
	)
}

func (s *Games) FindByID(ctx context.Context, id string) (manhunt.Game, error) {
	return s.one(ctx, `SELECT json(data) FROM games WHERE id = ?`, id)
}

// FindDueToStart returns created games whose start date is not after now.
func (s *Games) FindDueToStart(ctx context.Context, now time.Time) ([]manhunt.Game, error) {
	return s.many(ctx,
		`SELECT json(data) FROM games
		 WHERE status = 'created' AND start_date <= ?
		 ORDER BY start_date`,
		toMillis(now),
	)
}

func (s *Games) FindProcessed(ctx context.Context) ([]manhunt.Game, error) {
	return s.many(ctx,
		`SELECT json(data) FROM games WHERE status = 'processed' ORDER BY start_date`,
	)
}

// Create stores a new game in status created.
func (s *Games) Create(ctx context.Context, ng manhunt.NewGame) (manhunt.Game, error) {
	g := manhunt.Game{
		ID:        uuid.NewString(),
		SponsorID: ng.SponsorID,
		Name:      ng.Name,
		StartDate: ng.StartDate,
		Duration:  ng.Duration,
		Prize:     ng.Prize,
		Status:    manhunt.StatusCreated,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(toDoc(g))
	if err != nil {
		return manhunt.Game{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO games (id, sponsor_id, status, start_date, current_round, data)
		 VALUES (?, ?, ?, ?, 0, jsonb(?))`,
		g.ID, string(g.SponsorID), string(g.Status), toMillis(g.StartDate), string(data),
	)
	if err != nil {
		return manhunt.Game{}, fmt.Errorf("inserting game: %w", err)
	}
	return g, nil
}

// Save overwrites a stored game. It refuses, with manhunt.ErrConflict, to
// move the game's status backwards or its round back, and to touch a game that
// has already ended. That is what happens when two writers start from the
// same snapshot and the other one won.
func (s *Games) Save(ctx context.Context, g manhunt.Game) error {
	if err := g.Check(); err != nil {
		return err
	}
	data, err := json.Marshal(toDoc(g))
	if err != nil {
		return err
	}

	var prev []any
	for _, st := range []manhunt.Status{manhunt.StatusCreated, manhunt.StatusProcessed, manhunt.StatusEnded} {
		if st.Overwritable(g.Status) {
			prev = append(prev, string(st))
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(prev)), ", ")

	args := []any{string(g.Status), g.CurrentRound, string(data), g.ID}
	args = append(args, prev...)
	args = append(args, g.CurrentRound)

	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET status = ?, current_round = ?, data = jsonb(?)
		 WHERE id = ? AND status IN (`+placeholders+`) AND current_round <= ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating game: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.FindByID(ctx, g.ID); err != nil {
		return err
	}
	return manhunt.ErrConflict
}

func (s *Games) one(ctx context.Context, query string, args ...any) (manhunt.Game, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return manhunt.Game{}, manhunt.ErrNotFound
	}
	if err != nil {
		return manhunt.Game{}, err
	}
	return decodeGame(data)
}

func (s *Games) many(ctx context.Context, query string, args ...any) ([]manhunt.Game, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []manhunt.Game
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		g, err := decodeGame(data)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func decodeGame(data string) (manhunt.Game, error) {
	var d gameDoc
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return manhunt.Game{}, fmt.Errorf("decoding game: %w", err)
	}
	return d.game()
}
