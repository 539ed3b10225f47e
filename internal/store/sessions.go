package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/playperu/manhunt/internal/manhunt"
)

// Sessions holds onboarding dialogues in progress, at most one per person.
type Sessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db}
}

func (s *Sessions) Get(ctx context.Context, p manhunt.PersonID) (manhunt.Session, error) {
	var (
		sess      = manhunt.Session{PersonID: p}
		step      string
		sponsor   string
		startDate sql.NullInt64
		updated   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT step, sponsor_id, name, start_date, duration, updated_at
		 FROM onboarding_sessions WHERE person_id = ?`,
		string(p),
	).Scan(&step, &sponsor, &sess.Name, &startDate, &sess.Duration, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return manhunt.Session{}, manhunt.ErrNotFound
	}
	if err != nil {
		return manhunt.Session{}, err
	}
	if sess.Step, err = manhunt.ParseStep(step); err != nil {
		return manhunt.Session{}, err
	}
	sess.SponsorID = manhunt.PersonID(sponsor)
	sess.StartDate = fromNullMillis(startDate)
	sess.UpdatedAt = fromMillis(updated)
	return sess, nil
}

func (s *Sessions) Upsert(ctx context.Context, sess manhunt.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO onboarding_sessions
		   (person_id, step, sponsor_id, name, start_date, duration, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(sess.PersonID), string(sess.Step), string(sess.SponsorID), sess.Name,
		nullMillis(sess.StartDate), sess.Duration, toMillis(sess.UpdatedAt),
	)
	return err
}

func (s *Sessions) Delete(ctx context.Context, p manhunt.PersonID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM onboarding_sessions WHERE person_id = ?`, string(p))
	return err
}
