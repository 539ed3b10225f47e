package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/playperu/manhunt/internal/manhunt"
)

// Locations keeps each person's last reported position.
type Locations struct {
	db *sql.DB
}

func NewLocations(db *sql.DB) *Locations {
	return &Locations{db: db}
}

func (s *Locations) Get(ctx context.Context, p manhunt.PersonID) (manhunt.Location, error) {
	loc := manhunt.Location{PersonID: p}
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, updated_at FROM locations WHERE person_id = ?`,
		string(p),
	).Scan(&loc.Latitude, &loc.Longitude, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return manhunt.Location{}, manhunt.ErrNotFound
	}
	if err != nil {
		return manhunt.Location{}, err
	}
	loc.UpdatedAt = fromMillis(updated)
	return loc, nil
}

func (s *Locations) Upsert(ctx context.Context, loc manhunt.Location) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (person_id, latitude, longitude, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(person_id) DO UPDATE SET
		   latitude = excluded.latitude,
		   longitude = excluded.longitude,
		   updated_at = excluded.updated_at`,
		string(loc.PersonID), loc.Latitude, loc.Longitude, toMillis(loc.UpdatedAt),
	)
	return err
}

// Delete is a no-op for people without a stored location.
func (s *Locations) Delete(ctx context.Context, p manhunt.PersonID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE person_id = ?`, string(p))
	return err
}
