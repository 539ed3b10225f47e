package store

import (
	"context"
	"database/sql"

	"github.com/playperu/manhunt/internal/manhunt"
)

// BroadcastLog is the append-only record of sponsor locations sent to hunters.
type BroadcastLog struct {
	db *sql.DB
}

func NewBroadcastLog(db *sql.DB) *BroadcastLog {
	return &BroadcastLog{db: db}
}

func (s *BroadcastLog) AppendBroadcast(ctx context.Context, e manhunt.BroadcastEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO broadcast_log (game_id, sponsor_id, round, latitude, longitude, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.GameID, string(e.SponsorID), e.Round, e.Latitude, e.Longitude, toMillis(e.SentAt),
	)
	return err
}

// Broadcasts lists a game's entries in the order they were sent.
func (s *BroadcastLog) Broadcasts(ctx context.Context, gameID string) ([]manhunt.BroadcastEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sponsor_id, round, latitude, longitude, sent_at
		 FROM broadcast_log WHERE game_id = ? ORDER BY id`,
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []manhunt.BroadcastEntry
	for rows.Next() {
		e := manhunt.BroadcastEntry{GameID: gameID}
		var sponsor string
		var sent int64
		if err := rows.Scan(&sponsor, &e.Round, &e.Latitude, &e.Longitude, &sent); err != nil {
			return nil, err
		}
		e.SponsorID = manhunt.PersonID(sponsor)
		e.SentAt = fromMillis(sent)
		out = append(out, e)
	}
	return out, rows.Err()
}
