// Package store persists games, locations, onboarding sessions and the
// broadcast log in SQLite through libSQL. Schema lives in internal/migrations.
package store

import (
	"database/sql"
	"time"
)

// Timestamps are stored as Unix milliseconds, UTC.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromMillis(n.Int64)
}
