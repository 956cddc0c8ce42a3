package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// NullTime converts an optional time into a value both drivers can bind.
func NullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// TimePtr converts a scanned nullable timestamp back into *time.Time in UTC.
func TimePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
