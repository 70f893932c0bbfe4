package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/thenoetrevino/tablero/internal/types"
)

// nullTimeToPtr converts sql.NullTime to *time.Time.
// Returns nil if the value is not valid.
func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time.UTC()
		return &t
	}
	return nil
}

// nullInt64ToMilestone converts sql.NullInt64 to *types.MilestoneID
func nullInt64ToMilestone(nv sql.NullInt64) *types.MilestoneID {
	if nv.Valid {
		id := types.MilestoneID(nv.Int64)
		return &id
	}
	return nil
}

// NullStringToString converts sql.NullString to string.
// Returns empty string if the value is not valid.
func NullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func milestoneArg(id *types.MilestoneID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// forUpdate appends a row lock on engines that support it. SQLite
// transactions already run one at a time on the single pooled connection.
func (q queries) forUpdate(query string) string {
	if q.dialect == DialectMySQL {
		return query + " FOR UPDATE"
	}
	return query
}
