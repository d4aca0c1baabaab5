package db

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestWhereClauseEmptyFilter(t *testing.T) {
	where, args := AuditFilter{}.whereClause()
	require.Equal(t, "", where)
	require.Empty(t, args)
}

func TestWhereClauseNumbersPlaceholdersInOrder(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	uid := int64(7)
	f := AuditFilter{
		From:    &from,
		To:      &to,
		Actions: []string{"create", "delete"},
		Tables:  []string{"ausschreibungen"},
		ActorID: &uid,
		PK:      "5",
		Query:   "old",
	}

	where, args := f.whereClause()
	require.Equal(t,
		"WHERE at >= $1 AND at < $2 AND action = ANY ($3) AND table_name = ANY ($4)"+
			" AND actor_user_id = $5 AND row_pk @> $6::jsonb"+
			" AND (row_pk::text ILIKE $7 OR before::text ILIKE $7 OR after::text ILIKE $7)",
		where)
	require.Len(t, args, 7)
	require.Equal(t, from, args[0])
	require.Equal(t, to, args[1])
	require.Equal(t, pq.Array([]string{"create", "delete"}), args[2])
	require.Equal(t, pq.Array([]string{"ausschreibungen"}), args[3])
	require.Equal(t, int64(7), args[4])
	require.Equal(t, `{"id": 5}`, args[5])
	require.Equal(t, "%old%", args[6])
}

func TestWhereClausePKQuoting(t *testing.T) {
	// Numeric pks match the jsonb number, everything else is quoted.
	where, args := AuditFilter{PK: "5"}.whereClause()
	require.Equal(t, "WHERE row_pk @> $1::jsonb", where)
	require.Equal(t, `{"id": 5}`, args[0])

	_, args = AuditFilter{PK: "a@example.com"}.whereClause()
	require.Equal(t, `{"id": "a@example.com"}`, args[0])
}

func TestWhereClauseActorIDWinsOverEmail(t *testing.T) {
	where, args := AuditFilter{ActorEmail: "a@example.com"}.whereClause()
	require.Equal(t, "WHERE actor_email = $1", where)
	require.Equal(t, "a@example.com", args[0])

	uid := int64(3)
	where, args = AuditFilter{ActorID: &uid, ActorEmail: "a@example.com"}.whereClause()
	require.Equal(t, "WHERE actor_user_id = $1", where)
	require.Equal(t, int64(3), args[0])
}

func TestIsDigits(t *testing.T) {
	require.True(t, isDigits("123"))
	require.False(t, isDigits(""))
	require.False(t, isDigits("12a"))
	require.False(t, isDigits("-1"))
}
