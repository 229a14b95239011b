package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func sessionTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL UNIQUE,
		refresh_token TEXT NOT NULL UNIQUE,
		user_agent TEXT NOT NULL DEFAULT '',
		client_ip TEXT NOT NULL DEFAULT '',
		is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)

	return db
}

func TestSessionLifecycle(t *testing.T) {
	db := sessionTestDB(t)

	session := &Session{
		UserID:       1,
		Token:        "access-token",
		RefreshToken: "refresh-token",
		UserAgent:    "Mozilla/5.0",
		ClientIP:     "203.0.113.7",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, CreateSession(db, session))

	byToken, err := GetSessionByToken(db, "access-token")
	require.NoError(t, err)
	assert.Equal(t, int64(1), byToken.UserID)

	byRefresh, err := GetSessionByRefreshToken(db, "refresh-token")
	require.NoError(t, err)
	assert.Equal(t, byToken.ID, byRefresh.ID)

	require.NoError(t, DeleteSessionByToken(db, "access-token"))
	_, err = GetSessionByToken(db, "access-token")
	assert.Error(t, err)
}

func TestGetSessionByTokenRejectsExpired(t *testing.T) {
	db := sessionTestDB(t)

	require.NoError(t, CreateSession(db, &Session{
		UserID:       1,
		Token:        "stale",
		RefreshToken: "stale-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	_, err := GetSessionByToken(db, "stale")
	assert.Error(t, err)
}

func TestListActiveSessions(t *testing.T) {
	db := sessionTestDB(t)

	require.NoError(t, CreateSession(db, &Session{
		UserID: 1, Token: "a", RefreshToken: "ra", ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, CreateSession(db, &Session{
		UserID: 2, Token: "b", RefreshToken: "rb", ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, CreateSession(db, &Session{
		UserID: 3, Token: "c", RefreshToken: "rc", ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, CreateSession(db, &Session{
		UserID: 4, Token: "d", RefreshToken: "rd", IsBlocked: true, ExpiresAt: time.Now().Add(time.Hour),
	}))

	active, err := ListActiveSessions(db)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, int64(1), active[0].UserID)
	assert.Equal(t, int64(2), active[1].UserID)
}
