package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func fingerprintTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE user_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		device_fingerprint TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		screen_resolution TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL DEFAULT '',
		last_activity TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, device_fingerprint)
	);
	CREATE TABLE login_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE mfa_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL DEFAULT FALSE,
		attempted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)

	return db
}

func TestUpsertSessionFingerprint(t *testing.T) {
	db := fingerprintTestDB(t)

	fp := &SessionFingerprint{
		UserID:            1,
		DeviceFingerprint: "abc123",
		IPAddress:         "203.0.113.7",
		UserAgent:         "Mozilla/5.0",
		LastActivity:      time.Now(),
	}
	require.NoError(t, UpsertSessionFingerprint(db, fp))

	// Same device again: record is updated, not duplicated.
	fp.IPAddress = "203.0.113.8"
	require.NoError(t, UpsertSessionFingerprint(db, fp))

	fps, err := GetSessionFingerprints(db, 1)
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, "203.0.113.8", fps[0].IPAddress)

	// A different device gets its own record.
	require.NoError(t, UpsertSessionFingerprint(db, &SessionFingerprint{
		UserID:            1,
		DeviceFingerprint: "def456",
		IPAddress:         "198.51.100.1",
		LastActivity:      time.Now(),
	}))
	fps, err = GetSessionFingerprints(db, 1)
	require.NoError(t, err)
	assert.Len(t, fps, 2)
}

func TestUpsertSessionFingerprintLastActivityOnlyMovesForward(t *testing.T) {
	db := fingerprintTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, UpsertSessionFingerprint(db, &SessionFingerprint{
		UserID: 1, DeviceFingerprint: "abc123", LastActivity: now,
	}))
	require.NoError(t, UpsertSessionFingerprint(db, &SessionFingerprint{
		UserID: 1, DeviceFingerprint: "abc123", LastActivity: now.Add(-time.Hour),
	}))

	fps, err := GetSessionFingerprints(db, 1)
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.False(t, fps[0].LastActivity.Before(now))
}

func TestDetectSuspiciousIPChange(t *testing.T) {
	db := fingerprintTestDB(t)

	// No history: never suspicious.
	suspicious, err := DetectSuspiciousIPChange(db, 1, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, suspicious)

	require.NoError(t, UpsertSessionFingerprint(db, &SessionFingerprint{
		UserID: 1, DeviceFingerprint: "abc123", IPAddress: "203.0.113.7", LastActivity: time.Now(),
	}))

	// Known IP matches history.
	suspicious, err = DetectSuspiciousIPChange(db, 1, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, suspicious)

	// Unseen IP with existing history is suspicious.
	suspicious, err = DetectSuspiciousIPChange(db, 1, "198.51.100.99")
	require.NoError(t, err)
	assert.True(t, suspicious)
}

func TestDetectSuspiciousIPChangeChecksLoginHistory(t *testing.T) {
	db := fingerprintTestDB(t)

	_, err := db.Exec(`INSERT INTO login_history (user_id, ip_address, created_at) VALUES (1, '203.0.113.7', ?)`, time.Now())
	require.NoError(t, err)

	// The IP is only in login history, not in device records - still a match.
	suspicious, err := DetectSuspiciousIPChange(db, 1, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, suspicious)

	suspicious, err = DetectSuspiciousIPChange(db, 1, "198.51.100.99")
	require.NoError(t, err)
	assert.True(t, suspicious)
}

func TestDetectSuspiciousIPChangeSkipsUnknownIP(t *testing.T) {
	db := fingerprintTestDB(t)

	suspicious, err := DetectSuspiciousIPChange(db, 1, "unknown")
	require.NoError(t, err)
	assert.False(t, suspicious)

	suspicious, err = DetectSuspiciousIPChange(db, 1, "")
	require.NoError(t, err)
	assert.False(t, suspicious)
}

func TestCheckMFARateLimit(t *testing.T) {
	db := fingerprintTestDB(t)
	const ip = "203.0.113.7"

	result, err := CheckMFARateLimit(db, 1, ip, 15*time.Minute, 5)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 5, result.RemainingAttempts)
	assert.Zero(t, result.FailedAttempts)

	for i := 0; i < 5; i++ {
		require.NoError(t, RecordMFAAttempt(db, 1, ip, false))
	}

	result, err = CheckMFARateLimit(db, 1, ip, 15*time.Minute, 5)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.RemainingAttempts)
	assert.Equal(t, 5, result.FailedAttempts)
	assert.False(t, result.ResetAt.IsZero())

	// Another user or IP is unaffected.
	other, err := CheckMFARateLimit(db, 2, ip, 15*time.Minute, 5)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestCheckMFARateLimitIgnoresSuccesses(t *testing.T) {
	db := fingerprintTestDB(t)
	const ip = "203.0.113.7"

	for i := 0; i < 10; i++ {
		require.NoError(t, RecordMFAAttempt(db, 1, ip, true))
	}

	result, err := CheckMFARateLimit(db, 1, ip, 15*time.Minute, 5)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Zero(t, result.FailedAttempts)
}

func TestClearMFAAttempts(t *testing.T) {
	db := fingerprintTestDB(t)
	const ip = "203.0.113.7"

	for i := 0; i < 5; i++ {
		require.NoError(t, RecordMFAAttempt(db, 1, ip, false))
	}
	require.NoError(t, ClearMFAAttempts(db, 1, ip))

	result, err := CheckMFARateLimit(db, 1, ip, 15*time.Minute, 5)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Zero(t, result.FailedAttempts)
}
