package model

import (
	"database/sql"
	"time"
)

// SessionFingerprint is one device the user has been seen on. There is one
// logical record per (user_id, device_fingerprint) pair; every session check
// upserts it with the latest IP, user agent and activity timestamp.
type SessionFingerprint struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	IPAddress         string    `json:"ip_address"`
	UserAgent         string    `json:"user_agent"`
	ScreenResolution  string    `json:"screen_resolution"`
	Timezone          string    `json:"timezone"`
	Language          string    `json:"language"`
	Platform          string    `json:"platform"`
	LastActivity      time.Time `json:"last_activity"`
	CreatedAt         time.Time `json:"created_at"`
}

// UpsertSessionFingerprint records the latest sighting of a device. Last
// write wins, except last_activity which only moves forward.
func UpsertSessionFingerprint(db *sql.DB, fp *SessionFingerprint) error {
	if fp.LastActivity.IsZero() {
		fp.LastActivity = time.Now()
	}
	_, err := db.Exec(`
	INSERT INTO user_sessions (user_id, device_fingerprint, ip_address, user_agent, screen_resolution, timezone, language, platform, last_activity, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, device_fingerprint) DO UPDATE SET
		ip_address = excluded.ip_address,
		user_agent = excluded.user_agent,
		screen_resolution = excluded.screen_resolution,
		timezone = excluded.timezone,
		language = excluded.language,
		platform = excluded.platform,
		last_activity = MAX(last_activity, excluded.last_activity)`,
		fp.UserID,
		fp.DeviceFingerprint,
		fp.IPAddress,
		fp.UserAgent,
		fp.ScreenResolution,
		fp.Timezone,
		fp.Language,
		fp.Platform,
		fp.LastActivity,
		time.Now(),
	)
	return err
}

// GetSessionFingerprints returns the devices recorded for a user, most
// recently active first.
func GetSessionFingerprints(db *sql.DB, userID int64) ([]SessionFingerprint, error) {
	rows, err := db.Query(`
	SELECT id, user_id, device_fingerprint, ip_address, user_agent, screen_resolution, timezone, language, platform, last_activity, created_at
	FROM user_sessions
	WHERE user_id = ?
	ORDER BY last_activity DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fps []SessionFingerprint
	for rows.Next() {
		var fp SessionFingerprint
		if err := rows.Scan(
			&fp.ID, &fp.UserID, &fp.DeviceFingerprint, &fp.IPAddress, &fp.UserAgent,
			&fp.ScreenResolution, &fp.Timezone, &fp.Language, &fp.Platform,
			&fp.LastActivity, &fp.CreatedAt,
		); err != nil {
			return nil, err
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

// DetectSuspiciousIPChange compares a session's new network origin against
// the user's recent IP history (device records plus login history, last 30
// days). The verdict is true when the user has history and the new IP appears
// nowhere in it. A user with no history is never suspicious, and an unknown
// IP (lookup failure) never raises a warning.
func DetectSuspiciousIPChange(db *sql.DB, userID int64, newIP string) (bool, error) {
	if newIP == "" || newIP == "unknown" {
		return false, nil
	}

	since := time.Now().Add(-30 * 24 * time.Hour)

	var historyCount int
	err := db.QueryRow(`
	SELECT
		(SELECT COUNT(*) FROM user_sessions WHERE user_id = ? AND last_activity > ?) +
		(SELECT COUNT(*) FROM login_history WHERE user_id = ? AND created_at > ?)`,
		userID, since, userID, since,
	).Scan(&historyCount)
	if err != nil {
		return false, err
	}
	if historyCount == 0 {
		return false, nil
	}

	var matchCount int
	err = db.QueryRow(`
	SELECT
		(SELECT COUNT(*) FROM user_sessions WHERE user_id = ? AND ip_address = ? AND last_activity > ?) +
		(SELECT COUNT(*) FROM login_history WHERE user_id = ? AND ip_address = ? AND created_at > ?)`,
		userID, newIP, since, userID, newIP, since,
	).Scan(&matchCount)
	if err != nil {
		return false, err
	}

	return matchCount == 0, nil
}

// MFARateLimitResult is the verdict of the MFA attempt limiter.
type MFARateLimitResult struct {
	Allowed           bool      `json:"allowed"`
	RemainingAttempts int       `json:"remaining_attempts"`
	ResetAt           time.Time `json:"reset_at"`
	FailedAttempts    int       `json:"failed_attempts"`
}

// CheckMFARateLimit counts recent failed MFA attempts for (user, IP) inside
// the sliding window and decides whether another attempt is allowed.
func CheckMFARateLimit(db *sql.DB, userID int64, ip string, window time.Duration, maxFailures int) (*MFARateLimitResult, error) {
	since := time.Now().Add(-window)

	var failed int
	var oldest sql.NullTime
	err := db.QueryRow(`
	SELECT COUNT(*), MIN(attempted_at)
	FROM mfa_attempts
	WHERE user_id = ? AND ip_address = ? AND success = FALSE AND attempted_at > ?`,
		userID, ip, since,
	).Scan(&failed, &oldest)
	if err != nil {
		return nil, err
	}

	result := &MFARateLimitResult{
		Allowed:        failed < maxFailures,
		FailedAttempts: failed,
	}
	if remaining := maxFailures - failed; remaining > 0 {
		result.RemainingAttempts = remaining
	}
	if oldest.Valid {
		result.ResetAt = oldest.Time.Add(window)
	} else {
		result.ResetAt = time.Now().Add(window)
	}
	return result, nil
}

// RecordMFAAttempt stores one verification attempt for the rate limiter.
func RecordMFAAttempt(db *sql.DB, userID int64, ip string, success bool) error {
	_, err := db.Exec(`
	INSERT INTO mfa_attempts (user_id, ip_address, success, attempted_at)
	VALUES (?, ?, ?, ?)`, userID, ip, success, time.Now())
	return err
}

// ClearMFAAttempts removes the failure history after a successful
// verification so the user starts the next window clean.
func ClearMFAAttempts(db *sql.DB, userID int64, ip string) error {
	_, err := db.Exec(`DELETE FROM mfa_attempts WHERE user_id = ? AND ip_address = ?`, userID, ip)
	return err
}
