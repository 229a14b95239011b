package models

import (
	"database/sql"
	"time"
)

// Alert is a per-user notification. Security warnings raised by the session
// sentinel land here; they never block the session itself.
type Alert struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	AlertType string    `json:"alert_type"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	AlertTypeSecurity  = "security"
	AlertTypeValuation = "valuation"

	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

func CreateAlert(db *sql.DB, a *Alert) error {
	a.CreatedAt = time.Now()
	res, err := db.Exec(`
	INSERT INTO alerts (user_id, alert_type, severity, title, message, is_read, created_at)
	VALUES (?, ?, ?, ?, ?, FALSE, ?)`,
		a.UserID, a.AlertType, a.Severity, a.Title, a.Message, a.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func ListAlertsByUser(db *sql.DB, userID int64, limit int) ([]Alert, error) {
	rows, err := db.Query(`
	SELECT id, user_id, alert_type, severity, title, message, is_read, created_at
	FROM alerts
	WHERE user_id = ?
	ORDER BY created_at DESC
	LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.AlertType, &a.Severity, &a.Title, &a.Message, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CountUnreadAlerts is the count-only query the dashboard polls.
func CountUnreadAlerts(db *sql.DB, userID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE user_id = ? AND is_read = FALSE`, userID).Scan(&count)
	return count, err
}

func MarkAlertRead(db *sql.DB, alertID, userID int64) error {
	_, err := db.Exec(`UPDATE alerts SET is_read = TRUE WHERE id = ? AND user_id = ?`, alertID, userID)
	return err
}

func MarkAllAlertsRead(db *sql.DB, userID int64) error {
	_, err := db.Exec(`UPDATE alerts SET is_read = TRUE WHERE user_id = ?`, userID)
	return err
}
