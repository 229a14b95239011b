package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/username/valorpme/backend/src/database"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/models"
)

const defaultAlertLimit = 50

func (h *UserHandler) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	alerts, err := models.ListAlertsByUser(database.DB, userID, limit)
	if err != nil {
		logger.L.Error("Failed to list alerts", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, alerts)
}

// UnreadAlertCountHandler is count-only so the dashboard can poll it cheaply.
func (h *UserHandler) UnreadAlertCountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	count, err := models.CountUnreadAlerts(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to count unread alerts", "userID", userID, "error", err)
		sendJSONError(w, "Failed to count unread alerts", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *UserHandler) MarkAlertReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	alertID, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		sendJSONError(w, "Invalid alert id", http.StatusBadRequest)
		return
	}

	if err := models.MarkAlertRead(database.DB, alertID, userID); err != nil {
		logger.L.Error("Failed to mark alert read", "userID", userID, "alertID", alertID, "error", err)
		sendJSONError(w, "Failed to mark alert read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) MarkAllAlertsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := models.MarkAllAlertsRead(database.DB, userID); err != nil {
		logger.L.Error("Failed to mark all alerts read", "userID", userID, "error", err)
		sendJSONError(w, "Failed to mark alerts read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
