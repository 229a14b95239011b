package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/valorpme/backend/src/database"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/model"
	"github.com/username/valorpme/backend/src/services"
)

// SessionHeartbeatHandler receives the client's device signals, refreshes the
// fingerprint record and runs the security check for this user immediately
// instead of waiting for the next sweep.
func (h *UserHandler) SessionHeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var signals services.DeviceSignals
	if err := json.NewDecoder(r.Body).Decode(&signals); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if signals.UserAgent == "" {
		signals.UserAgent = r.UserAgent()
	}

	h.sentinel.RecordSignals(userID, signals)

	if err := h.sentinel.CheckUser(r.Context(), userID, signals); err != nil {
		// A failed check never blocks the session.
		logger.L.Warn("Session security check failed on heartbeat", "userID", userID, "error", err)
	}

	sendJSON(w, http.StatusOK, map[string]string{
		"fingerprint": services.FingerprintSignals(signals),
	})
}

// ListDevicesHandler returns the known device fingerprints for the user.
func (h *UserHandler) ListDevicesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	devices, err := model.GetSessionFingerprints(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to list device fingerprints", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list devices", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, devices)
}
