package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/valorpme/backend/src/config"
	"github.com/username/valorpme/backend/src/database"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/model"
)

func (h *UserHandler) HandleSetupMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	// Buscar user para obter o username (para o QR code ficar bonito no Google Auth)
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	secret, qrCode, err := h.mfaService.GenerateMFASecret(user.Username)
	if err != nil {
		sendJSONError(w, "Failed to generate MFA", http.StatusInternalServerError)
		return
	}

	// Guardar o segredo temporariamente na BD (mas NÃO ativar ainda mfa_enabled)
	if err := user.UpdateMfaSecret(database.DB, secret); err != nil {
		sendJSONError(w, "Failed to save MFA secret", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{
		"secret":  secret, // Opcional enviar o texto, caso o QR falhe
		"qr_code": qrCode, // Imagem base64
	})
}

func (h *UserHandler) HandleActivateMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		sendJSONError(w, "Código inválido", http.StatusUnauthorized)
		return
	}

	// Ativar na BD
	user.UpdateMfaEnabled(database.DB, true)

	sendJSON(w, http.StatusOK, map[string]string{"message": "MFA Ativado com sucesso"})
}

func (h *UserHandler) HandleDisableMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	if !user.MfaEnabled {
		sendJSONError(w, "MFA is not enabled", http.StatusBadRequest)
		return
	}

	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		sendJSONError(w, "Código inválido", http.StatusUnauthorized)
		return
	}

	if err := user.UpdateMfaEnabled(database.DB, false); err != nil {
		sendJSONError(w, "Failed to disable MFA", http.StatusInternalServerError)
		return
	}
	if err := user.UpdateMfaSecret(database.DB, ""); err != nil {
		logger.L.Error("Failed to clear MFA secret after disable", "userID", userID, "error", err)
	}

	sendJSON(w, http.StatusOK, map[string]string{"message": "MFA desativado com sucesso"})
}

// HandleVerifyMFA verifies a TOTP code during a sensitive operation. Failed
// attempts are persisted and rate limited per user and IP so codes cannot be
// brute forced.
func (h *UserHandler) HandleVerifyMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ip := clientIP(r)
	limit, err := model.CheckMFARateLimit(database.DB, userID, ip, config.Cfg.MFARateLimitWindow, config.Cfg.MFAMaxFailures)
	if err != nil {
		logger.L.Error("Failed to check MFA rate limit", "userID", userID, "error", err)
		sendJSONError(w, "Failed to verify code", http.StatusInternalServerError)
		return
	}
	if !limit.Allowed {
		logger.L.Warn("MFA verification rate limited", "userID", userID, "failedAttempts", limit.FailedAttempts)
		sendJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":    "Demasiadas tentativas falhadas. Tente novamente mais tarde.",
			"reset_at": limit.ResetAt,
		})
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	if !user.MfaEnabled {
		sendJSONError(w, "MFA is not enabled for this account", http.StatusBadRequest)
		return
	}

	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		if err := model.RecordMFAAttempt(database.DB, userID, ip, false); err != nil {
			logger.L.Error("Failed to record MFA attempt", "userID", userID, "error", err)
		}
		sendJSON(w, http.StatusUnauthorized, map[string]any{
			"error":              "Código inválido",
			"remaining_attempts": limit.RemainingAttempts - 1,
		})
		return
	}

	if err := model.ClearMFAAttempts(database.DB, userID, ip); err != nil {
		logger.L.Error("Failed to clear MFA attempts after success", "userID", userID, "error", err)
	}

	sendJSON(w, http.StatusOK, map[string]string{"message": "Código verificado com sucesso"})
}
