package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/username/valorpme/backend/src/config"
	"github.com/username/valorpme/backend/src/database"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/model"
	"github.com/username/valorpme/backend/src/security/validation"
)

func (h *UserHandler) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(req.Email)))
	if !emailRegex.MatchString(req.Email) {
		sendJSONError(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	// Resposta genérica para não revelar se o e-mail existe.
	genericResponse := func() {
		sendJSON(w, http.StatusOK, map[string]string{
			"message": "Se existir uma conta com este e-mail, foi enviado um link de recuperação de senha.",
		})
	}

	user, err := model.GetUserByEmail(database.DB, req.Email)
	if err != nil {
		logger.L.Info("Password reset requested for unknown email")
		genericResponse()
		return
	}

	if user.AuthProvider != "local" {
		logger.L.Info("Password reset requested for non-local account", "userID", user.ID, "provider", user.AuthProvider)
		genericResponse()
		return
	}

	resetToken, err := generateSecureToken()
	if err != nil {
		logger.L.Error("Failed to generate password reset token", "userID", user.ID, "error", err)
		genericResponse()
		return
	}
	expiry := time.Now().Add(config.Cfg.PasswordResetTokenExpiry)

	if err := user.SetPasswordResetToken(database.DB, resetToken, expiry); err != nil {
		logger.L.Error("Failed to store password reset token", "userID", user.ID, "error", err)
		genericResponse()
		return
	}

	if err := h.emailService.SendPasswordResetEmail(user.Email, user.Username, resetToken); err != nil {
		logger.L.Error("Failed to send password reset email", "userID", user.ID, "error", err)
	}

	genericResponse()
}

func (h *UserHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Token = strings.TrimSpace(req.Token)
	req.Password = strings.TrimSpace(req.Password)

	if req.Token == "" {
		sendJSONError(w, "Reset token is required", http.StatusBadRequest)
		return
	}
	if strength := validation.CheckPasswordStrength(req.Password); !strength.Valid {
		sendJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Password does not meet the security requirements",
			"errors": strength.Errors,
		})
		return
	}

	user, err := model.GetUserByPasswordResetToken(database.DB, req.Token)
	if err != nil {
		logger.L.Warn("Password reset attempted with invalid or expired token", "error", err)
		sendJSONError(w, "Invalid or expired reset token", http.StatusBadRequest)
		return
	}

	hashedPassword, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.L.Error("Failed to hash new password on reset", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	if err := user.UpdatePassword(database.DB, hashedPassword); err != nil {
		logger.L.Error("Failed to update password on reset", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	// Invalida todas as sessões ativas após a mudança de senha.
	if _, err := database.DB.Exec("DELETE FROM sessions WHERE user_id = ?", user.ID); err != nil {
		logger.L.Error("Failed to invalidate sessions after password reset", "userID", user.ID, "error", err)
	}

	logger.L.Info("Password reset successful", "userID", user.ID)
	sendJSON(w, http.StatusOK, map[string]string{
		"message": "Senha redefinida com sucesso. Por favor, inicie sessão com a sua nova senha.",
	})
}

func (h *UserHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to load user for password change", "userID", userID, "error", err)
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	if user.AuthProvider != "local" {
		sendJSONError(w, "Password change is not available for this account type", http.StatusBadRequest)
		return
	}

	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		sendJSONError(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}

	req.NewPassword = strings.TrimSpace(req.NewPassword)
	if strength := validation.CheckPasswordStrength(req.NewPassword); !strength.Valid {
		sendJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Password does not meet the security requirements",
			"errors": strength.Errors,
		})
		return
	}

	hashedPassword, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		logger.L.Error("Failed to hash new password on change", "userID", userID, "error", err)
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	if err := user.UpdatePassword(database.DB, hashedPassword); err != nil {
		logger.L.Error("Failed to update password", "userID", userID, "error", err)
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Password changed successfully", "userID", userID)
	sendJSON(w, http.StatusOK, map[string]string{"message": "Senha alterada com sucesso."})
}
