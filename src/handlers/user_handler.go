// backend/src/handlers/user_handler.go

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/username/valorpme/backend/src/database"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/model"
	"github.com/username/valorpme/backend/src/security"
	"github.com/username/valorpme/backend/src/services"
	"golang.org/x/oauth2"
)

type contextKey string

const userIDContextKey contextKey = "userID"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var googleOauthConfig *oauth2.Config

type UserHandler struct {
	authService   *security.AuthService
	emailService  services.EmailService
	mfaService    *services.MFAService
	resendLimiter *services.ResendLimiter
	sentinel      *services.SessionSentinel
}

func NewUserHandler(
	authService *security.AuthService,
	emailService services.EmailService,
	mfaService *services.MFAService,
	resendLimiter *services.ResendLimiter,
	sentinel *services.SessionSentinel,
) *UserHandler {
	return &UserHandler{
		authService:   authService,
		emailService:  emailService,
		mfaService:    mfaService,
		resendLimiter: resendLimiter,
		sentinel:      sentinel,
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func sendJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		sendJSONError(w, "Verification token is missing", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByVerificationToken(database.DB, token)
	if err != nil {
		logger.L.Warn("Verification token lookup failed", "tokenPrefix", token[:min(10, len(token))], "error", err)
		sendJSONError(w, "Invalid or expired verification token.", http.StatusBadRequest)
		return
	}

	if user.IsEmailVerified {
		logger.L.Info("Email already verified", "userID", user.ID)
		sendJSON(w, http.StatusOK, map[string]string{"message": "Email already verified. You can log in."})
		return
	}

	if time.Now().After(user.EmailVerificationTokenExpiresAt) {
		logger.L.Warn("Verification token expired", "userID", user.ID, "tokenExpiry", user.EmailVerificationTokenExpiresAt)
		sendJSONError(w, "Verification token has expired. Please request a new one.", http.StatusBadRequest)
		return
	}

	if err := user.UpdateUserVerificationStatus(database.DB, true); err != nil {
		logger.L.Error("Failed to update user verification status in DB", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to verify email. Please try again or contact support.", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Email verified successfully", "userID", user.ID)
	sendJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully! You can now log in."})
}

// ResendVerificationHandler re-sends the verification email, limited per
// address (default 3/hour). The response is the same whether or not the
// account exists.
func (h *UserHandler) ResendVerificationHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !emailRegex.MatchString(req.Email) {
		sendJSONError(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	if !h.resendLimiter.Allow(req.Email) {
		logger.L.Warn("Verification resend limit exceeded", "email", req.Email)
		sendJSONError(w, "Too many verification emails requested. Please try again later.", http.StatusTooManyRequests)
		return
	}

	genericResponse := map[string]string{"message": "If an account with that email exists, a new verification link has been sent."}

	user, err := model.GetUserByEmail(database.DB, req.Email)
	if err != nil || user.IsEmailVerified {
		sendJSON(w, http.StatusOK, genericResponse)
		return
	}

	token, err := generateSecureToken()
	if err != nil {
		logger.L.Error("Failed to generate verification token for resend", "userID", user.ID, "error", err)
		sendJSON(w, http.StatusOK, genericResponse)
		return
	}
	if err := user.UpdateUserVerificationToken(database.DB, token, time.Now().Add(verificationTokenExpiry())); err != nil {
		logger.L.Error("Failed to update verification token for resend", "userID", user.ID, "error", err)
		sendJSON(w, http.StatusOK, genericResponse)
		return
	}
	if err := h.emailService.SendVerificationEmail(user.Email, user.Username, token); err != nil {
		logger.L.Error("Failed to resend verification email", "userID", user.ID, "error", err)
	}

	sendJSON(w, http.StatusOK, genericResponse)
}

// --- ADMIN FUNCTIONS ---

type adminUserRow struct {
	ID              int64          `json:"id"`
	Username        string         `json:"username"`
	Email           string         `json:"email"`
	AuthProvider    string         `json:"auth_provider"`
	ValuationCount  int            `json:"valuation_count"`
	LoginCount      int            `json:"login_count"`
	LastLoginAt     model.NullTime `json:"last_login_at"`
	IsEmailVerified bool           `json:"is_email_verified"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (h *UserHandler) HandleGetAdminUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`
	SELECT u.id, u.username, u.email, u.auth_provider,
	       (SELECT COUNT(*) FROM valuations v WHERE v.user_id = u.id),
	       u.login_count, u.last_login_at, u.is_email_verified, u.created_at
	FROM users u
	ORDER BY u.created_at DESC`)
	if err != nil {
		logger.L.Error("Failed to list users for admin", "error", err)
		sendJSONError(w, "Database error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	users := []adminUserRow{}
	for rows.Next() {
		var u adminUserRow
		var authProvider sql.NullString
		var lastLoginAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &authProvider, &u.ValuationCount,
			&u.LoginCount, &lastLoginAt, &u.IsEmailVerified, &u.CreatedAt); err != nil {
			logger.L.Error("Failed to scan admin user row", "error", err)
			sendJSONError(w, "Database error", http.StatusInternalServerError)
			return
		}
		u.AuthProvider = authProvider.String
		u.LastLoginAt = model.NullTime(lastLoginAt)
		users = append(users, u)
	}

	sendJSON(w, http.StatusOK, map[string]any{"users": users, "total": len(users)})
}

func (h *UserHandler) HandleGetAdminStats(w http.ResponseWriter, r *http.Request) {
	var userCount, valuationCount, alertCount int

	if err := database.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&userCount); err != nil {
		logger.L.Error("Failed to count users", "error", err)
		sendJSONError(w, "Database error", http.StatusInternalServerError)
		return
	}
	if err := database.DB.QueryRow(`SELECT COUNT(*) FROM valuations`).Scan(&valuationCount); err != nil {
		logger.L.Error("Failed to count valuations", "error", err)
		sendJSONError(w, "Database error", http.StatusInternalServerError)
		return
	}
	if err := database.DB.QueryRow(`SELECT COUNT(*) FROM alerts WHERE is_read = FALSE`).Scan(&alertCount); err != nil {
		logger.L.Error("Failed to count unread alerts", "error", err)
		sendJSONError(w, "Database error", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, map[string]int{
		"users":         userCount,
		"valuations":    valuationCount,
		"unread_alerts": alertCount,
	})
}
