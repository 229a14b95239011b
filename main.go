package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/valorpme/backend/src/config"
	"github.com/username/valorpme/backend/src/database"
	"github.com/username/valorpme/backend/src/handlers"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/security"
	"github.com/username/valorpme/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			"https://valorpme.pt":   true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("ValorPME backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	handlers.InitializeGoogleOAuthConfig()

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()
	mfaService := services.NewMFAService()
	resendLimiter := services.NewResendLimiter(config.Cfg.ResendLimitWindow, config.Cfg.ResendLimitMax)

	sentinel := services.NewSessionSentinel(
		database.DB,
		config.Cfg.IPLookupURL,
		config.Cfg.IPLookupTimeout,
		config.Cfg.SessionCheckInterval,
	)
	sentinel.Start()
	defer sentinel.Stop()

	w := config.Cfg.ScenarioWeights
	engine := services.NewValuationEngine(services.ScenarioWeights{
		Conservative: w[0],
		Moderate:     w[1],
		Optimistic:   w[2],
		Premium:      w[3],
	})
	sectorService := services.NewSectorService(database.DB)

	userHandler := handlers.NewUserHandler(authService, emailService, mfaService, resendLimiter, sentinel)
	valuationHandler := handlers.NewValuationHandler(engine, sectorService)
	sectorHandler := handlers.NewSectorHandler(sectorService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ValorPME Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Rotas Públicas
		r.Group(func(r chi.Router) {
			r.Get("/auth/csrf", handlers.GetCSRFToken)
			r.Get("/auth/verify-email", userHandler.VerifyEmailHandler)
			r.Get("/auth/google/login", userHandler.HandleGoogleLogin)
			r.Get("/auth/google/callback", userHandler.HandleGoogleCallback)
			r.Post("/auth/password-strength", handlers.PasswordStrengthHandler)
		})

		// Rotas de Autenticação (Protegidas por CSRF)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Post("/auth/login", userHandler.LoginUserHandler)
			r.Post("/auth/register", userHandler.RegisterUserHandler)
			r.Post("/auth/refresh", userHandler.RefreshTokenHandler)
			r.Post("/auth/resend-verification", userHandler.ResendVerificationHandler)
			r.With(userHandler.AuthMiddleware).Post("/auth/logout", userHandler.LogoutUserHandler)
			r.Post("/auth/request-password-reset", userHandler.RequestPasswordResetHandler)
			r.Post("/auth/reset-password", userHandler.ResetPasswordHandler)
		})

		// Rotas Protegidas (Requerem Autenticação e CSRF)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Use(userHandler.AuthMiddleware)

			r.Get("/valuations", valuationHandler.ListValuationsHandler)
			r.Post("/valuations", valuationHandler.CreateValuationHandler)
			r.Get("/valuations/{valuationID}", valuationHandler.GetValuationHandler)
			r.Put("/valuations/{valuationID}", valuationHandler.UpdateValuationHandler)
			r.Delete("/valuations/{valuationID}", valuationHandler.DeleteValuationHandler)
			r.Put("/valuations/{valuationID}/years", valuationHandler.ReplaceYearsHandler)
			r.Post("/valuations/compute", valuationHandler.ComputeValuationHandler)

			r.Get("/sectors", sectorHandler.ListSectorsHandler)
			r.Get("/sectors/{sectorCode}", sectorHandler.GetSectorHandler)
			r.Post("/sectors/{sectorCode}/apply", sectorHandler.ApplySectorHandler)

			r.Get("/alerts", userHandler.ListAlertsHandler)
			r.Get("/alerts/unread-count", userHandler.UnreadAlertCountHandler)
			r.Post("/alerts/{alertID}/read", userHandler.MarkAlertReadHandler)
			r.Post("/alerts/read-all", userHandler.MarkAllAlertsReadHandler)

			r.Post("/session/heartbeat", userHandler.SessionHeartbeatHandler)
			r.Get("/session/devices", userHandler.ListDevicesHandler)

			r.Get("/user/has-data", userHandler.HandleCheckUserData)
			r.Post("/user/change-password", userHandler.ChangePasswordHandler)
			r.Post("/user/delete-account", userHandler.DeleteAccountHandler)

			r.Get("/user/mfa/setup", userHandler.HandleSetupMFA)
			r.Post("/user/mfa/enable", userHandler.HandleActivateMFA)
			r.Post("/user/mfa/disable", userHandler.HandleDisableMFA)
			r.Post("/user/mfa/verify", userHandler.HandleVerifyMFA)

			// Rotas de Administração
			r.Group(func(r chi.Router) {
				r.Use(userHandler.AdminMiddleware)
				r.Get("/admin/stats", userHandler.HandleGetAdminStats)
				r.Get("/admin/users", userHandler.HandleGetAdminUsers)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
