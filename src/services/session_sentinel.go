package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/model"
	"github.com/username/valorpme/backend/src/models"
	"github.com/username/valorpme/backend/src/security/validation"
)

// UnknownIP is the sentinel value recorded when the public IP lookup fails
// or times out. The security check degrades gracefully instead of aborting.
const UnknownIP = "unknown"

// DeviceSignals are the client environment attributes a device fingerprint
// is derived from. They distinguish sessions; they are not identity proof.
type DeviceSignals struct {
	UserAgent        string `json:"user_agent"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	CPUCount         int    `json:"cpu_count"`
}

// DeviceSignalsFromRequest derives signals from the request headers alone,
// for clients that never post a full heartbeat payload.
func DeviceSignalsFromRequest(r *http.Request) DeviceSignals {
	return DeviceSignals{
		UserAgent: r.UserAgent(),
		Language:  r.Header.Get("Accept-Language"),
	}
}

// FingerprintSignals hashes the signals to a short stable identifier.
// FNV-1a is enough here: the hash only needs to be deterministic so that a
// changed device shows up as a changed fingerprint.
func FingerprintSignals(s DeviceSignals) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%d",
		s.UserAgent, s.Language, s.Platform, s.ScreenResolution, s.Timezone, s.CPUCount)
	return fmt.Sprintf("%016x", h.Sum64())
}

// SessionSentinel runs the periodic session-security check: it fingerprints
// the device, resolves the client's public IP, asks the persistence layer
// whether the new IP looks anomalous against the user's history, raises a
// non-blocking warning alert when it does, and upserts the fingerprint
// record. Ticks already in flight are never overlapped; a late tick is
// simply skipped.
type SessionSentinel struct {
	db            *sql.DB
	lookupURL     string
	lookupTimeout time.Duration
	interval      time.Duration
	httpClient    *http.Client

	inFlight atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu      sync.RWMutex
	signals map[int64]DeviceSignals // latest heartbeat signals per user
}

func NewSessionSentinel(db *sql.DB, lookupURL string, lookupTimeout, interval time.Duration) *SessionSentinel {
	return &SessionSentinel{
		db:            db,
		lookupURL:     lookupURL,
		lookupTimeout: lookupTimeout,
		interval:      interval,
		httpClient:    &http.Client{},
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		signals:       map[int64]DeviceSignals{},
	}
}

// Start launches the periodic loop: one immediate check, then one per
// interval. Call Stop to terminate it.
func (s *SessionSentinel) Start() {
	go func() {
		defer close(s.done)

		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stop:
				return
			}
		}
	}()
	logger.L.Info("Session sentinel started", "interval", s.interval.String())
}

// Stop terminates the loop and waits for an in-flight check to finish.
func (s *SessionSentinel) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// tick runs one sweep unless the previous one is still running.
func (s *SessionSentinel) tick() {
	if !s.inFlight.CompareAndSwap(false, true) {
		logger.L.Debug("Session check already in flight, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.sweep(ctx)
}

// sweep checks every user with an active session. Errors on one user are
// logged and do not stop the rest; the next tick retries naturally.
func (s *SessionSentinel) sweep(ctx context.Context) {
	sessions, err := model.ListActiveSessions(s.db)
	if err != nil {
		logger.L.Error("Session sentinel failed to list active sessions", "error", err)
		return
	}
	if len(sessions) == 0 {
		return
	}

	seen := map[int64]bool{}
	for _, session := range sessions {
		if seen[session.UserID] {
			continue
		}
		seen[session.UserID] = true

		signals := s.signalsFor(session.UserID, session.UserAgent)
		if err := s.CheckUser(ctx, session.UserID, signals); err != nil {
			logger.L.Warn("Session security check failed", "userID", session.UserID, "error", err)
		}
	}
}

// RecordSignals stores the latest client-reported signals for a user and is
// called from the session heartbeat endpoint.
func (s *SessionSentinel) RecordSignals(userID int64, signals DeviceSignals) {
	s.mu.Lock()
	s.signals[userID] = signals
	s.mu.Unlock()
}

// signalsFor returns the last heartbeat signals for a user, falling back to
// the bare session user agent when the client never reported any.
func (s *SessionSentinel) signalsFor(userID int64, userAgent string) DeviceSignals {
	s.mu.RLock()
	signals, ok := s.signals[userID]
	s.mu.RUnlock()
	if ok {
		return signals
	}
	return DeviceSignals{UserAgent: userAgent}
}

// CheckUser runs one full security check for a user: fingerprint, IP
// resolution, suspicion verdict, warning alert, fingerprint upsert. Each
// call is independent and idempotent.
func (s *SessionSentinel) CheckUser(ctx context.Context, userID int64, signals DeviceSignals) error {
	fingerprint := FingerprintSignals(signals)

	ip := s.ResolveClientIP(ctx)

	suspicious, err := model.DetectSuspiciousIPChange(s.db, userID, ip)
	if err != nil {
		// A failed side read must not block recording the sighting.
		logger.L.Warn("Suspicious IP detection failed", "userID", userID, "error", err)
		suspicious = false
	}

	if suspicious {
		alert := &models.Alert{
			UserID:    userID,
			AlertType: models.AlertTypeSecurity,
			Severity:  models.SeverityWarning,
			Title:     "New sign-in location detected",
			Message:   fmt.Sprintf("A session for your account is now using IP address %s, which does not match your recent activity. If this was not you, change your password.", ip),
		}
		if err := models.CreateAlert(s.db, alert); err != nil {
			logger.L.Warn("Failed to create security alert", "userID", userID, "error", err)
		} else {
			logger.L.Warn("Suspicious IP change detected", "userID", userID, "ip", ip)
		}
	}

	return model.UpsertSessionFingerprint(s.db, &model.SessionFingerprint{
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		IPAddress:         ip,
		UserAgent:         signals.UserAgent,
		ScreenResolution:  signals.ScreenResolution,
		Timezone:          signals.Timezone,
		Language:          signals.Language,
		Platform:          signals.Platform,
		LastActivity:      time.Now(),
	})
}

// ResolveClientIP asks the configured lookup service for the public IP.
// The call is bounded by the lookup timeout and the answer is validated;
// on any failure it returns UnknownIP rather than an error.
func (s *SessionSentinel) ResolveClientIP(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.lookupURL, nil)
	if err != nil {
		logger.L.Warn("Failed to build IP lookup request", "error", err)
		return UnknownIP
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("IP lookup failed", "error", err)
		return UnknownIP
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L.Warn("IP lookup returned non-OK status", "status", resp.StatusCode)
		return UnknownIP
	}

	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.L.Warn("Failed to decode IP lookup response", "error", err)
		return UnknownIP
	}

	ip := strings.TrimSpace(payload.IP)
	if !validation.IsValidIPAddress(ip) {
		logger.L.Warn("IP lookup returned malformed address", "ip", ip)
		return UnknownIP
	}
	return ip
}
