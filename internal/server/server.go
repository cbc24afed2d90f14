package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"matricare/internal/app"
	"matricare/internal/ratelimit"
	"matricare/internal/util"
	"matricare/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	RedisAddr     string
	RedisPassword string

	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int

	ProxyTrust *util.ProxyTrust
}

// Server exposes the HTTP endpoints of the backend.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	proxyTrust      *util.ProxyTrust
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "matricare:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
		proxyTrust:      cfg.ProxyTrust,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
// CORS sits outside auth so preflight requests short-circuit to 204 without
// touching token verification.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("/register", s.handleRegister)
	s.mux.HandleFunc("/login", s.handleLogin)

	// risk assessment and assistant
	s.mux.Handle("/predict", s.authenticated(s.handlePredict))
	s.mux.HandleFunc("/chat", s.handleChat)

	// mother self-service
	s.mux.Handle("/update-health-log", s.authenticated(s.handleUpdateHealthLog))
	s.mux.Handle("/get-health-logs", s.authenticated(s.handleGetHealthLogs))
	s.mux.Handle("/get-mother-profile", s.authenticated(s.handleGetMotherProfile))
	s.mux.Handle("/get-timeline", s.authenticated(s.handleGetTimeline))
	s.mux.Handle("/update-due-date", s.authenticated(s.handleUpdateDueDate))
	s.mux.Handle("/update-consent", s.authenticated(s.handleUpdateConsent))
	s.mux.Handle("/update-gamification", s.authenticated(s.handleUpdateGamification))

	// quiz scores and risk history
	s.mux.Handle("/test-scores", s.authenticated(s.handleTestScores))
	s.mux.Handle("/test-results", s.authenticated(s.handleTestResults))

	// nurse
	s.mux.Handle("/nurse/assigned-mothers", s.authenticated(s.handleAssignedMothers))

	// appointments
	s.mux.Handle("/schedule-appointment", s.authenticated(s.handleScheduleAppointment))
	s.mux.Handle("/get-appointments", s.authenticated(s.handleGetAppointments))
	s.mux.Handle("/update-appointment", s.authenticated(s.handleUpdateAppointment))

	// admin
	s.mux.Handle("/admin/stats", s.authenticated(s.handleAdminStats))
	s.mux.Handle("/admin/users", s.authenticated(s.handleAdminUsers))
	s.mux.Handle("/admin/mothers", s.authenticated(s.handleAdminMothers))
	s.mux.Handle("/admin/nurses", s.authenticated(s.handleAdminNurses))
	s.mux.Handle("/admin/assign-mother", s.authenticated(s.handleAssignMother))
	s.mux.Handle("/admin/remove-assignment", s.authenticated(s.handleRemoveAssignment))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := bearerToken(r)
		if !ok {
			s.audit(r, "auth.token", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		user, err := s.app.Authenticate(bearer)
		if err != nil {
			s.audit(r, "auth.token", "fail", "reason", "invalid_or_expired")
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

// optionalUser resolves the caller when a bearer token is present, without
// failing the request when it is absent or unusable.
func (s *Server) optionalUser(r *http.Request) *domain.User {
	bearer, ok := bearerToken(r)
	if !ok {
		return nil
	}
	user, err := s.app.Authenticate(bearer)
	if err != nil {
		return nil
	}
	return &user
}

// account handlers

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts, try again later") {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, bearer, err := s.app.Register(req.Email, req.Password, req.FullName, domain.UserRole(strings.ToLower(strings.TrimSpace(req.Role))))
	if err != nil {
		s.audit(r, "auth.register", "fail", "email", app.NormalizeEmail(req.Email))
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success",
		"token":  bearer,
		"user":   user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts, try again later") {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, bearer, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "email", app.NormalizeEmail(req.Email))
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"token":  bearer,
		"user":   user,
	})
}

// prediction and chat handlers

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req app.PredictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.app.Predict(r.Context(), user, req)
	if err != nil {
		if app.KindOf(err) == app.KindAuthorization {
			s.audit(r, "predict.mother_data", "fail", "user_id", user.ID, "mother_id", req.MotherID)
		}
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.app.Chat(r.Context(), s.optionalUser(r), req.Query)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// mother self-service handlers

func (s *Server) handleUpdateHealthLog(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Data map[string]float64 `json:"data"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	log, err := s.app.AppendHealthLog(user, req.Data)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "log": log})
}

func (s *Server) handleGetHealthLogs(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	logs, err := s.app.GetHealthLogs(user, 0)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleGetMotherProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	profile, err := s.app.GetMotherProfile(user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	timeline, err := s.app.GetTimeline(user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) handleUpdateDueDate(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		DueDate string `json:"due_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	parsed, err := s.app.UpdateDueDate(user, req.DueDate)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"due_date": parsed.Format("2006-01-02"),
	})
}

func (s *Server) handleUpdateConsent(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		ShareConsent bool `json:"share_consent"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.app.UpdateConsent(user, req.ShareConsent); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "consent.update", "success", "user_id", user.ID, "share_consent", req.ShareConsent)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"share_consent": req.ShareConsent,
	})
}

func (s *Server) handleUpdateGamification(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.app.AcknowledgeGamification(user); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// quiz score and risk history handlers

func (s *Server) handleTestScores(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		scores, err := s.app.ListTestScores(user)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
	case http.MethodPost:
		var req struct {
			Score    int                `json:"score"`
			MaxScore int                `json:"max_score"`
			Topics   map[string]float64 `json:"topics"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		score, err := s.app.SaveTestScore(user, req.Score, req.MaxScore, req.Topics)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "score": score})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTestResults(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		results, err := s.app.ListTestResults(user)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	case http.MethodPost:
		var req struct {
			Score     float64            `json:"score"`
			RiskLevel string             `json:"risk_level"`
			Details   map[string]float64 `json:"details"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		result, err := s.app.SaveTestResult(user, req.Score, req.RiskLevel, req.Details)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "result": result})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// nurse handlers

func (s *Server) handleAssignedMothers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	mothers, err := s.app.AssignedMothers(user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mothers": mothers})
}

// appointment handlers

func (s *Server) handleScheduleAppointment(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		MotherID string `json:"mother_id"`
		NurseID  string `json:"nurse_id"`
		DateTime string `json:"date_time"`
		Notes    string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	when, err := parseDateTime(req.DateTime)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	appointment, err := s.app.ScheduleAppointment(user, req.MotherID, req.NurseID, when, req.Notes)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "appointment": appointment})
}

func (s *Server) handleGetAppointments(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	appointments, err := s.app.GetAppointments(user, q.Get("mother_id"), q.Get("nurse_id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appointments})
}

func (s *Server) handleUpdateAppointment(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		AppointmentID string  `json:"appointment_id"`
		Status        string  `json:"status"`
		Notes         *string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	appointment, err := s.app.UpdateAppointment(user, req.AppointmentID, domain.AppointmentStatus(strings.ToLower(strings.TrimSpace(req.Status))), req.Notes)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "appointment": appointment})
}

// admin handlers

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := s.app.AdminStats(r.Context(), user, r.URL.Query().Get("period"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	users, err := s.app.ListAllUsers(user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleAdminMothers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	mothers, err := s.app.ListMothers(user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mothers": mothers})
}

func (s *Server) handleAdminNurses(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	nurses, err := s.app.ListNurses(user)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nurses": nurses})
}

func (s *Server) handleAssignMother(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		NurseID  string `json:"nurse_id"`
		MotherID string `json:"mother_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	assignment, err := s.app.AssignMother(user, req.NurseID, req.MotherID)
	if err != nil {
		s.audit(r, "assignment.create", "fail", "user_id", user.ID, "nurse_id", req.NurseID, "mother_id", req.MotherID)
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "assignment.create", "success", "user_id", user.ID, "nurse_id", req.NurseID, "mother_id", req.MotherID)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "assignment": assignment})
}

func (s *Server) handleRemoveAssignment(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		NurseID  string `json:"nurse_id"`
		MotherID string `json:"mother_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.app.RemoveAssignment(user, req.NurseID, req.MotherID); err != nil {
		s.audit(r, "assignment.remove", "fail", "user_id", user.ID, "nurse_id", req.NurseID, "mother_id", req.MotherID)
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "assignment.remove", "success", "user_id", user.ID, "nurse_id", req.NurseID, "mother_id", req.MotherID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// helpers

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if bearer == "" {
		return "", false
	}
	return bearer, true
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseDateTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, app.ValidationError("date_time is required")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, app.ValidationError("date_time must be an RFC 3339 timestamp")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the uniform error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// writeAppError maps tagged business errors to HTTP statuses. Untagged
// errors become a generic 500; the cause is logged, never sent to the client.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *app.Error
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Kind {
		case app.KindValidation:
			status = http.StatusBadRequest
		case app.KindAuthentication:
			status = http.StatusUnauthorized
		case app.KindAuthorization:
			status = http.StatusForbidden
		case app.KindNotFound:
			status = http.StatusNotFound
		case app.KindConflict:
			status = http.StatusConflict
		case app.KindDependency:
			status = http.StatusServiceUnavailable
			util.LoggerFromContext(r.Context()).Error("dependency failure", "path", r.URL.Path, "err", appErr.Err)
		}
		writeError(w, status, appErr.Message)
		return
	}
	util.LoggerFromContext(r.Context()).Error("internal error", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.proxyTrust),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.proxyTrust)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
