package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Adhamjon1112/Kirim-Chiqim/internal/auth"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/forms"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/models"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// requestIDKey is the context key for the per-request ID.
	requestIDKey contextKey = "request_id"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// SessionDuration is how long sessions last (30 days).
	SessionDuration = 30 * 24 * time.Hour
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db           *storage.DB
	templateDir  string
	secureCookie bool
	log          *logrus.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, templateDir string, secureCookie bool, log *logrus.Logger) *Handlers {
	return &Handlers{db: db, templateDir: templateDir, secureCookie: secureCookie, log: log}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// RequestIDFromContext returns the request ID minted by RequestLogger,
// or the empty string outside a logged request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestLogger assigns every request an ID, carries it in the request
// context so handler logs correlate, and logs the response status and
// duration on completion.
func (h *Handlers) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		h.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      r.RemoteAddr,
		}).Info("request completed")
	})
}

// logger returns a log entry tagged with the request ID.
func (h *Handlers) logger(r *http.Request) *logrus.Entry {
	return h.log.WithField("request_id", RequestIDFromContext(r.Context()))
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		sessionInfo, err := h.db.ValidateSessionWithInfo(cookie.Value)
		if err != nil {
			// Invalid or expired session, clear the cookie
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		// Rolling session: renew if past halfway point
		// This keeps active users logged in while still expiring inactive sessions
		now := time.Now()
		timeUntilExpiry := sessionInfo.ExpiresAt.Sub(now)
		halfSessionDuration := SessionDuration / 2

		if timeUntilExpiry < halfSessionDuration {
			// Session is in the second half of its lifetime, renew it
			newExpiresAt := now.Add(SessionDuration)
			if err := h.db.RenewSession(cookie.Value, newExpiresAt); err == nil {
				h.setSessionCookie(w, cookie.Value)
			}
			// If renewal fails, just continue with the current session
		}

		// Add user to context
		ctx := context.WithValue(r.Context(), UserContextKey, sessionInfo.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error    string
	Username string
}

// RegisterViewModel holds data for the registration page.
type RegisterViewModel struct {
	Form *forms.RegistrationForm
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to home
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.db.ValidateSession(cookie.Value); err == nil {
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
	}
	h.render(w, r, "login.html", LoginViewModel{})
}

// Login handles the login form submission.
//
// A session is established for any existing username; no password is read
// or verified. This reproduces the behavior of the system this replaces
// and is flagged in DESIGN.md rather than silently corrected here.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "login.html", LoginViewModel{Error: "Invalid form submission"})
		return
	}

	f := forms.ParseLoginForm(r)
	if !f.Validate() {
		h.render(w, r, "login.html", LoginViewModel{Error: "Username is required"})
		return
	}

	user, err := h.db.GetUserByUsername(f.Username)
	if err != nil {
		h.render(w, r, "login.html", LoginViewModel{Error: "Unknown username", Username: f.Username})
		return
	}

	if err := h.startSession(w, user.ID); err != nil {
		h.logger(r).WithError(err).Error("failed to start session")
		h.render(w, r, "login.html", LoginViewModel{Error: "An error occurred. Please try again.", Username: f.Username})
		return
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

// RegisterForm renders the registration page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", RegisterViewModel{Form: forms.EmptyRegistrationForm()})
}

// Register handles the registration form submission. On success the new
// user is logged in and sent to the login page, which forwards
// authenticated visitors to /home.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	f := forms.ParseRegistrationForm(r)
	if !f.Validate() {
		h.render(w, r, "register.html", RegisterViewModel{Form: f})
		return
	}

	hash, err := auth.HashPassword(f.Password1)
	if err != nil {
		h.logger(r).WithError(err).Error("failed to hash password")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Username:     f.Username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := h.db.CreateUser(user); err != nil {
		// The unique index is the arbiter; a lookup beforehand would race
		// with concurrent registrations for the same name.
		if errors.Is(err, storage.ErrUsernameTaken) {
			f.Errors["username"] = "A user with that username already exists."
			h.render(w, r, "register.html", RegisterViewModel{Form: f})
			return
		}
		h.logger(r).WithError(err).Error("failed to create user")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger(r).WithField("username", user.Username).Info("user registered")

	if err := h.startSession(w, user.ID); err != nil {
		h.logger(r).WithError(err).Error("failed to start session")
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.db.DeleteSession(cookie.Value); err != nil {
			h.logger(r).WithError(err).Error("failed to delete session")
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) startSession(w http.ResponseWriter, userID int64) error {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return err
	}
	if err := h.db.CreateSession(token, userID, time.Now().Add(SessionDuration)); err != nil {
		return err
	}
	h.setSessionCookie(w, token)
	return nil
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, data any) {
	tmpl, err := template.ParseFiles(filepath.Join(h.templateDir, "base.html"), filepath.Join(h.templateDir, viewName))
	if err != nil {
		h.logger(r).WithError(err).WithField("template", viewName).Error("template parse failed")
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger(r).WithError(err).WithField("template", viewName).Error("template execution failed")
	}
}
