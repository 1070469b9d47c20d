package devauth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
)

const (
	DefaultTokenTTL = 30 * time.Minute

	detailBadCredentials = "Incorrect username or password"
	detailUnauthorized   = "Could not validate credentials"
	detailThrottled      = "Too many failed login attempts"
)

// Server answers the credential exchange the session client performs.
type Server struct {
	users   *Directory
	tokens  *jwt.Manager
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

// Option customizes a Server.
type Option func(*Server)

// WithLimiter throttles failed logins per username and client address.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer requires a manager that can sign; a decode-only manager is rejected.
func NewServer(users *Directory, tokens *jwt.Manager, opts ...Option) (*Server, error) {
	if users == nil {
		return nil, errors.New("devauth: user directory is nil")
	}
	if tokens == nil || !tokens.Verifies() {
		return nil, errors.New("devauth: token manager must sign tokens")
	}

	s := &Server{users: users, tokens: tokens}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s, nil
}

// Routes mounts the endpoints on a new router.
//
//	POST /auth/token  form username, password
//	GET  /users/me    Authorization: Bearer <token>
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/auth/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/users/me", s.handleMe).Methods(http.MethodGet)
	return r
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid form body"})
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "username and password are required"})
		return
	}

	ctx := r.Context()
	ip := clientIP(r)
	log := s.logger.WithFields(logrus.Fields{"username": username, "remote": ip})

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, username, ip); err != nil {
			s.rejectLimited(w, log, err)
			return
		}
	}

	user, err := s.users.Authenticate(username, password)
	if err != nil {
		if !errors.Is(err, ErrBadCredentials) {
			log.WithError(err).Error("verify password")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
			return
		}
		if s.limiter != nil {
			if lerr := s.limiter.RecordFailure(ctx, username, ip); lerr != nil && !errors.Is(lerr, rate.ErrRateLimited) {
				log.WithError(lerr).Warn("record failed login")
			}
		}
		log.Info("login rejected")
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: detailBadCredentials})
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		log.WithError(err).Error("issue token")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
		return
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			log.WithError(err).Warn("reset login attempts")
		}
	}

	log.WithField("role", user.Role).Info("token issued")
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		s.unauthorized(w)
		return
	}
	claims, err := s.tokens.Decode(strings.TrimSpace(raw))
	if err != nil {
		s.logger.WithError(err).Debug("bearer token rejected")
		s.unauthorized(w)
		return
	}
	// the account may have been removed since the token was issued
	user, ok := s.users.byName[claims.Subject]
	if !ok {
		s.unauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username, Role: user.Role})
}

func (s *Server) rejectLimited(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		log.Warn("login throttled")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: detailThrottled})
		return
	}
	log.WithError(err).Error("login limiter unavailable")
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "login temporarily unavailable"})
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, errorResponse{Detail: detailUnauthorized})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
