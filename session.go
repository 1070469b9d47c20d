package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/tokenstore"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// TokenDecoder turns a raw token into validated claims. *jwt.Manager
// implements it.
type TokenDecoder interface {
	Decode(token string) (*jwt.Claims, error)
}

// CredentialExchanger trades a username and password for a raw token.
// *authclient.Client implements it.
type CredentialExchanger interface {
	Exchange(ctx context.Context, username, password string) (string, error)
}

// Session is the single source of authentication state. Reads never block on
// I/O; mutations are serialized so the persisted token always matches the one
// held in memory once an operation returns.
type Session struct {
	cfg Config

	exchanger CredentialExchanger
	decoder   TokenDecoder
	store     tokenstore.Store
	logger    logrus.FieldLogger
	metrics   *Metrics
	audit     *auditDispatcher
	now       func() time.Time
	closers   []func() error

	// writeMu serializes state transitions together with their store I/O.
	writeMu  sync.Mutex
	hydrated bool

	mu       sync.RWMutex
	token    string
	identity *Identity
}

// Login exchanges credentials for a token, decodes it and persists it. The
// session is left untouched while the endpoint is being contacted.
//
// Errors: ErrInvalidCredentials, ErrAuthUnavailable, ErrMalformedResponse from
// the exchange, or ErrTokenInvalid when the issued token does not decode, in
// which case the session ends logged out.
func (s *Session) Login(ctx context.Context, username, password string) error {
	ctx = ensureCorrelationID(ctx)
	log := s.log(ctx).WithField("username", username)

	start := s.now()
	token, err := s.exchanger.Exchange(ctx, username, password)
	s.metrics.Observe(MetricLoginLatency, s.now().Sub(start))
	if err != nil {
		s.metrics.Inc(MetricLoginFailure)
		s.emit(ctx, AuditEvent{EventType: AuditLoginFailure, Username: username, Error: err.Error()})
		log.WithError(err).Warn("login failed")
		return err
	}

	claims, decodeErr := s.decoder.Decode(token)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// the store now reflects this login, whatever it held before
	s.hydrated = true

	if decodeErr != nil {
		s.reject(ctx, decodeErr)
		s.metrics.Inc(MetricLoginFailure)
		s.emit(ctx, AuditEvent{EventType: AuditLoginFailure, Username: username, Error: ErrTokenInvalid.Error()})
		return ErrTokenInvalid
	}
	identity := s.install(token, claims)

	if err := s.store.Save(context.WithoutCancel(ctx), token); err != nil {
		log.WithError(err).Error("persist token")
	}

	s.metrics.Inc(MetricLoginSuccess)
	s.emit(ctx, AuditEvent{
		EventType: AuditLoginSuccess,
		Username:  identity.Username,
		UserID:    identity.ID,
		Success:   true,
		Metadata:  map[string]string{"role": string(identity.Role)},
	})
	log.WithFields(logrus.Fields{
		"user_id": identity.ID,
		"role":    identity.Role,
	}).Info("logged in")

	return nil
}

// Logout drops the token and identity and removes the persisted token. It
// succeeds from any state; store failures are only logged.
func (s *Session) Logout(ctx context.Context) {
	ctx = ensureCorrelationID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.hydrated = true
	prev := s.clear(ctx)

	s.metrics.Inc(MetricLogout)
	event := AuditEvent{EventType: AuditLogout, Success: true}
	if prev != nil {
		event.Username = prev.Username
		event.UserID = prev.ID
	}
	s.emit(ctx, event)
	s.log(ctx).WithField("username", event.Username).Info("logged out")
}

// DecodeToken rebuilds the identity from the held token. Any decode failure
// logs the session out. With no token held it only clears the identity.
func (s *Session) DecodeToken(ctx context.Context) {
	ctx = ensureCorrelationID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.decodeHeld(ctx)
}

// Hydrate loads the persisted token once and decodes it. Later calls return
// nil without touching the store. A missing token leaves the session logged
// out; a store failure is returned and hydration may be retried.
func (s *Session) Hydrate(ctx context.Context) error {
	ctx = ensureCorrelationID(ctx)
	log := s.log(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.hydrated {
		return nil
	}

	token, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		token = ""
	case err != nil:
		s.emit(ctx, AuditEvent{EventType: AuditHydrate, Error: err.Error()})
		log.WithError(err).Error("load persisted token")
		return fmt.Errorf("hydrate session: %w", err)
	}
	s.hydrated = true

	restored := false
	event := AuditEvent{EventType: AuditHydrate, Success: true}
	if token != "" {
		claims, err := s.decoder.Decode(token)
		if err != nil {
			s.reject(ctx, err)
		} else {
			identity := s.install(token, claims)
			restored = true
			event.Username = identity.Username
			event.UserID = identity.ID
		}
	}
	event.Metadata = map[string]string{"restored": strconv.FormatBool(restored)}

	s.metrics.Inc(MetricHydrated)
	s.emit(ctx, event)
	log.WithField("restored", restored).Debug("session hydrated")
	return nil
}

// EnsureFresh is run before every navigation decision. It decodes a held token
// that has no identity yet and, when ExpireOnNavigate is set, re-decodes an
// identity whose exp has passed so the expiry takes effect.
func (s *Session) EnsureFresh(ctx context.Context) {
	if !s.needsDecode() {
		return
	}

	ctx = ensureCorrelationID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// another caller may have decoded meanwhile
	if !s.needsDecode() {
		return
	}
	s.decodeHeld(ctx)
}

func (s *Session) needsDecode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return false
	}
	if s.identity == nil {
		return true
	}
	return s.cfg.Session.ExpireOnNavigate && s.identity.Expired(s.now())
}

// AuthState is a consistent view of the session at one instant.
type AuthState struct {
	Authenticated bool
	Identity      Identity
	HasIdentity   bool
}

// State returns the token presence and identity read under one lock.
func (s *Session) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := AuthState{Authenticated: s.token != ""}
	if s.identity != nil {
		st.Identity = *s.identity
		st.HasIdentity = true
	}
	return st
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Session) IsAdmin() bool {
	return s.HasRole(RoleAdmin)
}

func (s *Session) IsTeamLeader() bool {
	return s.HasRole(RoleTeamLeader)
}

// HasRole reports whether an identity is loaded and its role is exactly r.
func (s *Session) HasRole(r Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Role == r
}

func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// RecordNavigation counts a guard decision.
func (s *Session) RecordNavigation(allowed bool) {
	if allowed {
		s.metrics.Inc(MetricNavigationAllowed)
		return
	}
	s.metrics.Inc(MetricNavigationRedirected)
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) Metrics() *Metrics {
	return s.metrics
}

func (s *Session) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped returns how many audit events were discarded on a full buffer.
func (s *Session) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// Close flushes pending audit events, waiting at most audit.flush_timeout,
// and releases clients created by Build.
func (s *Session) Close() error {
	ctx := context.Background()
	if t := s.cfg.Audit.FlushTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	var err error
	if flushErr := s.audit.Close(ctx); flushErr != nil {
		s.logger.WithField("dropped", s.audit.Dropped()).Warn("audit flush cut short")
		err = multierr.Append(err, fmt.Errorf("flush audit events: %w", flushErr))
	}
	for _, c := range s.closers {
		err = multierr.Append(err, c())
	}
	return err
}

// decodeHeld decodes the held token and installs the identity, or logs the
// session out. Caller holds writeMu.
func (s *Session) decodeHeld(ctx context.Context) (Identity, bool) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		s.mu.Lock()
		s.identity = nil
		s.mu.Unlock()
		return Identity{}, false
	}

	claims, err := s.decoder.Decode(token)
	if err != nil {
		s.reject(ctx, err)
		return Identity{}, false
	}
	return s.install(token, claims), true
}

// install makes token and its identity visible together. Caller holds writeMu.
func (s *Session) install(token string, claims *jwt.Claims) Identity {
	identity := identityFromClaims(claims)
	s.mu.Lock()
	s.token = token
	s.identity = &identity
	s.mu.Unlock()
	return identity
}

// reject logs the session out after its token failed to decode. Caller holds
// writeMu.
func (s *Session) reject(ctx context.Context, err error) {
	s.metrics.Inc(MetricTokenRejected)
	s.emit(ctx, AuditEvent{EventType: AuditTokenRejected, Error: err.Error()})
	s.log(ctx).WithError(err).Warn("token rejected, logging out")
	s.clear(ctx)
}

// clear empties the session and its store. Caller holds writeMu.
func (s *Session) clear(ctx context.Context) *Identity {
	s.mu.Lock()
	prev := s.identity
	s.token = ""
	s.identity = nil
	s.mu.Unlock()

	// a logout must reach the store even when the caller has given up
	if err := s.store.Delete(context.WithoutCancel(ctx)); err != nil {
		s.log(ctx).WithError(err).Error("remove persisted token")
	}
	return prev
}

func (s *Session) emit(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	event.Timestamp = s.now()
	if id, ok := CorrelationIDFromContext(ctx); ok {
		event.CorrelationID = id
	}
	s.audit.Emit(ctx, event)
}

func (s *Session) log(ctx context.Context) logrus.FieldLogger {
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return s.logger.WithField("correlation_id", id)
	}
	return s.logger
}
