package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects how tokens are signed and verified.
type SigningMethod string

const (
	// MethodNone decodes tokens without verifying their signature, the same
	// trust level as a browser-side decoder. Such a manager cannot issue tokens.
	MethodNone SigningMethod = "none"
	// MethodHS256 signs and verifies with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with a private key and verifies with a public key.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrMalformed is returned for strings that are not a decodable JWT.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned for tokens whose exp is in the past.
	ErrExpired = errors.New("token expired")
	// ErrMissingClaim is returned when id, sub or role is absent.
	ErrMissingClaim = errors.New("token missing required claim")
	// ErrInvalid covers every other verification failure.
	ErrInvalid = errors.New("invalid token")
	// ErrSigningUnavailable is returned by Issue when no signing key is configured.
	ErrSigningUnavailable = errors.New("token signing unavailable")
)

// Config configures a Manager.
type Config struct {
	SigningMethod SigningMethod
	// Secret is the HS256 key.
	Secret []byte
	// PrivateKey is the Ed25519 signing key, raw or PEM. Only needed to Issue.
	PrivateKey []byte
	// PublicKey is the Ed25519 verification key, raw or PEM.
	PublicKey  []byte
	KeyID      string
	VerifyKeys map[string][]byte

	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireExpiry bool

	// TTL is the lifetime stamped on issued tokens. Zero issues tokens without exp.
	TTL time.Duration
}

// Claims is the claim set exchanged with the authentication endpoint.
// The username travels in the registered sub claim.
type Claims struct {
	UserID *int64 `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Validate enforces the id/sub/role contract. It runs as part of jwt
// validation after the registered time claims.
func (c Claims) Validate() error {
	switch {
	case c.UserID == nil:
		return fmt.Errorf("%w: id", ErrMissingClaim)
	case strings.TrimSpace(c.Subject) == "":
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	case strings.TrimSpace(c.Role) == "":
		return fmt.Errorf("%w: role", ErrMissingClaim)
	}
	return nil
}

// Manager decodes tokens and, when it holds a signing key, issues them.
// A Manager is immutable and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 5*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodNone
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodNone:
		if len(cfg.VerifyKeys) > 0 || cfg.KeyID != "" {
			return nil, errors.New("key ids require a verifying signing method")
		}
	case MethodHS256:
		if len(cfg.Secret) == 0 && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("hs256 requires a secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// Verifies reports whether Decode checks signatures.
func (j *Manager) Verifies() bool {
	return j.config.SigningMethod != MethodNone
}

// Issue signs a token carrying id, sub and role.
func (j *Manager) Issue(userID int64, subject, role string) (string, error) {
	if j.config.SigningMethod == MethodNone {
		return "", ErrSigningUnavailable
	}

	now := time.Now()
	claims := Claims{
		UserID: &userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   j.config.Issuer,
		},
	}
	if j.config.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.config.TTL))
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Decode parses tokenStr and validates time claims and the id/sub/role
// contract. Signatures are checked unless the method is MethodNone.
//
// Every failure wraps one of ErrMalformed, ErrExpired, ErrMissingClaim or ErrInvalid.
func (j *Manager) Decode(tokenStr string) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	options := j.parserOptions()
	claims := &Claims{}

	if j.config.SigningMethod == MethodNone {
		parser := jwt.NewParser(options...)
		if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
			return nil, classify(err)
		}
		if err := jwt.NewValidator(options...).Validate(claims); err != nil {
			return nil, classify(err)
		}
		return claims, nil
	}

	options = append(options, jwt.WithValidMethods([]string{j.getMethod().Alg()}))
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, j.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrInvalid
	}

	return claims, nil
}

func (j *Manager) parserOptions() []jwt.ParserOption {
	var options []jwt.ParserOption
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireExpiry {
		options = append(options, jwt.WithExpirationRequired())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}
	return options
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(j.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return j.getVerifyKey()
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrMissingClaim):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		if len(j.config.Secret) == 0 {
			return nil, ErrSigningUnavailable
		}
		return j.config.Secret, nil
	default:
		if len(j.config.PrivateKey) == 0 {
			return nil, ErrSigningUnavailable
		}
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.Secret, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
