package sessionguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/tokenstore"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("timesheet-test-secret-32-bytes!!")

type exchangerFunc func(ctx context.Context, username, password string) (string, error)

func (f exchangerFunc) Exchange(ctx context.Context, username, password string) (string, error) {
	return f(ctx, username, password)
}

func staticExchanger(token string, err error) exchangerFunc {
	return func(context.Context, string, string) (string, error) {
		return token, err
	}
}

// failingStore fails every call with ErrUnavailable until healed.
type failingStore struct {
	mu     sync.Mutex
	broken bool
	inner  *tokenstore.Memory
}

func newFailingStore() *failingStore {
	return &failingStore{broken: true, inner: tokenstore.NewMemory()}
}

func (f *failingStore) heal() {
	f.mu.Lock()
	f.broken = false
	f.mu.Unlock()
}

func (f *failingStore) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return errors.Join(tokenstore.ErrUnavailable, errors.New("connection refused"))
	}
	return nil
}

func (f *failingStore) Load(ctx context.Context) (string, error) {
	if err := f.err(); err != nil {
		return "", err
	}
	return f.inner.Load(ctx)
}

func (f *failingStore) Save(ctx context.Context, token string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.inner.Save(ctx, token)
}

func (f *failingStore) Delete(ctx context.Context) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.inner.Delete(ctx)
}

func issueToken(t *testing.T, id int64, sub, role string) string {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{SigningMethod: jwt.MethodHS256, Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)
	token, err := m.Issue(id, sub, role)
	require.NoError(t, err)
	return token
}

func expiredToken(t *testing.T, id int64, sub, role string) string {
	t.Helper()
	claims := jwt.Claims{
		UserID: &id,
		Role:   role,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	return signClaims(t, claims)
}

func signClaims(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

type testSession struct {
	*Session
	store *tokenstore.Memory
	hook  *logtest.Hook
}

func newTestSession(t *testing.T, ex CredentialExchanger, configure ...func(*Config)) *testSession {
	t.Helper()

	cfg := DefaultConfig()
	for _, fn := range configure {
		fn(&cfg)
	}

	logger, hook := newHookLogger()
	store := tokenstore.NewMemory()

	s, err := New().
		WithConfig(cfg).
		WithExchanger(ex).
		WithTokenStore(store).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return &testSession{Session: s, store: store, hook: hook}
}

func persisted(t *testing.T, store tokenstore.Store) (string, bool) {
	t.Helper()
	token, err := store.Load(context.Background())
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return token, true
}

func newHookLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}
