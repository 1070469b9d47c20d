package sessionguard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/sessionguard/authclient"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles a Session. Collaborators that are not supplied are
// created from the configuration. A Builder can be used once.
type Builder struct {
	config Config

	store      tokenstore.Store
	redis      redis.UniversalClient
	exchanger  CredentialExchanger
	httpClient *http.Client
	decoder    TokenDecoder
	logger     logrus.FieldLogger
	auditSink  AuditSink
	clock      func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithTokenStore overrides Store.Backend.
func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the client for the redis backend. The caller keeps
// ownership; Session.Close does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithExchanger(ex CredentialExchanger) *Builder {
	b.exchanger = ex
	return b
}

// WithHTTPClient is used for the default exchanger. Ignored when WithExchanger is set.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithDecoder(d TokenDecoder) *Builder {
	b.decoder = d
	return b
}

func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and returns a logged-out, unhydrated
// Session. It performs no I/O.
func (b *Builder) Build() (*Session, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		exchanger: b.exchanger,
		decoder:   b.decoder,
		store:     b.store,
		logger:    b.logger,
		now:       b.clock,
	}

	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}

	if s.decoder == nil {
		m, err := jwt.NewManager(cfg.Token.JWT())
		if err != nil {
			return nil, fmt.Errorf("%w: token: %w", ErrInvalidConfig, err)
		}
		s.decoder = m
	}

	if s.exchanger == nil {
		c, err := authclient.New(cfg.Auth.Client(), b.httpClient)
		if err != nil {
			return nil, fmt.Errorf("%w: auth: %w", ErrInvalidConfig, err)
		}
		s.exchanger = c
	}

	if s.store == nil {
		store, closer, err := b.buildStore(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("%w: store: %w", ErrInvalidConfig, err)
		}
		s.store = store
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}

	s.metrics = NewMetrics(cfg.Metrics)
	s.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	b.built = true
	return s, nil
}

func (b *Builder) buildStore(cfg StoreConfig) (tokenstore.Store, func() error, error) {
	switch cfg.Backend {
	case StoreFile:
		store, err := tokenstore.NewFile(cfg.FilePath)
		return store, nil, err
	case StoreRedis:
		client := b.redis
		var closer func() error
		if client == nil {
			// go-redis dials lazily, so this does not touch the network.
			owned := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			client = owned
			closer = owned.Close
		}
		store, err := tokenstore.NewRedis(client, cfg.RedisPrefix, cfg.Key, cfg.RedisTTL)
		if err != nil {
			if closer != nil {
				_ = closer()
			}
			return nil, nil, err
		}
		return store, closer, nil
	default:
		return tokenstore.NewMemory(), nil, nil
	}
}
