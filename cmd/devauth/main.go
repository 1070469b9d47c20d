// Command devauth runs a local credential endpoint for development and
// prints password hashes for its user file.
//
//	devauth serve -users users.toml [-config config.toml -env dev] [-addr :8003] [-redis host:port]
//	devauth hash <password>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/internal/devauth"
	"github.com/MrEthical07/sessionguard/internal/logging"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(os.Args[2:])
	case "hash":
		err = hash(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "devauth:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: devauth serve [flags] | devauth hash <password>")
}

func hash(args []string) error {
	if len(args) != 1 {
		return errors.New("hash takes exactly one password argument")
	}
	hasher, err := devauth.NewHasher(devauth.DefaultHashConfig())
	if err != nil {
		return err
	}
	encoded, err := hasher.Hash(args[0])
	if err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	env := fs.String("env", "development", "environment [dev | development | prod | production]")
	configPath := fs.String("config", "", "path for the TOML config file; defaults apply when empty")
	usersPath := fs.String("users", "./users.toml", "path for the TOML user list")
	addr := fs.String("addr", "127.0.0.1:8003", "listen address")
	ttl := fs.Duration("ttl", devauth.DefaultTokenTTL, "access token lifetime")
	redisAddr := fs.String("redis", "", "redis address for failed-login throttling; disabled when empty")
	maxAttempts := fs.Int("max-attempts", 5, "failed logins allowed per window")
	window := fs.Duration("window", 15*time.Minute, "failed login window")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*env, *configPath)
	if err != nil {
		return err
	}

	logCloser := logging.Setup(nil, logging.SetupParams{
		LogFileName:   cfg.Logging.File,
		LogToStdout:   cfg.Logging.ToStdout,
		LogLevel:      cfg.Logging.Level,
		LogFormatJSON: cfg.Logging.JSON,
	})
	defer logCloser.Close()

	if cfg.Token.Secret == "" {
		return fmt.Errorf("a signing secret is required: set token.secret or %s", sessionguard.EnvTokenSecret)
	}
	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		Secret:        []byte(cfg.Token.Secret),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		TTL:           *ttl,
	})
	if err != nil {
		return err
	}

	users, err := devauth.LoadUsers(*usersPath)
	if err != nil {
		return err
	}
	log.Infof("loaded %d users from %s", users.Len(), *usersPath)

	opts := []devauth.Option{devauth.WithLogger(log.StandardLogger())}
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		limiter, err := rate.New(rdb, rate.Config{MaxAttempts: *maxAttempts, Window: *window, ThrottleIP: true})
		if err != nil {
			return err
		}
		opts = append(opts, devauth.WithLimiter(limiter))
		log.Infof("throttling failed logins via redis at %s", *redisAddr)
	}

	srv, err := devauth.NewServer(users, tokens, opts...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           otelhttp.NewHandler(srv.Routes(), "devauth"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", *addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadConfig(env, path string) (*sessionguard.Config, error) {
	if path != "" {
		return sessionguard.LoadConfig(env, path)
	}
	cfg := sessionguard.DefaultConfig()
	cfg.Token.Secret = os.Getenv(sessionguard.EnvTokenSecret)
	return &cfg, nil
}
