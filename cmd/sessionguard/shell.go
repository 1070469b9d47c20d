package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/guard"
	"github.com/MrEthical07/sessionguard/internal/logging"
	"github.com/MrEthical07/sessionguard/route"
	"github.com/MrEthical07/sessionguard/router"
)

// EnvPassword supplies the login password without a prompt.
const EnvPassword = "SESSIONGUARD_PASSWORD"

type shell struct {
	session *sessionguard.Session
	table   *route.Table
	router  *router.Router
	out     io.Writer
	in      io.Reader
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) (err error) {
	fs := flag.NewFlagSet("sessionguard", flag.ContinueOnError)
	fs.SetOutput(out)
	env := fs.String("env", "development", "environment [dev | development | prod | production]")
	configPath := fs.String("config", "", "path for the TOML config file; defaults apply when empty")
	tokenPath := fs.String("token-file", "", "token file; overrides store settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing command: login, logout, whoami, navigate, routes")
	}

	cfg, err := loadConfig(*env, *configPath, *tokenPath)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logCloser := logging.Setup(logger, logging.SetupParams{
		LogFileName:   cfg.Logging.File,
		LogToStdout:   cfg.Logging.ToStdout,
		LogLevel:      cfg.Logging.Level,
		LogFormatJSON: cfg.Logging.JSON,
	})
	if cfg.Logging.File == "" {
		// keep command output clean
		logger.SetOutput(os.Stderr)
	}
	defer func() { err = multierr.Append(err, logCloser.Close()) }()

	sh, err := newShell(cfg, logger, in, out)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sh.session.Close()) }()

	if err := sh.session.Hydrate(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return sh.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}

func loadConfig(env, path, tokenPath string) (*sessionguard.Config, error) {
	var cfg *sessionguard.Config
	if path != "" {
		loaded, err := sessionguard.LoadConfig(env, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := sessionguard.DefaultConfig()
		if base := os.Getenv(sessionguard.EnvAuthBaseURL); base != "" {
			def.Auth.BaseURL = base
		}
		cfg = &def
	}

	switch {
	case tokenPath != "":
		cfg.Store.Backend = sessionguard.StoreFile
		cfg.Store.FilePath = tokenPath
	case cfg.Store.Backend == sessionguard.StoreMemory:
		// a memory store would forget the login as soon as the command exits
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.Store.Backend = sessionguard.StoreFile
		cfg.Store.FilePath = filepath.Join(dir, "sessionguard", cfg.Store.Key)
	}
	return cfg, cfg.Validate()
}

func newShell(cfg *sessionguard.Config, logger *logrus.Logger, in io.Reader, out io.Writer) (*shell, error) {
	session, err := sessionguard.New().
		WithConfig(*cfg).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, err
	}

	table, err := route.TimesheetTable()
	if err != nil {
		return nil, err
	}
	g, err := guard.New(session, cfg.Guard, logger)
	if err != nil {
		return nil, err
	}

	sh := &shell{session: session, table: table, out: out, in: in}
	sh.router, err = router.New(table, g, router.RendererFunc(sh.render), router.Options{
		MaxRedirects: cfg.Guard.MaxRedirects,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

func (sh *shell) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return sh.login(ctx, args)
	case "logout":
		sh.session.Logout(ctx)
		fmt.Fprintln(sh.out, "logged out")
		return nil
	case "whoami":
		return sh.whoami(ctx)
	case "navigate", "nav":
		if len(args) != 1 {
			return errors.New("usage: navigate <path>")
		}
		_, err := sh.router.Push(ctx, args[0])
		return err
	case "routes":
		return sh.routes()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (sh *shell) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: login <username>")
	}

	password := os.Getenv(EnvPassword)
	if password == "" {
		fmt.Fprint(sh.out, "password: ")
		line, err := bufio.NewReader(sh.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if err := sh.session.Login(ctx, args[0], password); err != nil {
		return err
	}
	_, err := sh.router.Push(ctx, "/")
	return err
}

func (sh *shell) whoami(ctx context.Context) error {
	sh.session.EnsureFresh(ctx)
	id, ok := sh.session.Identity()
	if !ok {
		fmt.Fprintln(sh.out, "not logged in")
		return nil
	}
	expires := "never"
	if !id.ExpiresAt.IsZero() {
		expires = id.ExpiresAt.Local().Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(sh.out, "%s (id %d, role %s, expires %s)\n", id.Username, id.ID, id.Role, expires)
	return nil
}

func (sh *shell) routes() error {
	routes := sh.table.Routes()
	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	for _, r := range routes {
		fmt.Fprintf(sh.out, "%-18s %-16s %s\n", r.Path, r.View, r.Requires)
	}
	return nil
}

func (sh *shell) render(_ context.Context, view router.View) error {
	fmt.Fprintf(sh.out, "-> %s (%s)\n", view.Name, view.Path)
	return nil
}
