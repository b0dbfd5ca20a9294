package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/storage/bbolt/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/client"
	"github.com/spec-kit/grievance-portal/internal/clock"
	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/observability"
	"github.com/spec-kit/grievance-portal/internal/policy"
	apperrors "github.com/spec-kit/grievance-portal/pkg/util/errorutil"
)

// portal bundles the client side collaborators one invocation needs.
type portal struct {
	cfg       config.PortalConfig
	api       *client.API
	session   *client.SessionStore
	dashboard *client.Dashboard
	clk       clock.Clock
	out       io.Writer
	logger    *zap.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.LoadPortal()

	logger, err := observability.NewLogger(
		config.LoggerConfig{Level: cfg.LogLevel, Output: cfg.LogOutput},
		config.AppConfig{Name: "grievance-portal-cli", Version: cfg.Version, Env: "cli"},
	)
	if err != nil {
		fmt.Fprintf(stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	store := bbolt.New(bbolt.Config{
		Database: cfg.SessionPath,
		Bucket:   "portal",
	})
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close session store", zap.Error(err))
		}
	}()

	p := newPortal(cfg, store, stdout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.dispatch(ctx, args[0], args[1:]); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

func newPortal(cfg config.PortalConfig, kv client.KV, out io.Writer, logger *zap.Logger) *portal {
	api := client.NewAPI(cfg.BaseURL, cfg.HTTPTimeout, logger)
	session := client.NewSessionStore(kv, api)
	controller := client.NewController(api, session, policy.NewLifecycle(cfg.AllowReopen))
	return &portal{
		cfg:       cfg,
		api:       api,
		session:   session,
		dashboard: client.NewDashboard(api, session, controller, client.NewSubmitter(api, session)),
		clk:       clock.Real(),
		out:       out,
		logger:    logger,
	}
}

func reportError(w io.Writer, err error) {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		fmt.Fprintf(w, "error [%s]: %s\n", domainErr.Code, domainErr.Message)
		for field, reason := range domainErr.Details {
			fmt.Fprintf(w, "  %s: %v\n", field, reason)
		}
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
