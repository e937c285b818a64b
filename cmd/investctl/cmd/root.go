package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/exonvc/invest/internal/api"
	"github.com/exonvc/invest/internal/config"
	"github.com/exonvc/invest/internal/credstore"
	"github.com/exonvc/invest/internal/identity"
	"github.com/exonvc/invest/internal/invest"
	"github.com/exonvc/invest/internal/logging"
	"github.com/exonvc/invest/internal/session"
)

// app aggregates the wired client stack for command handlers.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    credstore.Store
	manager  *session.Manager
	invest   *invest.Client
	closeFns []func() error
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "investctl",
	Short: "investctl is the ExonVC invest platform client",
	Long: `Command-line client for the ExonVC investment platform.
Logs in with a one-time SMS code, keeps the session on disk and exposes
profile, project and investment operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		for _, closeFn := range current.closeFns {
			if err := closeFn(); err != nil {
				current.logger.Warn("close store", "error", err)
			}
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	var (
		store   credstore.Store
		closeFn func() error
	)
	if cfg.SessionRedisURL != "" {
		redisStore, err := credstore.OpenRedisStore(ctx, cfg.SessionRedisURL, cfg.SessionKey)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		store, closeFn = redisStore, redisStore.Close
	} else {
		var boltOpts []credstore.BoltOption
		if cfg.SessionKey != "" {
			boltOpts = append(boltOpts, credstore.WithPassphrase(cfg.SessionKey))
		}
		boltStore, err := credstore.OpenBoltStore(cfg.SessionFile, boltOpts...)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		store, closeFn = boltStore, boltStore.Close
	}

	deviceID, err := store.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}

	transport := api.New(cfg.APIBaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithDeviceID(deviceID),
		api.WithLogger(logger),
	)
	idClient := identity.NewClient(transport)
	manager := session.New(ctx, idClient, store, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		manager:  manager,
		invest:   invest.NewClient(transport, manager),
		closeFns: []func() error{closeFn},
	}, nil
}
