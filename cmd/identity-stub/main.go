// identity-stub runs the fake identity API locally so the client can be
// exercised without the production backend. OTP codes are written to the
// log instead of being sent over SMS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/exonvc/invest/internal/config"
	"github.com/exonvc/invest/internal/identitystub"
	"github.com/exonvc/invest/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	srv := identitystub.New(identitystub.Config{
		TokenKey:     cfg.StubTokenKey,
		OTPTTL:       cfg.OTPTTL,
		OTPPerMinute: cfg.OTPPerMinute,
	}, identitystub.NewLoggerNotifier(logger), logger)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen(cfg.StubAddress())
	}()
	logger.Info("identity stub listening", "addr", cfg.StubAddress())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
