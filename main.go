package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hookrelay/internal/account"
	"hookrelay/internal/api"
	"hookrelay/internal/dispatch"
	"hookrelay/internal/engine"
	"hookrelay/internal/events"
	"hookrelay/internal/keepalive"
	"hookrelay/internal/monitor"
	"hookrelay/pkg/config"
	"hookrelay/pkg/db"
	"hookrelay/pkg/exchange"
	"hookrelay/pkg/exchange/bitget"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(cfg)

	log.Info().Str("version", version).Msg("hookrelay starting")

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("journal database open failed")
	}
	defer database.Close()

	accountCfgs, err := config.LoadAccounts(cfg.AccountsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AccountsPath).Msg("accounts file load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accounts := buildAccounts(ctx, accountCfgs)
	registry := account.NewRegistry(accounts)

	bus := events.NewBus()
	metrics := monitor.New()
	eng := engine.New(cfg.SafetyMargin, bus)
	dispatcher := dispatch.New(registry, eng, bus, database, metrics)

	active := restoreActiveFlag(ctx, database, cfg.ExecutionEnabled)

	instanceID, err := machineid.ProtectedID("hookrelay")
	if err != nil {
		log.Warn().Err(err).Msg("machine id unavailable, using hostname")
		instanceID, _ = os.Hostname()
	}

	server := api.NewServer(registry, dispatcher, bus, database, metrics,
		api.SystemMeta{InstanceID: instanceID, Version: version}, cfg.JWTSecret, active)

	account.NewRefresher(registry, cfg.RefreshInterval, func(accountID string) {
		bus.Publish(events.EventPositionsRefresh, accountID)
	}).Start(ctx)

	keepalive.New(cfg.KeepAliveURL, cfg.KeepAliveInterval, instanceID).Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Bool("active", active).
			Int("accounts", len(accounts)).Msg("listening")
		errCh <- server.Run(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server stopped")
	}
}

// buildAccounts constructs a gateway and account per config entry and
// initializes each. A failed init leaves the account degraded but does
// not stop the process; the rest of the fleet keeps trading.
func buildAccounts(ctx context.Context, cfgs []config.AccountConfig) []*account.Account {
	accounts := make([]*account.Account, 0, len(cfgs))
	for _, ac := range cfgs {
		mode := exchange.MarginCrossed
		if ac.MarginMode == "isolated" {
			mode = exchange.MarginIsolated
		}
		gw := bitget.NewClient(bitget.Config{
			APIKey:     ac.APIKey,
			APISecret:  ac.APISecret,
			Passphrase: ac.Passphrase,
			MarginCoin: ac.Settle,
			MarginMode: mode,
		})
		acct := account.New(ac, gw)

		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_ = acct.Init(initCtx)
		cancel()

		accounts = append(accounts, acct)
	}
	return accounts
}

// restoreActiveFlag prefers the persisted toggle over the env default
// so a runtime pause survives restarts.
func restoreActiveFlag(ctx context.Context, database *db.Database, fallback bool) bool {
	value, err := database.GetSetting(ctx, "active")
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Warn().Err(err).Msg("active flag read failed, using env default")
		}
		return fallback
	}
	return value == "true"
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}
