// Package main is the entry point for the hypersip Telegram bot.
//
// Startup sequence:
//  1. Load configuration from config.yaml and environment variables
//  2. Initialize logging
//  3. Open the SQLite database (ledger profile; real money flows through it)
//  4. Validate the configuration against the venue, gated by a config hash
//  5. Start the Telegram frontend and poll until interrupted
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/mymmrac/telego"

	"github.com/dcabot/hypersip/internal/clients/hyperliquid"
	"github.com/dcabot/hypersip/internal/config"
	"github.com/dcabot/hypersip/internal/database"
	"github.com/dcabot/hypersip/internal/modules/intake"
	"github.com/dcabot/hypersip/internal/modules/plan"
	"github.com/dcabot/hypersip/internal/modules/settings"
	"github.com/dcabot/hypersip/internal/transport/telegram"
	"github.com/dcabot/hypersip/internal/validation"
	"github.com/dcabot/hypersip/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Bool("mainnet", cfg.IsMainnet()).Msg("Starting hypersip")

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()
	log.Info().Str("path", db.Path()).Msg("Database ready")

	planRepo := plan.NewRepository(db.Conn(), log)
	settingsRepo := settings.NewRepository(db.Conn(), log)

	apiURL := hyperliquid.TestnetAPIURL
	if cfg.IsMainnet() {
		apiURL = hyperliquid.MainnetAPIURL
	}
	info := hyperliquid.NewClient(apiURL, cfg.Hyperliquid.WalletAddress, log)
	signer, err := hyperliquid.NewSigner(cfg.Hyperliquid.PrivateKey, cfg.IsMainnet())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize signer")
	}
	exchange := hyperliquid.NewExchange(info, signer, log)

	api, err := telego.NewBot(cfg.Telegram.BotToken, telego.WithDefaultLogger(false, true))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Re-run the full external validation whenever the config changed
	// since the last successful run. Refuse to start on any failure: a
	// config that cannot message the operator or place orders must not
	// accept new plans either.
	validator := validation.New(settingsRepo, telegram.NewVerifier(api), exchange, log)
	if err := validator.Validate(ctx, cfg); err != nil {
		var cfgErr *validation.ConfigError
		if errors.As(err, &cfgErr) {
			for _, cause := range cfgErr.Causes {
				log.Error().Str("cause", cause).Msg("Configuration check failed")
			}
		}
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	resolver := hyperliquid.NewResolver(info, cfg.IsMainnet())
	machine := intake.New(planRepo, resolver, log)

	bot := telegram.New(api, machine, cfg.Telegram.UserID, log)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Telegram bot stopped")
	}

	log.Info().Msg("Shutdown complete")
}
