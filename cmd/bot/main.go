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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Armin-kho/gheymat-bot/internal/bot"
	"github.com/Armin-kho/gheymat-bot/internal/config"
	"github.com/Armin-kho/gheymat-bot/internal/db"
	"github.com/Armin-kho/gheymat-bot/internal/httpapi"
	"github.com/Armin-kho/gheymat-bot/internal/logger"
	"github.com/Armin-kho/gheymat-bot/internal/prefs"
	"github.com/Armin-kho/gheymat-bot/internal/quota"
	"github.com/Armin-kho/gheymat-bot/internal/report"
	"github.com/Armin-kho/gheymat-bot/internal/scheduler"
	"github.com/Armin-kho/gheymat-bot/internal/sources"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.json or config.yaml")
	backup := flag.String("backup", "", "write a SQLite snapshot to this path and exit (sqlite storage only)")
	export := flag.String("export", "", "write every stored document as JSON into this directory and exit (sqlite storage only)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, Colored: !cfg.LogJSON})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	store, err := db.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("storage", cfg.Storage).Str("data_dir", cfg.DataDir).Msg("open storage")
	}
	defer store.Close()

	if *backup != "" || *export != "" {
		if err := maintenance(store, *backup, *export); err != nil {
			log.Fatal().Err(err).Msg("maintenance")
		}
		return
	}

	if err := run(cfg, store, log); err != nil {
		log.Fatal().Err(err).Msg("run")
	}
}

func maintenance(store db.Store, backupPath, exportDir string) error {
	sq, ok := store.(*db.DB)
	if !ok {
		return errors.New("backup and export need storage \"sqlite\"")
	}
	ctx := context.Background()
	if backupPath != "" {
		if err := sq.BackupTo(ctx, backupPath); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	if exportDir != "" {
		if err := sq.ExportTo(ctx, exportDir); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	return nil
}

func run(cfg config.Config, store db.Store, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger := quota.New(store, quota.Options{
		Limit:         cfg.DailyLimit,
		RetentionDays: cfg.QuotaRetentionDays,
		Logger:        log.With().Str("component", "quota").Logger(),
	})
	preferences := prefs.NewStore(store, log.With().Str("component", "prefs").Logger())
	feeds := sources.NewManager(ledger, sources.Options{
		BitpinURL:     cfg.BitpinURL,
		BitpinTTL:     cfg.BitpinTTL(),
		BitpinTimeout: cfg.BitpinTimeout(),
		BRSURL:        cfg.BRSURL,
		BRSKey:        cfg.BRSAPIKey,
		BRSTTL:        cfg.BRSTTL(),
		BRSTimeout:    cfg.BRSTimeout(),
		Logger:        log,
	})
	if !feeds.BRSEnabled() {
		log.Info().Msg("BRS_API_KEY not set, gold and currency sections are disabled")
	}
	reports := report.NewService(feeds, preferences, report.Composer{AllowPairs: cfg.AllowPairs},
		log.With().Str("component", "report").Logger())

	providers := []sources.Provider{sources.ProviderBitpin}
	if cfg.WarmBRS {
		providers = append(providers, sources.ProviderBRS)
	}
	sched, err := scheduler.New(feeds, scheduler.Options{Schedule: cfg.WarmSchedule, Providers: providers, Logger: log})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	go func() {
		if err := sched.RunNow(ctx); err != nil {
			log.Warn().Err(err).Msg("initial warm")
		}
	}()

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		srv = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewHandler(ledger, preferences, reports, feeds),
			log.With().Str("component", "http").Logger())
		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("status api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status api")
			}
		}()
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info().Str("username", api.Self.UserName).Msg("bot authorized")

	app := bot.New(api, preferences, reports, bot.Options{
		Labels:        cfg.Labels,
		MaxConcurrent: cfg.MaxConcurrentUpdates,
		Logger:        log,
	})
	if err := app.RegisterCommands(); err != nil {
		log.Warn().Err(err).Msg("set bot commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := api.GetUpdatesChan(u)

	err = app.Run(ctx, updates)
	api.StopReceivingUpdates()
	log.Info().Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("status api shutdown")
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
