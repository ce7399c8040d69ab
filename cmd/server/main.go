package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/customer-portal/internal/config"
	"github.com/iliyamo/customer-portal/internal/database"
	"github.com/iliyamo/customer-portal/internal/discord"
	"github.com/iliyamo/customer-portal/internal/handler"
	"github.com/iliyamo/customer-portal/internal/logger"
	"github.com/iliyamo/customer-portal/internal/middleware"
	"github.com/iliyamo/customer-portal/internal/queue"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/router"
	"github.com/iliyamo/customer-portal/internal/service"
	"github.com/iliyamo/customer-portal/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg, err := config.Load()
	if err != nil {
		logger.L.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("server")

	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	db, err := database.Open(dsn)
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.DBHost).Str("database", cfg.DBName).Msg("database unreachable")
	}
	if err := database.Migrate(logger.Component("migrate"), dsn); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient(config.LoadRedisConfig(), logger.Component("redis"))
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	events := queue.NewPublisher(cfg.AMQPURL, cfg.ActivityQueue, logger.Component("events"))
	if events.Enabled() {
		go queue.NewConsumer(cfg.AMQPURL, cfg.ActivityQueue, cfg.ActivityLogDir, logger.Component("activity")).Run(ctx)
	}

	// ---- Repositories ----
	identities := repository.NewIdentityRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	tickets := repository.NewTicketRepo(db)
	notifications := repository.NewNotificationRepo(db)

	// ---- Login flow ----
	provider := discord.New(discord.Config{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.DiscordRedirectURI,
		BotToken:     cfg.DiscordBotToken,
		GuildID:      cfg.DiscordGuildID,
	}, nil, logger.Component("discord"))
	resolver := service.NewIdentityResolver(
		service.NewSQLIdentityStore(db),
		utils.NewSessionSigner(cfg.JWTSecret, cfg.JWTTTL),
		service.Welcome{StoreName: cfg.StoreName, InviteURL: cfg.DiscordInviteURL},
		events,
		logger.Component("identity"),
	)
	flow := service.NewLoginFlow(provider, resolver, logger.Component("login"))
	if !provider.AutoJoinEnabled() {
		log.Warn().Msg("DISCORD_BOT_TOKEN or DISCORD_GUILD_ID not set, guild auto-join disabled")
	}

	// ---- HTTP ----
	hlog := logger.Component("http")
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.Configure(e, cfg.CORSOrigins, hlog)

	session := middleware.SessionAuth(cfg.JWTSecret, hlog)
	statsCache := middleware.NewResponseCache(cacheCfg, rdb, logger.Component("cache"))
	purchaseH := handler.NewPurchaseHandler(purchases, events, hlog)
	purchaseH.Cache = statsCache
	notificationH := handler.NewNotificationHandler(notifications, events, hlog)

	router.RegisterRoutes(e, handler.NewStatusHandler(db, handler.ServiceInfo{
		Name:                "customer-portal",
		Version:             cfg.Version,
		Env:                 cfg.Env,
		DiscordConfigured:   cfg.DiscordClientID != "" && cfg.DiscordRedirectURI != "",
		AutoJoinEnabled:     provider.AutoJoinEnabled(),
		APISecretConfigured: cfg.APISecret != "",
		EventsEnabled:       events.Enabled(),
		RateLimitEnabled:    rlCfg.Enabled && rdb != nil,
	}))
	router.RegisterAuth(e, handler.NewAuthHandler(provider, flow, identities, cfg.FrontendURL, cfg.Env == "production", hlog), session)

	api := e.Group("/api", middleware.NewTokenBucket(rlCfg, rdb, logger.Component("ratelimit")))
	router.RegisterCustomer(api, router.CustomerHandlers{
		Purchases:     purchaseH,
		Support:       handler.NewSupportHandler(tickets, events, hlog),
		Notifications: notificationH,
	}, session, statsCache.Middleware())
	router.RegisterIntegration(api, purchaseH, notificationH, handler.NewUserHandler(identities, hlog),
		middleware.APISecretAuth(cfg.APISecret, hlog))

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Bool("auto_join", provider.AutoJoinEnabled()).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("close database")
	}
	log.Info().Msg("stopped")
}
