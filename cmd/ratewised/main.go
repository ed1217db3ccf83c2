package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/charadev96/ratewise/internal/cache"
	"github.com/charadev96/ratewise/internal/config"
	"github.com/charadev96/ratewise/internal/kv"
	"github.com/charadev96/ratewise/internal/server"
	"github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/server/handler/web"
	"github.com/charadev96/ratewise/internal/server/repository"
	"github.com/charadev96/ratewise/internal/server/service"
	"github.com/charadev96/ratewise/internal/session"
	"github.com/charadev96/ratewise/internal/shared/infra"
	"github.com/charadev96/ratewise/internal/shared/log"
)

func main() {
	configPath := flag.String("config", "ratewise.toml", "path to the config file")
	plain := flag.Bool("plain-log", false, "disable colored log output")
	flag.Parse()

	if err := run(*configPath, *plain); err != nil {
		logger := log.New("main")
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(configPath string, plain bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := log.Configure(log.Options{Level: cfg.LogLevel, Plain: plain}); err != nil {
		return err
	}

	var (
		mainLogger    = log.New("main")
		kvLogger      = log.New("kv")
		sessionLogger = log.New("session")
		cacheLogger   = log.New("cache")
		authLogger    = log.New("auth")
		itemLogger    = log.New("items")
		webLogger     = log.New("web")
		adminLogger   = log.New("admin")
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := infra.OpenSQLite(ctx, infra.DBOptions{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := kv.New(ctx, kv.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout.Duration,
		ReadTimeout:  cfg.Redis.ReadTimeout.Duration,
		WriteTimeout: cfg.Redis.WriteTimeout.Duration,
		PingInterval: cfg.Redis.PingInterval.Duration,
		BackoffCap:   cfg.Redis.BackoffCap.Duration,
	}, &kvLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := repository.NewBunUserRepository(ctx, db)
	if err != nil {
		return err
	}
	items, err := repository.NewBunItemRepository(ctx, db)
	if err != nil {
		return err
	}
	reviews, err := repository.NewBunReviewRepository(ctx, db)
	if err != nil {
		return err
	}

	populator := cache.NewPopulator(store, cfg.Cache.TTL.Duration, cfg.Cache.Workers, &cacheLogger)
	registry := session.NewRegistry(store, session.Options{
		TTL:             cfg.Session.TTL.Duration,
		MaxUserSessions: cfg.Session.MaxUserSessions,
	}, &sessionLogger)
	reconciler := session.NewReconciler(store, &sessionLogger)
	reconciler.ConfigureServer = cfg.Redis.KeyspaceNotes

	authSvc := &service.AuthService{
		Users:     users,
		UserCache: cache.NewLoader[domain.User](store, users, cache.Prefix("user"), func(u domain.User) uuid.UUID { return u.ID }, populator, &cacheLogger),
		Sessions:  registry,
		TXRunner:  infra.NewBunTransactionRunner(db, &sql.TxOptions{}),
		Logger:    &authLogger,
	}
	itemSvc := &service.ItemService{
		Items:    items,
		Cache:    cache.NewLoader[domain.Item](store, items, cache.Prefix("item"), func(it domain.Item) uuid.UUID { return it.ID }, populator, &cacheLogger),
		MaxLimit: cfg.Pagination.MaxLimit,
		Logger:   &itemLogger,
	}
	reviewSvc := &service.ReviewService{
		Reviews:  reviews,
		Items:    itemSvc,
		Cache:    cache.NewLoader[domain.Review](store, reviews, cache.Prefix("review"), func(r domain.Review) uuid.UUID { return r.ID }, populator, &cacheLogger),
		MaxLimit: cfg.Pagination.MaxLimit,
	}

	srv := &server.Server{
		Admin: server.AdminConfig{
			Addr:   cfg.Admin.Addr,
			Logger: &adminLogger,
		},
		Web: server.WebConfig{
			Addr:   cfg.HTTP.Addr,
			Logger: &webLogger,
		},
		AuthService: authSvc,
		WebHandler: &web.Handler{
			Auth:    authSvc,
			Items:   itemSvc,
			Reviews: reviewSvc,
			Cookie: session.CookieOptions{
				Name:     cfg.Session.CookieName,
				Domain:   cfg.Session.CookieDomain,
				Secure:   cfg.Session.CookieSecure,
				SameSite: session.ParseSameSite(cfg.Session.CookieSameSite),
				MaxAge:   cfg.Session.TTL.Duration,
			},
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RequestTimeout: cfg.HTTP.RequestTimeout.Duration,
			Logger:         &webLogger,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return store.Watch(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error { return srv.ServeWeb(gctx) })
	g.Go(func() error { return srv.ServeAdmin(gctx) })

	err = g.Wait()
	populator.Wait()
	if err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	mainLogger.Info().Msg("stopped")
	return nil
}
