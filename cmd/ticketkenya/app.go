package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-redis/redis/v8"

	"ticketkenya/internal/api"
	"ticketkenya/internal/cache"
	"ticketkenya/internal/checkout"
	"ticketkenya/internal/config"
	"ticketkenya/internal/guard"
	"ticketkenya/internal/logger"
	"ticketkenya/internal/resources"
	"ticketkenya/internal/session"
	"ticketkenya/internal/store"
	"ticketkenya/internal/ticketqr"
	"ticketkenya/internal/upload"
	"ticketkenya/internal/views"
)

var errAdminOnly = errors.New("this page is for admins only")

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Store
	client  *api.Client
	session *session.Manager
	deps    views.Deps
	qr      *ticketqr.Generator

	redis *redis.Client
}

func newApp(ctx context.Context, cfg *config.Config, ui *terminal) (*app, error) {
	opts := logger.Options{Level: logger.ParseLevel(cfg.Log.Level), NoColor: ui.noColor}
	if cfg.Log.File {
		opts.Dir = filepath.Join(cfg.State.Dir, "logs")
	}
	log, err := logger.New(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	var persister store.Persister
	switch cfg.State.Backend {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		persister = store.NewRedisPersister(a.redis, "ticketkenya:")
	default:
		if err := os.MkdirAll(cfg.State.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		persister = store.NewFilePersister(cfg.State.Dir)
	}
	a.store = store.New(
		store.WithPersister(persister),
		store.WithPolicy(store.Policy(cfg.State.Policy)),
		store.WithLogger(log),
	)

	a.client = api.New(cfg.API.BaseURL(),
		api.WithTokenSource(a.store),
		api.WithLogger(log),
		api.WithTimeout(cfg.API.Timeout),
	)
	c := cache.New(cache.WithKeepUnusedFor(cfg.Cache.KeepUnusedFor), cache.WithLogger(log))
	res := resources.New(a.client, c, log)
	a.session = session.NewManager(a.client, a.store, session.WithCache(c), session.WithLogger(log))

	uploader, err := upload.New(a.client, cfg.Upload, log)
	if err != nil {
		return nil, err
	}
	a.qr = ticketqr.NewGenerator(cfg.Tickets.QRSecret)
	a.deps = views.Deps{
		Resources: res,
		Store:     a.store,
		Session:   a.session,
		Booker:    checkout.NewBooker(res.Bookings, a.store, log),
		Uploader:  uploader,
		Notifier:  ui,
		Confirmer: ui,
		Logger:    log,
		Poll: views.PollSettings{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
			Timeout:     cfg.Poll.Timeout,
		},
	}

	switch _, err := a.session.Restore(ctx); {
	case errors.Is(err, session.ErrSessionExpired):
		ui.Info("Signed out", err.Error())
	case err != nil:
		log.Warn("SESSION", fmt.Sprintf("Could not verify session: %v", err))
	}
	return a, nil
}

// enter runs the route guard for path and turns a redirect into an error
// telling the user what to do.
func (a *app) enter(path string) error {
	d := guard.Check(path, a.store.Auth())
	if d.Allow {
		return nil
	}
	a.log.Debug("GUARD", fmt.Sprintf("%s redirected to %s", path, d.Redirect))
	if d.Redirect == guard.LoginPath {
		return fmt.Errorf("%s needs you to be logged in: run `ticketkenya login` first", d.From)
	}
	return errAdminOnly
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.log.Close()
}
