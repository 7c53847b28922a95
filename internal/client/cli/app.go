package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apiclient "github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/client/auth"
	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/connectivity"
	"github.com/iudanet/offsync/internal/client/data"
	"github.com/iudanet/offsync/internal/client/queue"
	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	syncmgr "github.com/iudanet/offsync/internal/client/sync"
	"github.com/iudanet/offsync/internal/config"
)

// App is the engine wired for one process. Every component shares the
// same store handle and buses.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *boltdb.Storage
	api      *apiclient.Client
	queue    *queue.Service
	session  *auth.Service
	events   *bus.Bus[bus.Event]
	messages *bus.Bus[bus.Message]
	sync     *syncmgr.Manager
	coord    *connectivity.Coordinator
	data     *data.Service
}

// OpenApp opens the local store and builds the component graph
func OpenApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := boltdb.New(ctx, cfg.DBPath,
		boltdb.WithEntityTypes(cfg.AllEntityTypes()...),
		boltdb.WithLockTimeout(cfg.LockTimeout))
	if err != nil {
		if errors.Is(err, storage.ErrStoreLocked) {
			return nil, fmt.Errorf("%w (is 'offsync run' or 'offsync proxy' running?)", err)
		}
		return nil, err
	}

	sealer, err := auth.OpenSealer(ctx, store, cfg.Auth.Secret)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		api:      apiclient.NewClient(cfg.Server, apiclient.WithTimeout(cfg.Sync.RequestTimeout)),
		queue:    queue.New(store, logger),
		events:   bus.New[bus.Event](),
		messages: bus.New[bus.Message](),
	}
	a.session = auth.NewService(a.api, auth.NewCredentialStore(store, sealer), logger)
	a.sync = syncmgr.NewManager(a.queue, store, a.api, a.session, a.events, syncmgr.Config{
		Backoff: syncmgr.BackoffConfig{
			Base:          cfg.Sync.BackoffBase,
			Cap:           cfg.Sync.BackoffCap,
			JitterPercent: cfg.Sync.JitterPercent,
			MaxAttempts:   cfg.Sync.MaxAttempts,
		},
		RequestTimeout: cfg.Sync.RequestTimeout,
	}, logger)
	a.coord = connectivity.New(a.sync, a.api, a.session, a.queue, a.events, a.messages, connectivity.Config{
		PingInterval:         cfg.Connectivity.PingInterval,
		PingTimeout:          cfg.Connectivity.PingTimeout,
		RetryInterval:        cfg.Sync.RetryInterval,
		RefreshBefore:        cfg.Auth.RefreshBefore,
		RefreshCheckInterval: cfg.Connectivity.RefreshCheckInterval,
	}, logger)
	a.data = data.NewService(a.queue, store, a.api, a.session, a.coord, a.events, logger)

	return a, nil
}

// Close closes the buses and the store
func (a *App) Close() error {
	a.messages.Close()
	a.events.Close()
	return a.store.Close()
}

// PingOnline pings the server once and records the result
func (a *App) PingOnline(ctx context.Context) bool {
	timeout := a.cfg.Connectivity.PingTimeout
	if timeout <= 0 {
		timeout = connectivity.DefaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	online := a.api.Ping(ctx) == nil
	a.coord.SetOnline(online)
	return online
}

// lastSync returns the time of the last successful drain, zero if none
func (a *App) lastSync(ctx context.Context) (time.Time, error) {
	ts, err := a.store.GetLastSyncTimestamp(ctx)
	if err != nil || ts == 0 {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}
