package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheLoudSteve/epl-forecast/internal/config"
	"github.com/TheLoudSteve/epl-forecast/internal/delivery"
	"github.com/TheLoudSteve/epl-forecast/internal/fetcher"
	"github.com/TheLoudSteve/epl-forecast/internal/ratelimit"
	"github.com/TheLoudSteve/epl-forecast/internal/scheduler"
	"github.com/TheLoudSteve/epl-forecast/internal/service"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newFetcher() fetcher.StandingsFetcher {
	src := a.Config.Source
	client := fetcher.NewFootballData(fetcher.FootballDataOptions{
		BaseURL:           src.BaseURL,
		APIToken:          src.APIToken,
		Competition:       src.Competition,
		RequestsPerMinute: src.RequestsPerMinute,
		Timeout:           src.RequestTimeout,
		UserAgent:         src.UserAgent,
	}, a.Logger)

	return fetcher.WithRetry(client, fetcher.RetryPolicy{
		Attempts:  src.RetryAttempts,
		BaseDelay: src.RetryBaseDelay,
		MaxDelay:  src.RetryMaxDelay,
	})
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if !a.Config.Database.Configured() {
		return nil, nil, nil
	}

	dbCfg, err := storage.ResolveDSN(ctx, a.Config.Database, nil)
	if err != nil {
		return nil, nil, err
	}
	pool, err := storage.NewPool(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newPlatform picks the push platform: none when delivery is off, the
// dry-run platform when asked for or when a development environment has no
// platform application, SNS otherwise.
func (a *App) newPlatform(ctx context.Context) (delivery.Platform, error) {
	cfg := a.Config.Delivery
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.DryRun || (cfg.PlatformApplicationARN == "" && a.Config.App.IsDevelopment()) {
		a.Logger.Info().Msg("using dry-run push platform")
		return delivery.NewDryRunPlatform(a.Logger), nil
	}
	if cfg.PlatformApplicationARN == "" {
		a.Logger.Warn().Msg("delivery.platform_application_arn not configured; push delivery disabled")
		return nil, nil
	}
	return delivery.NewSNSPlatform(ctx, cfg.Region, cfg.PlatformApplicationARN, a.Logger)
}

// components are the wired collaborators shared by commands.
type components struct {
	store   *storage.Store
	limiter *ratelimit.Limiter
	gateway *delivery.Gateway
	service *service.Service
	close   func()
}

func (a *App) build(ctx context.Context) (*components, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if closeStore == nil {
		closeStore = func() {}
	}

	platform, err := a.newPlatform(ctx)
	if err != nil {
		closeStore()
		return nil, err
	}
	gateway := delivery.NewGateway(platform, delivery.Options{
		Sandbox: a.Config.Delivery.Sandbox,
		Timeout: a.Config.Delivery.Timeout,
	}, a.Logger)

	var (
		snapshots storage.SnapshotStore
		prefs     storage.PreferenceStore
		records   storage.NotificationRecordStore
	)
	if store != nil {
		snapshots, prefs, records = store, store, store
	} else {
		a.Logger.Warn().Msg("database not configured; persistence and notifications disabled")
	}

	limiter := ratelimit.New(records, ratelimit.LimitsFromConfig(a.Config.RateLimit), a.Logger)
	limiter.SetStoreTimeout(a.Config.Database.QueryTimeout)

	var sender service.Sender
	if gateway.Enabled() {
		sender = gateway
	}

	svc := service.New(a.Config, snapshots, prefs, limiter, sender, nil, a.Logger)
	return &components{
		store:   store,
		limiter: limiter,
		gateway: gateway,
		service: svc,
		close:   closeStore,
	}, nil
}

func (c *components) snapshots() storage.SnapshotStore {
	if c.store == nil {
		return nil
	}
	return c.store
}

// NewUpdater wires a refresh cycle without a scheduler, for externally
// triggered runs. The returned func releases the database pool.
func (a *App) NewUpdater(ctx context.Context) (*service.Updater, func(), error) {
	c, err := a.build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.NewUpdater(a.Config, nil, a.newFetcher(), c.snapshots(), c.service, a.Logger), c.close, nil
}

// Run executes the long-running refresh service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)

	updater := service.NewUpdater(a.Config, sched, a.newFetcher(), c.snapshots(), c.service, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting forecast service")
	err = updater.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("forecast service stopped")
	return nil
}

// Update runs one refresh cycle and prints its report.
func (a *App) Update(ctx context.Context, changeContext string) error {
	updater, closeAll, err := a.NewUpdater(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := updater.Update(ctx, changeContext)
	if err != nil {
		return err
	}
	return a.printJSON(report)
}

// ExportOptions hold parameters for exporting forecast history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	Teams     []string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Season string
}

// ReplayOptions configure the history replay.
type ReplayOptions struct {
	From time.Time
	To   time.Time
	Team string
}

// SimulateOptions describe a hypothetical move pushed through the
// notification pipeline.
type SimulateOptions struct {
	Team             string
	PreviousPosition int
	NewPosition      int
	Context          string
}

// PrefsOptions carry a preference update. Nil fields are left unchanged.
type PrefsOptions struct {
	UserID      string
	Team        *string
	Enabled     *bool
	Timing      *string
	Sensitivity *string
	PushToken   *string
	Email       *string
}
