package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/internal/config"
	"github.com/jakechorley/autoroster/pkg/clients/genderclient"
	"github.com/jakechorley/autoroster/pkg/clients/sheetsclient"
	"github.com/jakechorley/autoroster/pkg/core/gender"
	"github.com/jakechorley/autoroster/pkg/core/ledger"
	"github.com/jakechorley/autoroster/pkg/core/roster"
	"github.com/jakechorley/autoroster/pkg/core/services"
	"github.com/jakechorley/autoroster/pkg/db"
	"github.com/jakechorley/autoroster/pkg/httpapi"
	"github.com/jakechorley/autoroster/pkg/metrics"
	"github.com/jakechorley/autoroster/pkg/postgres"
	"github.com/jakechorley/autoroster/pkg/utils/logging"
)

const genderAPITimeout = 30 * time.Second

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg          *config.Config
	SheetsClient *sheetsclient.Client
	Database     db.Database
	Ledger       *ledger.Ledger
	Genders      gender.Resolver
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Ctx          context.Context

	closers []func()
}

var _ httpapi.TripOpener = (*AppContext)(nil)

// Init sets up logger, config, clients, the ledger backend and its lock
func (app *AppContext) Init(ctx context.Context, env string, verbose bool) error {
	var err error
	app.Ctx = ctx

	app.Logger, err = logging.InitLogger(env, logging.Options{Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	oauthCfg, err := config.LoadOAuthClientWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	app.Logger.Info("Initializing sheets client")
	app.SheetsClient, err = sheetsclient.NewClient(ctx, oauthCfg, env, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create sheets client: %w", err)
	}

	app.Metrics = metrics.New()

	var pgPool *pgxpool.Pool
	switch app.Cfg.Ledger.Backend {
	case config.BackendPostgres:
		app.Logger.Info("Connecting to postgres")
		pgDB, err := postgres.NewDB(ctx, app.Cfg.PostgresURL)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, pgDB.Close)
		if err := pgDB.RunMigrations(ctx); err != nil {
			return err
		}
		app.Database = pgDB
		pgPool = pgDB.Pool()
	default:
		app.Logger.Info("Connecting to database", zap.String("spreadsheet_id", app.Cfg.DatabaseSheetID))
		sheetsDB, err := db.Open(app.SheetsClient, app.Cfg.DatabaseSheetID, app.Cfg.PrioritySpreadsheet())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.Database = sheetsDB
	}

	locker, err := app.newLocker(ctx, pgPool)
	if err != nil {
		return err
	}

	app.Ledger = ledger.New(app.Database, locker,
		ledger.WithLockTimeout(app.Cfg.Ledger.LockTimeout),
		ledger.WithBatchFloor(app.Cfg.Ledger.ClampBatch),
		ledger.WithLogger(app.Logger),
		ledger.WithObserver(app.Metrics),
		ledger.WithAuditSink(app.Database),
	)

	var classifier gender.Classifier
	if app.Cfg.GenderEnabled() {
		classifier = genderclient.NewClient(app.Cfg.GenderAPIURL, app.Cfg.GenderAPIKey, &http.Client{Timeout: genderAPITimeout})
	} else {
		app.Logger.Info("No gender API configured, gender lookups use the cache only")
	}
	app.Genders = gender.NewCachedResolver(app.Database, classifier, app.Logger)

	app.Logger.Info("Application initialized",
		zap.String("backend", app.Cfg.Ledger.Backend),
		zap.String("lock", app.Cfg.Ledger.Lock))
	return nil
}

func (app *AppContext) newLocker(ctx context.Context, pgPool *pgxpool.Pool) (ledger.Locker, error) {
	switch app.Cfg.Ledger.Lock {
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{Addr: app.Cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", app.Cfg.RedisAddr, err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		return ledger.NewRedisLocker(client, app.Cfg.Ledger.RedisKey), nil
	case config.LockPostgres:
		if pgPool == nil {
			p, err := pgxpool.New(ctx, app.Cfg.PostgresURL)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to postgres for locking: %w", err)
			}
			app.closers = append(app.closers, p.Close)
			pgPool = p
		}
		return postgres.NewAdvisoryLocker(pgPool, postgres.LedgerLockKey), nil
	default:
		return ledger.NewLocalLocker(), nil
	}
}

// Close releases connections opened by Init and flushes the logger
func (app *AppContext) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
}

// RosterStore is the roster writer over one trip's sheet
func (app *AppContext) RosterStore(rosterSheetID string) *roster.Writer {
	sheet := sheetsclient.NewRosterSheet(app.SheetsClient, rosterSheetID, app.Cfg.Roster)
	return roster.NewWriter(sheet, app.Logger)
}

// TripOptions sizes a trip from config, a nil waitlist using the configured default
func (app *AppContext) TripOptions(waitlist *int, rosterLimit int) services.TripOptions {
	size := app.Cfg.DefaultWaitlist
	if waitlist != nil {
		size = *waitlist
	}
	return services.TripOptions{
		EmailDomain:     app.Cfg.EmailDomain,
		SeatsPerDriver:  app.Cfg.SeatsPerDriver,
		WaitlistSize:    size,
		RosterLimit:     rosterLimit,
		FemaleThreshold: app.Cfg.FemaleThreshold,
	}
}

// OpenTrip builds a Trip over the roster and commitment sheets named in req
func (app *AppContext) OpenTrip(ctx context.Context, req httpapi.TripRequest) (*services.Trip, error) {
	deps := services.TripDeps{
		Commitments: sheetsclient.CommitmentForm{Reader: app.SheetsClient, SpreadsheetID: req.CommitmentSheetID, Logger: app.Logger},
		Eboard:      app.eboardSheet(),
		Priorities:  app.Ledger,
		Roster:      app.RosterStore(req.RosterSheetID),
		Genders:     app.Genders,
		Exclusions:  app.Database,
		Observer:    app.Metrics,
	}
	return services.NewTrip(deps, app.TripOptions(req.WaitlistSize, req.RosterLimit), app.Logger), nil
}

func (app *AppContext) eboardSheet() sheetsclient.EboardSheet {
	return sheetsclient.EboardSheet{Reader: app.SheetsClient, SpreadsheetID: app.Cfg.EboardSheetID}
}
