package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/and161185/docsnap/internal/config"
	"github.com/and161185/docsnap/internal/logging"
	"github.com/and161185/docsnap/internal/metrics"
	"github.com/and161185/docsnap/internal/migrate"
	mongostore "github.com/and161185/docsnap/internal/repository/mongo"
	"github.com/and161185/docsnap/internal/repository/postgres"
	"github.com/and161185/docsnap/internal/service"
)

const pushTimeout = 10 * time.Second

// flagKeys maps global flags to configuration keys.
var flagKeys = map[string]string{
	"mongo-uri":   "mongo.uri",
	"database":    "mongo.database",
	"root":        "backup.root",
	"workers":     "backup.workers",
	"journal-dsn": "journal.dsn",
	"pushgateway": "metrics.pushgateway",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to YAML config file",
			Sources: cli.EnvVars("DOCSNAP_CONFIG"),
		},
		&cli.StringFlag{Name: "mongo-uri", Usage: "MongoDB connection string", Sources: cli.EnvVars("MONGO_URI")},
		&cli.StringFlag{Name: "database", Usage: "database name (default: from the URI)", Sources: cli.EnvVars("MONGO_DB")},
		&cli.StringFlag{Name: "root", Usage: "backups root directory", Sources: cli.EnvVars("BACKUP_ROOT")},
		&cli.IntFlag{Name: "workers", Usage: "collections processed concurrently"},
		&cli.StringFlag{Name: "journal-dsn", Usage: "PostgreSQL DSN of the run journal"},
		&cli.StringFlag{Name: "pushgateway", Usage: "Prometheus Pushgateway URL"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "log-format", Usage: "console or json"},
	}
}

// flagOverrides collects explicitly set flags as configuration overrides.
func flagOverrides(cmd *cli.Command) map[string]any {
	out := map[string]any{}
	for flag, key := range flagKeys {
		if !cmd.IsSet(flag) {
			continue
		}
		if flag == "workers" {
			out[key] = int(cmd.Int(flag))
			continue
		}
		out[key] = cmd.String(flag)
	}
	return out
}

// app holds the wired dependencies of one invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	orch    *service.Orchestrator
	metrics *metrics.Metrics
	journal *postgres.DB
}

func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"), flagOverrides(cmd))
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkers(cfg.Backup.Workers),
		service.WithExclude(cfg.Backup.Exclude),
		service.WithManifest(cfg.Backup.Manifest),
		service.WithMetrics(a.metrics),
	}
	if cfg.Journal.Enabled() {
		if db := a.openJournal(ctx); db != nil {
			a.journal = db
			opts = append(opts, service.WithJournal(postgres.NewJournalRepo(db)))
		}
	}

	a.orch = service.NewOrchestrator(a.connector(), cfg.Backup.Root, opts...)
	return a, nil
}

func (a *app) connector() service.Connector {
	mc := a.cfg.Mongo
	return func(ctx context.Context) (service.Conn, error) {
		s, err := mongostore.Connect(ctx, mc.URI, mc.Database, mc.Timeout)
		if err != nil {
			return nil, err
		}
		a.log.Debug("connected", zap.String("database", s.Database()))
		return s, nil
	}
}

// openJournal connects the run journal. The journal is an audit aid, so
// failures only disable it.
func (a *app) openJournal(ctx context.Context) *postgres.DB {
	if a.cfg.Journal.Migrate {
		if err := migrate.Up(ctx, a.cfg.Journal.DSN, a.log); err != nil {
			a.log.Warn("journal disabled: migrations failed", zap.Error(err))
			return nil
		}
	}
	db, err := postgres.New(ctx, a.cfg.Journal.DSN)
	if err != nil {
		a.log.Warn("journal disabled: cannot connect", zap.Error(err))
		return nil
	}
	return db
}

func (a *app) pushMetrics(ctx context.Context) {
	if a.cfg.Metrics.Pushgateway == "" {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := a.metrics.Push(pctx, a.cfg.Metrics.Pushgateway, a.cfg.Metrics.Job); err != nil {
		a.log.Warn("metrics push failed", zap.Error(err))
	}
}

// Close releases the journal pool and flushes the logger.
func (a *app) Close(context.Context) {
	if a.journal != nil {
		a.journal.Close()
	}
	_ = a.log.Sync()
}
