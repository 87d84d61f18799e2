package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cryptexdrive/internal/cryptox"
	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/config"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/mail"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/quarantine"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/revocation"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/risk"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/services"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/storage"
	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
)

// Core is the wired service graph shared by the server and the admin tool.
type Core struct {
	DB          *sql.DB
	Logger      logging.Logger
	Registry    *revocation.Registry
	Auditor     *audit.Recorder
	Store       *storage.Hybrid
	Credentials *services.CredentialService
	Challenges  *services.ChallengeService
	Tokens      *services.TokenService
	Sessions    *services.SessionService
	Files       *services.FileService
	Admin       *services.AdminService
	Monitor     *quarantine.Monitor
}

// openDB is swapped in tests.
var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

// newRemote builds the S3 tier; nil when no bucket is configured.
func newRemote(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if !cfg.RemoteStorageEnabled() {
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3RootUser,
		SecretKey:    cfg.S3RootPassword,
		Timeout:      cfg.RemoteTimeout,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewS3(client, cfg.S3Bucket, cfg.RemoteTimeout), nil
}

// NewCore opens the database, applies migrations and wires every service.
func NewCore(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Core, error) {
	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	core, err := newCore(ctx, cfg, logger, db, repomanager.NewPostgresRepositoryManager())
	if err != nil {
		db.Close()
		return nil, err
	}
	return core, nil
}

func newCore(ctx context.Context, cfg *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*Core, error) {
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	clock := timex.Clock(timex.SystemClock)

	local, err := storage.NewLocal(cfg.StorageRoot)
	if err != nil {
		return nil, err
	}
	remote, err := newRemote(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	if remote == nil {
		logger.Info(ctx, "remote storage disabled, using local tier only", "root", cfg.StorageRoot)
	}
	store := storage.NewHybrid(local, remote, logger)

	registry := revocation.NewRegistry(rm.Revocations(db), logger, clock)
	recorder := audit.NewRecorder(rm.Audit(db), logger, clock)

	creds := services.NewCredentialService(db, rm, auth.DefaultPasswordParams())
	challenges := services.NewChallengeService(db, rm, clock)
	tokens := services.NewTokenService(cfg.SecretKey, registry, clock, cfg.SessionTokenMaxAge)
	sessions := services.NewSessionService(creds, challenges, tokens, mail.NewLogSender(logger), recorder, logger)
	files := services.NewFileService(db, rm, store, cryptox.NewVault([]byte(cfg.MasterSecret)),
		risk.NewHeuristicScorer(), tokens, creds, recorder, logger)
	monitor := quarantine.NewMonitor(rm.Files(db), store, recorder, logger, cfg.QuarantineThreshold, cfg.QuarantineInterval)

	return &Core{
		DB:          db,
		Logger:      logger,
		Registry:    registry,
		Auditor:     recorder,
		Store:       store,
		Credentials: creds,
		Challenges:  challenges,
		Tokens:      tokens,
		Sessions:    sessions,
		Files:       files,
		Admin:       services.NewAdminService(db, rm),
		Monitor:     monitor,
	}, nil
}

func (c *Core) Close() error {
	return c.DB.Close()
}
