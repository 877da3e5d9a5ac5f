package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/api"
	"github.com/nexcard/nexcard/internal/app"
	"github.com/nexcard/nexcard/internal/app/maintenance"
	iauth "github.com/nexcard/nexcard/internal/auth"
	"github.com/nexcard/nexcard/internal/cache"
	"github.com/nexcard/nexcard/internal/database"
	"github.com/nexcard/nexcard/internal/middleware"
	"github.com/nexcard/nexcard/internal/services"
	"github.com/nexcard/nexcard/pkg/logger"
	"github.com/nexcard/nexcard/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     cache.Store
	Scans     *services.ScanRecorder
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, caches, services, and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	codes, err := services.NewCodeService(stack.DB,
		services.WithCodeBaseURL(cfg.Server.BaseURL),
		services.WithCodeExpiry(cfg.Codes.Expiry),
		services.WithCodeLength(cfg.Codes.Length),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise code service: %w", err)
	}

	resolver, err := services.NewResolverService(stack.DB, codes)
	if err != nil {
		return nil, fmt.Errorf("initialise resolver service: %w", err)
	}

	stack.Scans, err = services.NewScanRecorder(stack.DB, services.WithScanQueueSize(cfg.Scans.QueueSize))
	if err != nil {
		return nil, fmt.Errorf("initialise scan recorder: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	invitations, err := services.NewInvitationService(stack.DB, mailer, resolver,
		services.WithInvitationBaseURL(cfg.Server.BaseURL),
		services.WithInvitationExpiry(cfg.Invitations.Expiry),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise invitation service: %w", err)
	}

	connections, err := services.NewConnectionService(stack.DB, resolver)
	if err != nil {
		return nil, fmt.Errorf("initialise connection service: %w", err)
	}

	profiles, err := services.NewProfileService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise profile service: %w", err)
	}

	accounts, err := services.NewAccountService(stack.DB, invitations)
	if err != nil {
		return nil, fmt.Errorf("initialise account service: %w", err)
	}

	sweep, err := services.NewSweepService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise sweep service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.DB, sweep, maintenance.WithSchedule(cfg.Maintenance.Schedule))
	if cfg.Maintenance.Enabled {
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewRedisRateStore(stack.Redis)
	default:
		stack.RateStore = middleware.NewDatabaseRateStore(dbStore)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Codes:       codes,
		Resolver:    resolver,
		Scans:       stack.Scans,
		Invitations: invitations,
		Connections: connections,
		Profiles:    profiles,
		Accounts:    accounts,
		JWT:         jwtSvc,
		RateStore:   stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Scans != nil {
		s.Scans.Close()
	}

	if rc, ok := s.Redis.(*cache.RedisClient); ok && rc != nil {
		if err := rc.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
