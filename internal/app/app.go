package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sendcertificates/server/internal/accounts"
	"github.com/sendcertificates/server/internal/config"
	"github.com/sendcertificates/server/internal/db"
	"github.com/sendcertificates/server/internal/housekeeping"
	"github.com/sendcertificates/server/internal/http/api/admin"
	"github.com/sendcertificates/server/internal/http/api/front"
	"github.com/sendcertificates/server/internal/http/middleware"
	"github.com/sendcertificates/server/internal/mailer"
	"github.com/sendcertificates/server/internal/metrics"
	"github.com/sendcertificates/server/internal/ratelimit"
	"github.com/sendcertificates/server/internal/session"
	"github.com/sendcertificates/server/internal/storage"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

// Dependencies are the collaborators NewEngine wires into the routes. Nil
// fields fall back to a logging mailer, no uploads and no rate limiting.
type Dependencies struct {
	Mailer    mailer.Sender
	Presigner *storage.Presigner
	Limiter   *ratelimit.Manager
	Now       func() time.Time
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// NewEngine builds the HTTP handler with every middleware and route.
func NewEngine(conn *gorm.DB, cfg config.Config, deps Dependencies) *gin.Engine {
	sender := deps.Mailer
	if sender == nil {
		sender = mailer.LogSender{}
	}
	svc := accounts.NewService(conn, accounts.Options{
		OwnerEmail: cfg.Server.OwnerEmail,
		BaseURL:    cfg.Server.BaseURL,
		Mailer:     sender,
		Now:        deps.Now,
	})

	engine := gin.New()
	// ClientIP keys the rate limiter; forwarded headers count only from
	// configured proxies.
	if errProxies := engine.SetTrustedProxies(cfg.Server.TrustedProxies); errProxies != nil {
		log.WithError(errProxies).Error("invalid trusted proxies, trusting none")
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(metrics.Middleware())
	engine.Use(middleware.StoreTimeout(cfg.Server.StoreTimeout))
	engine.Use(middleware.CSRF(middleware.CSRFConfig{AllowedOrigins: cfg.Server.AllowedOrigins}))
	engine.Use(session.Resolve(session.NewAuthenticator(cfg.JWT.Secret)))

	engine.GET("/metrics", metrics.Handler())
	admin.RegisterAdminRoutes(engine, conn, svc)
	front.RegisterFrontRoutes(engine, conn, svc, front.Options{
		JWTSecret: cfg.JWT.Secret,
		Cookies:   session.NewCookieHelper(cfg.Server.SecureCookies),
		Presigner: deps.Presigner,
		Limiter:   deps.Limiter,
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return engine
}

// RunServer boots the API server and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	appCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	configureLogging(appCfg.Server.Debug)
	if appCfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.OpenWithOptions(appCfg.DatabaseDSN, db.Options{Debug: appCfg.Server.Debug})
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	bootstrap, errInit := InspectAdminBootstrap(conn, appCfg.Server.OwnerEmail)
	if errInit != nil {
		return errInit
	}
	if bootstrap.Unreachable() {
		log.Warn("no admin account exists; run `create-admin` or set owner-email")
	} else {
		log.WithField("admins", bootstrap.Admins).Debug("admin bootstrap")
	}

	presigner, errPresign := storage.NewPresigner(ctx, appCfg.Storage)
	if errPresign != nil {
		if !errors.Is(errPresign, storage.ErrDisabled) {
			return errPresign
		}
		log.Info("object storage not configured, template uploads disabled")
	}

	limiter := ratelimit.NewManager(ratelimit.StaticSettings(ratelimit.SettingsFromConfig(appCfg.RateLimit)), nil, nil)
	defer func() {
		if errClose := limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limiter")
		}
	}()

	engine := NewEngine(conn, appCfg, Dependencies{
		Mailer:    mailer.New(appCfg.Mail),
		Presigner: presigner,
		Limiter:   limiter,
	})

	housekeeping.NewSweeper(conn, appCfg.Server.SweepInterval).Start(ctx)

	addr := net.JoinHostPort(appCfg.Server.Host, strconv.Itoa(appCfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s with config=%s", addr, configPath)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errCh <- errListen
		}
		close(errCh)
	}()

	select {
	case errListen, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", errListen)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.Errorf("server shutdown error: %v", errShutdown)
		return errShutdown
	}
	log.Info("server stopped")
	return nil
}

// configureLogging sets the logrus formatter and level.
func configureLogging(debug bool) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}

func closeDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
}
