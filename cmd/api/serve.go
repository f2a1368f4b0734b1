package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/5w1tchy/library-api/internal/api/router"
	"github.com/5w1tchy/library-api/internal/auth"
	"github.com/5w1tchy/library-api/internal/maintenance"
	"github.com/5w1tchy/library-api/internal/repository/redisconnect"
	"github.com/5w1tchy/library-api/internal/repository/sqlconnect"
	jwtutil "github.com/5w1tchy/library-api/internal/security/jwt"
	"github.com/5w1tchy/library-api/internal/security/password"
	"github.com/5w1tchy/library-api/internal/storage/s3"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	"github.com/5w1tchy/library-api/internal/store/lending"
	"github.com/5w1tchy/library-api/internal/store/migrations"
	"github.com/5w1tchy/library-api/internal/validate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP(S) API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := zap.L().Named("server")
	if err := validate.Env(); err != nil {
		return err
	}
	for _, w := range validate.HardeningWarnings(cfg.AppEnv) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlconnect.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrateOnStart {
		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			return err
		}
		zap.L().Info("migrations applied", zap.Strings("versions", applied))
	}

	rdb, err := redisconnect.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	users := auth.NewSQLStore(db)
	loans := lending.New(db, rdb)
	deps := router.Deps{
		Config:  cfg,
		Redis:   rdb,
		Catalog: catalog.New(db, rdb),
		Lending: loans,
		Loans:   loans,
		Users:   users,
		Signer:  jwtutil.NewSigner(jwtutil.LoadConfig()),
		Hasher:  password.NewHasher(password.LoadParamsFromEnv()),
	}
	if rdb != nil {
		deps.Refresh = auth.NewRedisRefreshTokens(rdb, auth.RefreshTTL(os.Getenv("AUTH_REFRESH_TTL")))
	} else {
		deps.Limiter = router.NewMemoryLimiter()
		go deps.Limiter.RunSweeper(ctx, time.Minute)
	}
	if cfg.StorageEnabled() {
		covers, err := s3.New(ctx, s3.Config{Endpoint: cfg.S3Endpoint, Region: cfg.S3Region, Bucket: cfg.S3Bucket})
		if err != nil {
			return err
		}
		deps.Covers = covers
	}

	go maintenance.NewRetention(loans, cfg.LoanRetentionDays, cfg.LoanRetentionAt, cfg.LoanRetentionTZ).Run(ctx)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Router(deps),
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", server.Addr),
			zap.Bool("tls", cfg.TLSEnabled()),
			zap.Bool("redis", rdb != nil),
			zap.Bool("storage", cfg.StorageEnabled()))
		if cfg.TLSEnabled() {
			errc <- server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}
