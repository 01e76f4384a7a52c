package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/internal/replay"
	"github.com/jmerrifield20/NexusXID/internal/sigverify"
	"github.com/jmerrifield20/NexusXID/internal/snapshot"
	"github.com/jmerrifield20/NexusXID/internal/xid/handler"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// snapshotName is the key the replay guard is saved under.
const snapshotName = "verifier"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("verifier exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("verifier")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("verifier.port", 8091)
	viper.SetDefault("verifier.trusted_signer_key", "")
	viper.SetDefault("verifier.admin_secret", "")
	viper.SetDefault("verifier.rate_limit_rps", 50)
	viper.SetDefault("snapshot.driver", snapshot.DriverFile)
	viper.SetDefault("snapshot.path", "data")
	viper.SetDefault("snapshot.database_url", "")
	viper.SetDefault("snapshot.interval", "30s")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trusted, err := sigverify.ParseKeyField(viper.GetString("verifier.trusted_signer_key"))
	if err != nil {
		return fmt.Errorf("verifier.trusted_signer_key: %w", err)
	}

	// ── Replay guard ─────────────────────────────────────────────────────────
	store, closeStore, err := snapshot.Open(ctx, snapshot.Config{
		Driver:      viper.GetString("snapshot.driver"),
		Path:        viper.GetString("snapshot.path"),
		DatabaseURL: viper.GetString("snapshot.database_url"),
	})
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	defer closeStore()

	guard := replay.New()
	if _, err := guard.LoadFrom(ctx, store, snapshotName); err != nil {
		logger.Fatal("restore replay guard", zap.Error(err))
	}
	logger.Info("replay guard ready", zap.Int("consumed", guard.Len()))

	a, err := attest.New(trusted, guard, logger)
	if err != nil {
		return err
	}

	if interval := viper.GetDuration("snapshot.interval"); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					if err := guard.SaveTo(saveCtx, store, snapshotName); err != nil {
						logger.Warn("periodic replay snapshot failed", zap.Error(err))
					}
					cancel()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.SecurityHeaders())
	router.Use(handler.BodyLimit(1<<20, nil))
	if rps := viper.GetInt("verifier.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, rps*2, handler.ByClientIP))
	}
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	h := attest.NewHandler(a, logger)
	h.SetAdminSecret(viper.GetString("verifier.admin_secret"))
	h.Register(router.Group("/api/v1"))

	port := viper.GetInt("verifier.port")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("verifier HTTP listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutting down verifier...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if err := guard.SaveTo(shutdownCtx, store, snapshotName); err != nil {
		logger.Error("final replay snapshot failed", zap.Error(err))
	}

	logger.Info("verifier stopped")
	return nil
}
