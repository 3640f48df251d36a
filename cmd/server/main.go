package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/api"
	"github.com/Mieluoxxx/Siriusx-Router/internal/config"
	"github.com/Mieluoxxx/Siriusx-Router/internal/crypto"
	"github.com/Mieluoxxx/Siriusx-Router/internal/db"
	"github.com/Mieluoxxx/Siriusx-Router/internal/logging"
	"github.com/Mieluoxxx/Siriusx-Router/internal/provider"
	"github.com/Mieluoxxx/Siriusx-Router/internal/router"
	"github.com/Mieluoxxx/Siriusx-Router/internal/session"
	"github.com/Mieluoxxx/Siriusx-Router/internal/stats"
	"github.com/Mieluoxxx/Siriusx-Router/internal/upstream"
	"github.com/Mieluoxxx/Siriusx-Router/internal/usagelog"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	// Version 项目版本
	Version = "0.2.0"
	// AppName 应用名称
	AppName = "Siriusx-Router"
)

func main() {
	var (
		configPath  string
		generateKey bool
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径（默认 $CONFIG_PATH 或 ./config.yaml）")
	flag.BoolVar(&generateKey, "generate-key", false, "生成一个新的 API Key 加密密钥并退出")
	flag.Parse()

	if generateKey {
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	cfg, err := config.LoadConfig(config.ResolveConfigPath(configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)
	log.Infof("=== %s v%s ===", AppName, Version)

	if err := run(cfg); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.Config) error {
	database, err := db.InitDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := db.CloseDatabase(database); errClose != nil {
			log.WithError(errClose).Warn("database close failed")
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(database); err != nil {
			return err
		}
	}

	box, err := secretBox(cfg.Security.EncryptionKey)
	if err != nil {
		return err
	}

	sessions, closeSessions, err := sessionTracker(&cfg.Session)
	if err != nil {
		return err
	}
	defer closeSessions()

	providers := provider.NewService(provider.NewRepository(database), box, cfg.Router.DefaultDailyLimit)
	caller := upstream.NewCaller()
	usageLogs := usagelog.NewService(database)

	requests := stats.NewRequestCounter(time.Minute)
	defer requests.Stop()
	routes := stats.NewRouteCounter(time.Minute)
	defer routes.Stop()

	defaults := router.Options{
		Timeout:               cfg.Router.Timeout,
		MaxRetriesPerProvider: cfg.Router.MaxRetriesPerProvider,
	}
	if cfg.Router.SessionProviderLimit > 0 {
		limit := cfg.Router.SessionProviderLimit
		defaults.SessionProviderLimit = &limit
	}
	rt := router.New(providers, caller, usageLogs,
		router.WithDefaults(defaults),
		router.WithDefaultDailyLimit(cfg.Router.DefaultDailyLimit),
		router.WithSessionTracker(sessions),
		router.WithRouteCounter(routes),
	)

	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.SetupRouter(api.Dependencies{
		Providers:    providers,
		Tester:       provider.NewTester(providers, caller, cfg.Router.Timeout),
		Router:       rt,
		UsageLogs:    usageLogs,
		Requests:     requests,
		RouteCounter: routes,
		AdminKey:     cfg.Server.AdminKey,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})
	if cfg.Server.AdminKey == "" {
		log.Warn("admin_key is empty, /api endpoints are unauthenticated")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errCh <- errListen
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// secretBox 未配置密钥时 API Key 明文存储
func secretBox(encoded string) (*crypto.SecretBox, error) {
	key, err := crypto.ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	if key == nil {
		log.Warn("encryption_key is empty, provider API keys are stored in plaintext")
		return nil, nil
	}
	return crypto.NewSecretBox(key)
}

// sessionTracker 按配置创建会话计数器
func sessionTracker(cfg *config.SessionConfig) (session.Tracker, func(), error) {
	if cfg.Backend != config.SessionBackendRedis {
		return session.NewMemoryTracker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}

	tracker := session.NewRedisTracker(client, cfg.RedisPrefix, cfg.RunID)
	log.WithField("key", tracker.Key()).Info("session counters stored in redis")
	return tracker, func() { _ = client.Close() }, nil
}
