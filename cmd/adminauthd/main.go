// Command adminauthd serves the admin session and authorization API: login,
// logout, whoami, change-password, and a Prometheus /metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	adminauth "github.com/mtp-sa/adminauth"
	"github.com/mtp-sa/adminauth/httpapi"
	"github.com/mtp-sa/adminauth/metrics/export/prometheus"
	"github.com/mtp-sa/adminauth/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: adminauthd.yaml)")
	migrate := flag.Bool("migrate", false, "create database tables and exit")
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		log.Fatal("adminauthd: ", err)
	}
}

func run(configPath string, migrate bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer provider.Close()

	if migrate {
		if err := provider.Migrate(ctx); err != nil {
			return err
		}
		log.Print("adminauthd: migration complete")
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	engineCfg := adminauth.DefaultConfig()
	engineCfg.Token.Secret = []byte(cfg.Token.Secret)
	engineCfg.Token.TTL = cfg.tokenTTL()
	engineCfg.Token.Issuer = cfg.Token.Issuer
	engineCfg.Token.Leeway = cfg.tokenLeeway()
	engineCfg.Cookie.Name = cfg.Token.CookieName
	engineCfg.Cookie.Secure = cfg.Token.CookieHTTPS
	engineCfg.Security.EnableLoginThrottle = cfg.Throttle.Enabled
	engineCfg.Security.MaxLoginAttempts = cfg.Throttle.MaxAttempts
	engineCfg.Security.LoginCooldown = cfg.cooldown()
	engineCfg.Metrics.EnableLatencyHistograms = true

	engine, err := adminauth.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithProvider(provider).
		WithAttemptRecorder(provider).
		WithAuditSink(adminauth.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	router := httpapi.NewHandler(engine).Router()
	router.Path("/metrics").Handler(prometheus.NewExporter(engine).Handler())
	router.Path("/healthz").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("adminauthd: listening on %s", cfg.Server.Address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Print("adminauthd: stopped")
	return nil
}
