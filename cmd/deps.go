package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/mailer"
	"github.com/vibast-solutions/ms-go-inventory/app/media"
	"github.com/vibast-solutions/ms-go-inventory/app/password"
	"github.com/vibast-solutions/ms-go-inventory/app/ratelimit"
	"github.com/vibast-solutions/ms-go-inventory/app/repository"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
	"github.com/vibast-solutions/ms-go-inventory/app/token"
	"github.com/vibast-solutions/ms-go-inventory/config"
	"github.com/vibast-solutions/ms-go-inventory/migrations"
)

// loadConfig loads configuration and logging, and is fatal on failure like every command entry point.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func newMigrator() error {
	goose.SetBaseFS(migrations.FS)
	return goose.SetDialect("mysql")
}

// newMailSender picks the transport from MAIL_TRANSPORT. The returned closer is never nil.
func newMailSender(cfg *config.Config) (mailer.Sender, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Mail.Transport {
	case "smtp":
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			Insecure: cfg.Mail.SMTPInsecure,
			Timeout:  15 * time.Second,
		}), noop, nil
	case "amqp":
		sender, closeFn, err := mailer.DialAMQP(cfg.Mail.AMQPURL, cfg.Mail.AMQPExchange, cfg.Mail.AMQPRouting)
		if err != nil {
			return nil, noop, err
		}
		return sender, closeFn, nil
	case "log", "":
		return mailer.NewLogSender(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown MAIL_TRANSPORT %q", cfg.Mail.Transport)
	}
}

// newRateLimiter returns nil when REDIS_ADDR is unset, which disables rate limiting.
func newRateLimiter(cfg *config.Config) (*ratelimit.Limiter, func() error) {
	if cfg.Redis.Addr == "" {
		logrus.Info("REDIS_ADDR not set, rate limiting disabled")
		return nil, func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis unreachable at startup, rate limiter will fail open until it recovers")
	}
	return ratelimit.NewLimiter(client, cfg.RateLimit.Requests, cfg.RateLimit.Window), client.Close
}

type services struct {
	accounts   service.AccountService
	sessions   service.SessionService
	products   service.ProductService
	background *service.Background
}

func newServices(ctx context.Context, cfg *config.Config, db *sql.DB, sender mailer.Sender) (*services, error) {
	store, err := media.NewStore(ctx, cfg.Media)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(db)
	products := repository.NewProductRepository(db)
	hasher := password.NewBcryptHasher(cfg.Password.BcryptCost)
	issuer := token.NewIssuer(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
	})

	background := &service.Background{}
	runner := service.WithAsyncRunner(background.Run)

	return &services{
		accounts:   service.NewAccountService(users, hasher, store, sender, cfg, runner),
		sessions:   service.NewSessionService(users, issuer, hasher, sender, cfg, runner),
		products:   service.NewProductService(db, products, store),
		background: background,
	}, nil
}
