package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/database"
	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/logger"
	"github.com/iliyamo/tour-booking/internal/mail"
	"github.com/iliyamo/tour-booking/internal/metrics"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/payment"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/router"
	"github.com/iliyamo/tour-booking/internal/upload"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, !cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := handler.NewHealth()

	store, db := openStore(cfg, log)
	if db != nil {
		defer db.Close()
		health.Require("database", db.PingContext)
	}

	m := metrics.New()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
		health.Observe("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		log.Warn("redis unavailable, rate limiting and response cache disabled")
	}

	var events queue.Publisher = queue.Discard{}
	amqpUp := false
	if pub, err := queue.NewAMQPPublisher(cfg.AMQPURL, log); err != nil {
		log.Warn("rabbitmq unavailable, events are discarded", zap.Error(err))
	} else {
		defer pub.Close()
		events, amqpUp = pub, true
	}

	direct := directSender(cfg, log)
	var sender mail.Sender = direct
	if cfg.MailTransport == "queue" && amqpUp {
		sender = queue.NewSender(events)
	}

	var wg sync.WaitGroup
	if amqpUp {
		consumers := []*queue.Consumer{
			{URL: cfg.AMQPURL, Queue: queue.BookingQueue, Prefetch: 10, Handle: queue.LogBooking(log), Log: log, Metrics: m},
		}
		if cfg.MailTransport == "queue" {
			consumers = append(consumers, &queue.Consumer{
				URL: cfg.AMQPURL, Queue: queue.EmailQueue, Prefetch: 5, Handle: queue.DeliverEmail(direct, m), Log: log, Metrics: m,
			})
		}
		for _, c := range consumers {
			wg.Add(1)
			go func(c *queue.Consumer) {
				defer wg.Done()
				_ = c.Run(ctx)
			}(c)
		}
	}

	var payments payment.Gateway = payment.Local{}
	if cfg.StripeSecret != "" {
		payments = payment.NewStripe(cfg.StripeSecret, cfg.StripeBaseURL)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, checkout sessions are simulated")
	}

	tokens := auth.NewTokens(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	svc := auth.NewService(store.Users, tokens, sender, log, auth.Options{
		BcryptCost: cfg.BcryptCost,
		AdminEmail: cfg.AdminEmail,
	})

	e := router.New(router.Deps{
		Config:    cfg,
		Log:       log,
		Store:     store,
		Auth:      svc,
		Images:    upload.NewImageStore(cfg.UploadDir),
		Payments:  payments,
		Events:    events,
		Metrics:   m,
		Cache:     middleware.NewCache(config.LoadCacheConfig(), rdb, m, log),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, m, log),
		Health:    health,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	wg.Wait()
}

// openStore picks the storage driver.  The returned db is nil for the
// memory store.
func openStore(cfg config.Config, log *zap.Logger) (*repository.Store, *sql.DB) {
	if cfg.StorageDriver == "memory" {
		log.Info("using in-memory storage")
		return repository.NewMemoryStore(), nil
	}
	db, err := database.Open(cfg.DSNParts())
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
	}
	return repository.NewSQLStore(db), db
}

// directSender delivers in process: over SMTP when a relay is configured,
// to the log otherwise.
func directSender(cfg config.Config, log *zap.Logger) mail.Sender {
	if cfg.MailTransport == "log" || cfg.SMTPHost == "" {
		return mail.NewLogSender(log)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	})
}
