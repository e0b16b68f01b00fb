package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"mercado/internal/cache"
	"mercado/internal/checkout"
	"mercado/internal/db"
	"mercado/internal/domain/orders"
	"mercado/internal/domain/storage"
	"mercado/internal/mailer"
	"mercado/internal/notifications"
	"mercado/internal/payments"
	"mercado/internal/ratelimiter"

	"github.com/9ssi7/exponent"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 200
	defaultEnabled := false

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	level := zapcore.InfoLevel
	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	logger := zap.New(core)
	return logger.Sugar(), nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		fmt.Println("Invalid", key, "defaulting to", fallback)
	}
	return fallback
}

var version = "0.3.0"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}

	maxConnsStr := os.Getenv("DB_MAX_CONNS")
	maxConns, err := strconv.Atoi(maxConnsStr)
	if err != nil {
		log.Fatalf("Invalid value for DB_MAX_CONNS: %v", err)
	}

	redisDB := 0
	if val, exists := os.LookupEnv("REDIS_DB"); exists {
		if parsed, err := strconv.Atoi(val); err == nil {
			redisDB = parsed
		}
	}

	cfg := config{
		addr:        os.Getenv("ADDR"),
		env:         os.Getenv("ENV"),
		frontendURL: os.Getenv("FRONTEND_URL"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(maxConns),
			maxIdleTime: os.Getenv("DB_MAX_IDLE_TIME"),
		},
		redis: redisConfig{
			addr:    os.Getenv("REDIS_ADDR"),
			pw:      os.Getenv("REDIS_PW"),
			db:      redisDB,
			cartTTL: envDuration("CART_TTL", 7*24*time.Hour),
		},
		mail: mailConfig{
			fromEmail: os.Getenv("MAIL_FROM_EMAIL"),
			mailtrap: mailTrapConfig{
				apiKey: os.Getenv("MAILTRAP_API_KEY"),
			},
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
		},
		wompi: wompiConfig{
			publicKey:       os.Getenv("WOMPI_PUBLIC_KEY"),
			privateKey:      os.Getenv("WOMPI_PRIVATE_KEY"),
			integritySecret: os.Getenv("WOMPI_INTEGRITY_SECRET"),
			isProduction:    os.Getenv("WOMPI_ENV") == "production",
		},
		session: sessionConfig{
			cookieName: "mercado_session",
			idleTTL:    envDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		rateLimiter: LoadRateLimiterConfig(),
	}

	// Logger
	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Database
	pool, err := db.New(
		cfg.db.addr,
		cfg.db.maxConns,
		cfg.db.maxIdleTime,
	)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	// Redis, backing the checkout snapshots
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redis.addr,
		Password: cfg.redis.pw,
		DB:       cfg.redis.db,
	})
	defer rdb.Close()

	// Storage
	orderNums := orders.NewOrderNumberGenerator(os.Getenv("ORDER_NUMBER_SECRET"))
	store := storage.NewContainer(pool, orderNums)

	// Checkout sessions restore from Redis on first touch
	snapshots := cache.NewRedisSnapshotStore(rdb, cfg.redis.cartTTL)
	sessions := checkout.NewSessionManager(snapshots, cfg.session.idleTTL, func(ctrl *checkout.Controller) {
		ctrl.Subscribe(func(ev checkout.Event) {
			logger.Debugw("checkout event", "kind", ev.Kind)
		})
	})

	// Payment gateways
	paymentManager := payments.NewPaymentManager()
	wompi := payments.NewWompiAdapter(
		cfg.wompi.publicKey,
		cfg.wompi.privateKey,
		cfg.wompi.integritySecret,
		cfg.frontendURL+"/checkout/confirmation",
		cfg.wompi.isProduction,
	)
	paymentManager.RegisterGateway("wompi", wompi)
	paymentManager.RegisterGateway("pse", wompi)
	paymentManager.RegisterGateway("card", wompi)
	paymentManager.RegisterGateway("nequi", wompi)
	paymentManager.RegisterGateway("bank_transfer", payments.NewManualAdapter("Transfiere al Bancolombia 123-456789-00 y envía el comprobante."))
	paymentManager.RegisterGateway("cash_on_delivery", payments.NewManualAdapter("Paga en efectivo al recibir tu pedido."))

	// Mail
	mailtrap, err := mailer.NewMailTrapClient(cfg.mail.mailtrap.apiKey, cfg.mail.fromEmail)
	if err != nil {
		logger.Fatal(err)
	}

	// Push
	expo := notifications.NewExpoAdapter(exponent.NewClient())

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	app := &application{
		config:      cfg,
		logger:      logger,
		store:       store,
		sessions:    sessions,
		payments:    paymentManager,
		mailer:      mailtrap,
		push:        expo,
		rateLimiter: rateLimiter,
	}

	// Metrics collected at http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]any{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
		}
	}))
	expvar.Publish("checkout_sessions", expvar.Func(func() any {
		return sessions.Len()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.startBackgroundJobs(ctx)

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
