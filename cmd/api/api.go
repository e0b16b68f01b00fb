package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mercado/internal/checkout"
	"mercado/internal/mailer"
	"mercado/internal/notifications"
	"mercado/internal/payments"
	"mercado/internal/ratelimiter"

	"mercado/internal/domain/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config      config
	store       *storage.Container
	sessions    *checkout.SessionManager
	payments    *payments.PaymentManager
	mailer      mailer.Client
	push        notifications.PushSender
	logger      *zap.SugaredLogger
	rateLimiter ratelimiter.Limiter
}

type config struct {
	addr        string
	env         string
	frontendURL string
	db          dbConfig
	redis       redisConfig
	mail        mailConfig
	auth        authConfig
	wompi       wompiConfig
	session     sessionConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type redisConfig struct {
	addr    string
	pw      string
	db      int
	cartTTL time.Duration
}

type mailConfig struct {
	fromEmail string
	mailtrap  mailTrapConfig
}

type mailTrapConfig struct {
	apiKey string
}

type authConfig struct {
	basic basicConfig
}

type basicConfig struct {
	user string
	pass string
}

type wompiConfig struct {
	publicKey       string
	privateKey      string
	integritySecret string
	isProduction    bool
}

type sessionConfig struct {
	cookieName string
	idleTTL    time.Duration
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Key"},
		ExposedHeaders:   []string{"Link", "X-Session-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		// Gateway redirects/webhooks carry no storefront session.
		r.HandleFunc("/payments/webhook", app.paymentWebhookHandler)

		r.Route("/store", func(r chi.Router) {
			r.Use(app.SessionMiddleware)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", app.listProductsHandler)
				r.Get("/{productID}", app.getProductHandler)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", app.getCartHandler)
				r.Delete("/", app.clearCartHandler)
				r.Post("/items", app.addCartItemHandler)
				r.Patch("/items/{itemID}", app.updateCartItemHandler)
				r.Delete("/items/{itemID}", app.removeCartItemHandler)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", app.getCheckoutHandler)
				r.Post("/next", app.nextStepHandler)
				r.Post("/back", app.previousStepHandler)
				r.Put("/step", app.setStepHandler)
				r.Put("/shipping", app.setShippingAddressHandler)
				r.Put("/shipping-cost", app.setShippingCostHandler)
				r.Put("/payment", app.setPaymentHandler)
				r.Put("/notes", app.setOrderNotesHandler)
				r.Post("/reset", app.resetCheckoutHandler)
				r.Post("/place-order", app.placeOrderHandler)

				r.Route("/addresses", func(r chi.Router) {
					r.Get("/", app.listSavedAddressesHandler)
					r.Post("/", app.addSavedAddressHandler)
					r.Delete("/{addressID}", app.removeSavedAddressHandler)
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", app.listSessionOrdersHandler)
				r.Get("/{orderNumber}", app.getOrderHandler)
			})

			r.Route("/push-tokens", func(r chi.Router) {
				r.Post("/", app.registerPushTokenHandler)
				r.Delete("/", app.removePushTokenHandler)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.BasicAuthMiddleware())
			r.Get("/orders", app.adminListOrdersHandler)
			r.Patch("/orders/{orderID}/status", app.adminUpdateOrderStatusHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
