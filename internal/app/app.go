package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/analytics"
	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/catalog"
	"github.com/xenking/bookshelf/internal/domain/checkout"
	"github.com/xenking/bookshelf/internal/domain/order"
	"github.com/xenking/bookshelf/internal/domain/promo"
	"github.com/xenking/bookshelf/internal/domain/session"
	"github.com/xenking/bookshelf/internal/domain/wishlist"
	"github.com/xenking/bookshelf/internal/handler"
	"github.com/xenking/bookshelf/internal/notify"
	"github.com/xenking/bookshelf/internal/storage/postgres"
	"github.com/xenking/bookshelf/internal/storage/redis"
	"github.com/xenking/bookshelf/internal/storage/s3"
	"github.com/xenking/bookshelf/pkg/health"
	"github.com/xenking/bookshelf/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	// Session state: Redis when configured, otherwise process memory.
	var store session.Store
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()
		sessions := redis.NewSessionStore(client, cfg.Session.TTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(sessions))
		store = sessions
	} else {
		lg.Warn("Redis URL not set, session state is kept in memory")
		store = session.NewMemoryStore()
	}

	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	bookRepo := postgres.NewBookRepository(pool)
	comboRepo := postgres.NewComboRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	promoRepo := postgres.NewPromoRuleRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Outbound integrations.
	var notifier notify.Notifier = notify.Nop{}
	if ecfg := cfg.Notify.emailJS(); ecfg.Enabled() {
		notifier = notify.NewEmailJS(ecfg, m.TracerProvider(), m.MeterProvider())
	} else {
		lg.Info("EmailJS not configured, notifications disabled")
	}

	var covers book.CoverStore
	if cfg.Covers.Bucket != "" {
		s3Covers, err := s3.NewCoverStore(ctx, cfg.Covers.storeConfig())
		if err != nil {
			return errors.Wrap(err, "create cover store")
		}
		covers = s3Covers
	}

	// Domain services.
	carts := cart.NewService(store, bookRepo, comboRepo, cfg.Cart.MaxQuantity)
	promos := promo.NewService(store, promo.DefaultTable(), promoRepo)
	checkoutSvc, err := checkout.NewService(store, carts, promos, orderRepo, notifier,
		m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		handler.Services{
			Catalog:   catalog.NewService(bookRepo, store, cfg.Catalog.PageSize),
			Books:     bookRepo,
			Combos:    comboRepo,
			Reviews:   reviewRepo,
			Covers:    covers,
			Carts:     carts,
			Wishlists: wishlist.NewService(store, bookRepo),
			Promos:    promos,
			Checkout:  checkoutSvc,
			Orders:    order.NewService(orderRepo),
			Analytics: analytics.NewService(orderRepo, bookRepo, comboRepo),
			Notifier:  notifier,
		},
	)
	securityHandler := handler.NewSecurityHandler(
		auth.NewTokenVerifier([]byte(cfg.Auth.JWTSecret), auth.AdminPolicy{
			Roles:  cfg.Auth.AdminRoles,
			Emails: cfg.Auth.AdminEmails,
		}),
		auth.NewKeyAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	)

	mux := http.NewServeMux()
	healthSvc.Register(mux)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{
					"Content-Type", "Authorization", handler.HeaderAPIKey,
					httpmiddleware.HeaderSessionID, handler.HeaderIdempotencyKey,
				},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isProbe,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.SessionID(httpmiddleware.SessionConfig{
				MaxAge: int(cfg.Session.TTL.Seconds()),
				Secure: cfg.Session.CookieSecure,
			}),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("bookshelf-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
			securityHandler.Middleware(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
