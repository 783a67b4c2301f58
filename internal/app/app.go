// Package app wires the cart agent: snapshot backend, order service gateway,
// cart controller and the local HTTP API.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-cart/internal/cartsync"
	"github.com/xenking/kart-cart/internal/domain/coupon"
	"github.com/xenking/kart-cart/internal/gateway"
	"github.com/xenking/kart-cart/internal/handler"
	"github.com/xenking/kart-cart/internal/storage/file"
	"github.com/xenking/kart-cart/internal/storage/postgres"
	"github.com/xenking/kart-cart/internal/storage/redis"
	"github.com/xenking/kart-cart/internal/storage/snapshot"
	"github.com/xenking/kart-cart/pkg/health"
	"github.com/xenking/kart-cart/pkg/httpmiddleware"
)

// backend is the snapshot store selected by config together with what the
// agent needs to probe and release it.
type backend struct {
	kv      snapshot.KV
	pool    *pgxpool.Pool
	pinger  health.Pinger
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects the configured snapshot backend. The postgres pool is
// also opened when coupons are read from the database.
func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config) (_ *backend, rerr error) {
	b := &backend{}
	defer func() {
		if rerr != nil {
			b.close()
		}
	}()

	if cfg.needsDatabase() {
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		b.pool = pool
		b.closers = append(b.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
		b.kv = snapshot.NewMemoryKV()
	case BackendFile:
		kv, err := file.New(cfg.Storage.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "open file storage")
		}
		b.kv, b.pinger = kv, kv
	case BackendRedis:
		client := redis.NewClient(cfg.Storage.RedisAddr)
		kv := redis.New(client, "cart-agent:", cfg.Storage.RedisTTL)
		b.closers = append(b.closers, func() {
			if err := kv.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		})
		b.kv, b.pinger = kv, kv
	case BackendPostgres:
		b.kv, b.pinger = postgres.NewSnapshotKV(b.pool), b.pool
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	lg.Info("Snapshot storage ready", zap.String("backend", cfg.Storage.Backend))
	return b, nil
}

// couponValidator returns the validator for the checkout summary, nil when
// coupons are disabled.
func couponValidator(cfg *Config, b *backend) (coupon.Validator, error) {
	switch cfg.Coupons.Source {
	case CouponsPostgres:
		return coupon.NewRepoValidator(postgres.NewCouponRepository(b.pool)), nil
	case CouponsStatic:
		rules, err := coupon.ParseRules(cfg.Coupons.Rules)
		if err != nil {
			return nil, errors.Wrap(err, "parse coupon rules")
		}
		return coupon.NewRepoValidator(coupon.NewStaticRepository(rules...)), nil
	default:
		return nil, nil
	}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the agent.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("gateway", cfg.Gateway.BaseURL),
	)

	b, err := openBackend(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	gw, err := gateway.New(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		Timeout:        cfg.Gateway.Timeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create gateway")
	}

	opts := []cartsync.Option{
		cartsync.WithIdentity(cfg.Identity()),
		cartsync.WithTracerProvider(m.TracerProvider()),
		cartsync.WithMeterProvider(m.MeterProvider()),
	}
	if cfg.SerializeMutations {
		opts = append(opts, cartsync.WithSerializedMutations())
	}
	ctrl, err := cartsync.New(snapshot.NewStore(b.kv, cfg.Storage.Key), gw, opts...)
	if err != nil {
		return errors.Wrap(err, "create cart controller")
	}
	// A failed initial fetch is kept on the view; the agent still serves.
	if err := ctrl.Load(zctx.Base(ctx, lg)); err != nil {
		lg.Error("Initial cart load failed", zap.Error(err))
	}

	coupons, err := couponValidator(cfg, b)
	if err != nil {
		return err
	}

	healthSvc := health.New()
	if b.pinger != nil {
		healthSvc.Add(health.Readiness, cfg.Storage.Backend, 3*time.Second, health.PingCheck(b.pinger))
	}
	if b.pool != nil && b.pinger != health.Pinger(b.pool) {
		healthSvc.Add(health.Readiness, "postgres", 3*time.Second, health.PingCheck(b.pool))
	}
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.HeaderAPIKey, httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	}
	if len(cfg.Auth.APIKeyHashes) > 0 {
		auth, err := handler.APIKeyAuth([]byte(cfg.Auth.Pepper), cfg.Auth.APIKeyHashes...)
		if err != nil {
			return errors.Wrap(err, "configure API key auth")
		}
		middlewares = append(middlewares, auth)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(ctrl, coupons).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Signed in mutations wait for the order service and a refetch.
		WriteTimeout:   2*cfg.Gateway.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux, middlewares...),
			"cart-agent",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}
