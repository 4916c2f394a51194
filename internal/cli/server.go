package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"chaos-story-service/internal/app"
	"chaos-story-service/internal/config"
	"chaos-story-service/internal/infra/gemini"
	"chaos-story-service/internal/infra/memory"
	"chaos-story-service/internal/infra/mongo"
	"chaos-story-service/internal/infra/postgres"
	redisinfra "chaos-story-service/internal/infra/redis"
	"chaos-story-service/internal/scene"
	transport "chaos-story-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the story server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// deps holds the clients opened for one server run.
type deps struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	mongo   *mongodriver.Client
	gen     *gemini.SceneGenerator
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &deps{}
	defer d.close()
	if err := d.open(ctx, cfg, logger); err != nil {
		return err
	}

	lockTimeout := config.TTLDuration(cfg.Engine.LockTimeout, memory.DefaultLockTimeout)
	sceneTimeout := config.TTLDuration(cfg.Gemini.Timeout, scene.DefaultTimeout)
	service := app.NewChaosService(
		buildStore(cfg, d),
		buildLocker(cfg, d, lockTimeout),
		buildScenes(cfg, d, sceneTimeout, logger),
		buildIdentity(cfg, d),
		app.Options{LeaderboardSize: cfg.Engine.LeaderboardSize, Logger: logger},
	)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(lockTimeout, sceneTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting chaos story service", "port", finalPort, "store", cfg.StoreBackend())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// writeTimeout leaves room for the slowest mutation: a vote waits on up to
// three locks, a choice on one lock and one generator call.
func writeTimeout(lockTimeout, sceneTimeout time.Duration) time.Duration {
	worst := 3 * lockTimeout
	if choice := lockTimeout + sceneTimeout; choice > worst {
		worst = choice
	}
	return worst + 5*time.Second
}

func (d *deps) open(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = d.redis.Close() })
	}

	if cfg.StoreBackend() == config.BackendPostgres {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
		d.closers = append(d.closers, pool.Close)
	}

	if cfg.StoreBackend() == config.BackendMongo {
		client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		d.mongo = client
		d.closers = append(d.closers, func() { _ = client.Disconnect(context.Background()) })
	}

	if cfg.Gemini.APIKey != "" {
		gen, err := gemini.NewSceneGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return err
		}
		d.gen = gen
		d.closers = append(d.closers, func() { _ = gen.Close() })
	} else {
		logger.Warn("gemini api key not configured, every scene uses the fallback")
	}
	return nil
}

func buildStore(cfg config.Config, d *deps) app.Store {
	switch cfg.StoreBackend() {
	case config.BackendRedis:
		return redisinfra.NewStore(d.redis)
	case config.BackendPostgres:
		return postgres.NewStore(d.pool)
	case config.BackendMongo:
		database := cfg.Mongo.Database
		if database == "" {
			database = "chaos_story"
		}
		return mongo.NewStore(d.mongo, database)
	}
	return memory.NewStore()
}

// buildLocker prefers redis whenever it is reachable so several instances
// can share one store.
func buildLocker(cfg config.Config, d *deps, timeout time.Duration) app.Locker {
	if d.redis != nil {
		return redisinfra.NewLocker(d.redis, config.TTLDuration(cfg.Engine.LockTTL, redisinfra.DefaultLockTTL), timeout)
	}
	return memory.NewLocker(timeout)
}

func buildScenes(cfg config.Config, d *deps, timeout time.Duration, logger *slog.Logger) *scene.Builder {
	var gen scene.Generator = scene.NopGenerator{}
	if d.gen != nil {
		gen = d.gen
	}
	return scene.NewBuilder(gen, scene.Options{
		Timeout:           timeout,
		EndingThreshold:   cfg.Engine.EndingThreshold,
		EndingProbability: cfg.Engine.EndingProbability,
		Seed:              cfg.Engine.Seed,
		Logger:            logger,
	})
}

func buildIdentity(cfg config.Config, d *deps) app.IdentityProvider {
	directory := memory.NewStaticDirectory(cfg.Identity.Names)
	ttl := config.TTLDuration(cfg.Identity.TTL, 10*time.Minute)
	if d.redis != nil {
		return redisinfra.NewIdentityCache(d.redis, directory, ttl)
	}
	return memory.NewIdentityCache(directory, ttl)
}
