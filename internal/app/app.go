package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/cache"
	"smartsurvey/internal/config"
	"smartsurvey/internal/flow"
	"smartsurvey/internal/platform/logger"
	"smartsurvey/internal/repository"
	"smartsurvey/internal/service"
	"smartsurvey/internal/transport/rest"
	"smartsurvey/internal/transport/ws"
)

// App owns every long-lived dependency of the server
type App struct {
	Config   *config.Config
	AIConfig *config.AIConfig
	Log      *logger.Logger

	Mongo *mongo.Client
	Redis *redis.Client

	SurveyRepo   repository.SurveyRepo
	ResponseRepo repository.ResponseRepo
	SessionCache cache.SessionCache
	LiveCache    cache.LiveProgressCache
	Responses    *cache.ResponseCache

	Auth     *service.AuthService
	Surveys  *service.SurveyService
	Sessions *service.SessionService
	Hub      *ws.Hub
}

// New connects to MongoDB and Redis and wires the services
func New(ctx context.Context, cfg *config.Config, aiCfg *config.AIConfig, log *logger.Logger) (*App, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Info("connected to mongodb", "db", cfg.MongoDB)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = mongoClient.Disconnect(ctx)
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	a := &App{
		Config:   cfg,
		AIConfig: aiCfg,
		Log:      log,
		Mongo:    mongoClient,
		Redis:    rdb,
	}
	a.wire()
	return a, nil
}

func (a *App) wire() {
	db := a.Mongo.Database(a.Config.MongoDB)
	a.SurveyRepo = repository.NewSurveyRepo(db, a.Log.With("component", "survey_repo"))
	a.ResponseRepo = repository.NewResponseRepo(db, a.Log.With("component", "response_repo"))
	a.SessionCache = cache.NewSessionCache(a.Redis, a.Config.SessionTTL)
	a.LiveCache = cache.NewLiveProgressCache(a.Redis)
	a.Responses = cache.NewResponseCache(a.store(), a.Log.With("component", "response_cache"))

	provider := ai.NewProvider(a.AIConfig, &http.Client{})
	gateway := ai.NewGateway(a.AIConfig, provider, a.Log.With("component", "ai"))
	if !a.AIConfig.IsEnabled() {
		a.Log.Warn("ai api key not set, every ai call falls back", "provider", a.AIConfig.Provider)
	}

	graphs := service.NewGraphRegistry(a.Log.With("component", "graphs"))
	ttl := a.Config.AICacheTTL

	a.Auth = service.NewAuthService(a.Config)
	a.Surveys = service.NewSurveyService(a.SurveyRepo, a.ResponseRepo, graphs, gateway, a.Responses, ttl, a.Log.With("component", "surveys"))
	a.Surveys.SetLiveProgress(a.LiveCache)

	a.Sessions = service.NewSessionService(
		a.SurveyRepo,
		a.ResponseRepo,
		a.SessionCache,
		graphs,
		flow.NewResolver(a.Log.With("component", "resolver")),
		service.NewAdaptiveInserter(gateway, a.Responses, ttl, a.Log.With("component", "adaptive")),
		service.NewValidationPolicy(gateway, a.Responses, ttl, a.Log.With("component", "validation")),
		a.Log.With("component", "sessions"),
	)
	a.Sessions.SetLiveProgress(a.LiveCache)

	a.Hub = ws.NewHub(a.Log.With("component", "ws"))
	a.Sessions.SetPublisher(a.Hub)
}

// store picks the AI response cache backend
func (a *App) store() cache.Store {
	switch a.Config.CacheBackend {
	case "memory":
		return cache.NewMemoryStore()
	case "tiered":
		return cache.NewTieredStore(cache.NewMemoryStore(), cache.NewRedisStore(a.Redis), a.Config.AICacheTTL)
	default:
		return cache.NewRedisStore(a.Redis)
	}
}

// Router builds the HTTP API
func (a *App) Router() http.Handler {
	return rest.NewRouter(&rest.Container{
		AuthService:    a.Auth,
		SurveyService:  a.Surveys,
		SessionService: a.Sessions,
		WSHub:          a.Hub,
		Log:            a.Log.With("component", "http"),
		CORSOrigins:    a.Config.CORSAllowedOrigins,
	})
}

// Close waits for background verdict writes and releases connections
func (a *App) Close(ctx context.Context) {
	a.Sessions.Wait()
	a.Hub.Close()
	if err := a.Redis.Close(); err != nil {
		a.Log.Warn("close redis", "error", err)
	}
	if err := a.Mongo.Disconnect(ctx); err != nil {
		a.Log.Warn("disconnect mongo", "error", err)
	}
}
