package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/webllm/renderify/internal/config"
	apihttp "github.com/webllm/renderify/internal/http"
	"github.com/webllm/renderify/internal/logging"
	"github.com/webllm/renderify/internal/middleware"
	"github.com/webllm/renderify/internal/monitoring"
	"github.com/webllm/renderify/internal/policy"
	"github.com/webllm/renderify/internal/quota"
	"github.com/webllm/renderify/internal/resolver"
	"github.com/webllm/renderify/internal/runtime"
	"github.com/webllm/renderify/internal/sandbox"
	"github.com/webllm/renderify/internal/store"
	"github.com/webllm/renderify/internal/ws"
)

// Server wraps the HTTP server and the engine's component graph.
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	httpSrv *http.Server
	pool    *sandbox.Pool
	log     *logging.Logger
}

// New builds the full component graph from configuration and wires the
// router. Nothing starts listening until Run.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	pol, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.New()
	metrics.PolicyProfile.WithLabelValues(string(pol.Profile)).Set(1)

	res := resolver.New(resolver.Config{
		CDNBase:          cfg.Resolver.CDNBase,
		IntegrityTimeout: cfg.Resolver.IntegrityTimeout,
		IntegrityRetries: cfg.Resolver.IntegrityRetries,
		Metrics:          metrics,
	}, log)

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.Runtime.MaxDeadline
	sandboxCfg.MaxCallStack = cfg.Sandbox.MaxCallStack
	pool, err := sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("sandbox pool: %w", err)
	}

	checker := policy.New(pol, log)
	mem := store.NewMemory()

	manager, err := runtime.NewManager(runtime.Options{
		DefaultDeadline:                cfg.Runtime.DefaultDeadline,
		MaxDeadline:                    cfg.Runtime.MaxDeadline,
		SupportedSpecVersions:          cfg.Runtime.SupportedSpecVersions,
		FailOnUnsupportedVersion:       cfg.Runtime.FailOnUnsupportedVersion,
		FailOnDependencyPreflightError: cfg.Runtime.FailOnDependencyPreflightError,
		PreflightRetries:               cfg.Runtime.PreflightRetries,
		PreflightBackoff:               cfg.Runtime.PreflightBackoff,
		PreflightTimeout:               cfg.Runtime.PreflightTimeout,
		ProbeFailureThreshold:          cfg.Runtime.ProbeFailureThreshold,
		ProbeQuarantine:                cfg.Runtime.ProbeQuarantine,
		FallbackBases:                  cfg.Resolver.FallbackBases,
		CDNBase:                        cfg.Resolver.CDNBase,
		AllowIsolationFallback:         cfg.Runtime.AllowIsolationFallback,
		IsolatedTierAvailable:          true,
		SandboxMode:                    cfg.Sandbox.Mode,
		SandboxFailClosed:              cfg.Sandbox.FailClosed,
		SupportedSandboxModes:          []string{"none", "worker", "iframe"},
	}, runtime.Deps{
		Store:         mem,
		Resolver:      res,
		Checker:       checker,
		Pool:          pool,
		SandboxConfig: sandboxCfg,
		Governor:      quota.NewTokenBucket(cfg.Quota.ExecutionsPerSecond, cfg.Quota.Burst),
		Metrics:       metrics,
		Log:           log,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	handlers := apihttp.NewHandlers(manager, mem, checker, res, pool, metrics, log)
	wsHandler := ws.NewHandler(manager, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", handlers.Metrics())

	v1 := router.Group("/v1")
	{
		v1.POST("/plans/execute", handlers.ExecutePlan)
		v1.POST("/plans/probe", handlers.ProbePlan)
		v1.POST("/plans/check", handlers.CheckPlan)
		v1.GET("/plans", handlers.ListPlans)
		v1.GET("/plans/:id", handlers.GetPlan)
		v1.GET("/plans/:id/state", handlers.GetPlanState)
		v1.POST("/plans/:id/events", handlers.DispatchEvent)
		v1.GET("/plans/:id/stream", wsHandler.HandleConnection)
		v1.POST("/modules/resolve", handlers.ResolveModule)
		v1.GET("/modules/source", handlers.ModuleSource)
	}

	return &Server{
		cfg:    cfg,
		router: router,
		pool:   pool,
		log:    log.Component("server"),
	}, nil
}

func buildPolicy(cfg *config.Config) (policy.Policy, error) {
	pol, err := policy.ForProfile(policy.Profile(cfg.Policy.Profile))
	if err != nil {
		return policy.Policy{}, err
	}

	pol.Limits.MaxImports = cfg.Policy.MaxImports
	pol.Limits.MaxComponentInvocations = cfg.Policy.MaxComponentInvocations
	pol.Limits.MaxExecutionMs = cfg.Policy.MaxExecutionMs

	if cfg.Policy.OverridesFile != "" {
		overrides, err := policy.LoadOverridesFile(cfg.Policy.OverridesFile)
		if err != nil {
			return policy.Policy{}, fmt.Errorf("policy overrides: %w", err)
		}
		pol = overrides.Apply(pol)
	}
	return pol, nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts listening and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.log.Info("listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and tears down the sandbox pool.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	if poolErr := s.pool.Close(); err == nil {
		err = poolErr
	}
	return err
}
