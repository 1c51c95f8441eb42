package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/janhq/evaluator-server/docs/swagger"
	"github.com/janhq/evaluator-server/internal/config"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/requests"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/responses"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/routes"
	"github.com/janhq/evaluator-server/pkg/observability"
	obsmiddleware "github.com/janhq/evaluator-server/pkg/observability/middleware"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck checks one dependency for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ReadinessChecks is the set of checks run by /readyz.
type ReadinessChecks []ReadinessCheck

// HTTPServer is the HTTP server for the evaluator API.
type HTTPServer struct {
	cfg    *config.Config
	engine *gin.Engine
	log    zerolog.Logger
}

// New creates a new HTTP server.
func New(
	cfg *config.Config,
	log zerolog.Logger,
	routeProvider *routes.Provider,
	obs *observability.Provider,
	checks ReadinessChecks,
) *HTTPServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	requests.RegisterValidators()

	engine := gin.New()
	engine.Use(gin.Recovery())

	// Apply middlewares in order
	engine.Use(middlewares.RequestID())
	if obs != nil {
		engine.Use(obsmiddleware.Tracing(obs.Tracer, obs.Meter, cfg.ServiceName))
	}
	engine.Use(middlewares.Metrics())
	engine.Use(middlewares.CORS(middlewares.DefaultCORSConfig()))
	engine.Use(middlewares.RequestLogger(log))

	// Public routes (no auth)
	registerCoreRoutes(engine, cfg, checks)

	routeProvider.Register(engine)

	return &HTTPServer{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

// Engine exposes the gin engine, mainly for tests.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *HTTPServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr()).Msg("HTTP server listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func registerCoreRoutes(engine *gin.Engine, cfg *config.Config, checks ReadinessChecks) {
	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.ServiceName,
			"status":  "ok",
		})
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, responses.StatusResponse{Status: "healthy"})
	})

	engine.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		resp := responses.StatusResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "not_ready"
				resp.Checks[check.Name] = err.Error()
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
		c.JSON(status, resp)
	})

	// Prometheus metrics endpoint
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
