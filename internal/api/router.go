package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/typeapproval/portal/docs"
	"github.com/typeapproval/portal/internal/api/handler"
	"github.com/typeapproval/portal/internal/api/middleware"
	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/core/rbac"
	"github.com/typeapproval/portal/internal/core/service"
	"github.com/typeapproval/portal/internal/infrastructure/backend"
	"github.com/typeapproval/portal/internal/infrastructure/http/handlers"
)

// Deps is everything the router needs from main.
type Deps struct {
	Log     zerolog.Logger
	Tokens  middleware.TokenStoreFactory
	Backend *backend.Client
	Audit   ports.AuditSink
	Checks  map[string]handlers.Check

	SignInPath  string
	SignInRate  rate.Limit
	SignInBurst int

	// Registerer and Gatherer default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

const (
	msgDirectorOnly = "Only directors can manage users."
	msgWorkflow     = "Your role does not allow access to certification workflows."
	msgContracts    = "Your role does not allow managing contracts."
	msgReference    = "Your role does not allow access to reference data."
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "portal",
		Registerer: d.Registerer,
	}))

	// --- Dependencies ---
	authService := service.NewAuthService(d.Backend, d.Audit, d.Log.With().Str("component", "auth").Logger())
	userService := service.NewUserAdminService(d.Audit, d.Log.With().Str("component", "users").Logger())
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	relay := handler.NewRelayHandler(d.Log.With().Str("component", "relay").Logger())

	session := middleware.Session(d.Tokens, d.Backend, d.Audit, d.Log.With().Str("component", "session").Logger())
	requireAuth := middleware.RequireAuth(d.SignInPath)
	limiter := signInLimiter(d.SignInRate, d.SignInBurst)

	// --- Health probes, metrics, docs (no session) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	auth := e.Group("/auth", session)
	auth.POST("/signin", authHandler.SignIn, limiter)
	auth.POST("/signup", authHandler.SignUp, limiter)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", authHandler.Session)

	// --- Protected API ---
	api := e.Group("/api", session, requireAuth)

	users := api.Group("/users", middleware.RequireRole(msgDirectorOnly, d.Audit, domain.RoleDirector))
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id/roles", userHandler.SetRoles)

	workflow := middleware.RequireForMethod(msgWorkflow, d.Audit, rbac.CanViewTasksAndContracts, rbac.CanModifyTasks)
	for _, prefix := range []string{"/tasks", "/declarations", "/certificates"} {
		api.Any(prefix, relay.Serve, workflow)
		api.Any(prefix+"/*", relay.Serve, workflow)
	}

	contracts := middleware.RequireForMethod(msgContracts, d.Audit, rbac.CanViewTasksAndContracts, rbac.CanManageContracts)
	api.Any("/contracts", relay.Serve, contracts)
	api.Any("/contracts/*", relay.Serve, contracts)

	reference := middleware.RequirePredicate(msgReference, d.Audit, rbac.CanUseSupportingEndpoints)
	api.Any("/reference", relay.Serve, reference)
	api.Any("/reference/*", relay.Serve, reference)

	return e
}

// signInLimiter throttles credential endpoints per client IP.
func signInLimiter(r rate.Limit, burst int) echo.MiddlewareFunc {
	if r <= 0 {
		r = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      r,
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
	})
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
