package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/grafeo/grafeo-api/docs"
	"github.com/grafeo/grafeo-api/internal/api/handler"
	"github.com/grafeo/grafeo-api/internal/api/middleware"
	"github.com/grafeo/grafeo-api/internal/core/domain"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Auth     ports.AuthService
	Users    ports.UserService
	Sessions ports.SessionAuthenticator
	Mongo    *mongo.Database
	Redis    *redis.Client // optional
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("grafeo"))
	e.Use(requestLogger(deps.Log))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	auth := e.Group("/api/auth")
	auth.POST("/signin", authHandler.SignIn)
	auth.POST("/fb/login", authHandler.FederatedSignIn)
	auth.POST("/demo/signin", authHandler.DemoSignIn)
	auth.POST("/signup", authHandler.SignUp)

	// --- User routes ---
	userHandler := handler.NewUserHandler(deps.Users)
	users := e.Group("/api/users")
	users.GET("/checkUsernameAvailability", userHandler.CheckUsernameAvailability)
	users.GET("/checkEmailAvailability", userHandler.CheckEmailAvailability)

	me := users.Group("/me", middleware.Auth(deps.Sessions), middleware.RequireRole(deps.Sessions, domain.RoleUser))
	me.GET("", userHandler.Me)
	me.POST("", userHandler.UpdateProfile)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger writes one structured line per request through zerolog.
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
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency.Round(time.Microsecond)).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
