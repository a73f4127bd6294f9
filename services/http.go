package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	log "github.com/sirupsen/logrus"

	_ "github.com/scix-archive/gateway_api/docs"
	"github.com/scix-archive/gateway_api/services/handlers"
	"github.com/scix-archive/gateway_api/shared"
)

// HttpService owns the public fiber app: the page-route middleware chain and
// the session/identity API.
type HttpService struct {
	context.DefaultService

	sessionHandler *handlers.SessionHandler
	healthHandler  *handlers.HealthHandler
	authHandler    *handlers.AuthHandler

	// middleware handlers are injected by the runtime to avoid a package
	// cycle between services and middleware
	pageMiddleware []fiber.Handler
	port           int
	server         *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

// UsePageMiddleware registers handlers that run ahead of every route, in
// order. Must be called before Start.
func (svc *HttpService) UsePageMiddleware(h ...fiber.Handler) {
	svc.pageMiddleware = append(svc.pageMiddleware, h...)
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	redisSvc := svc.Service(REDIS_SVC).(*RedisService)
	sessionSvc := svc.Service(SESSION_STORE_SVC).(*SessionStoreService)
	flagSvc := svc.Service(FEATURE_FLAG_SVC).(*FeatureFlagService)
	cookieSvc := svc.Service(COOKIE_SESSION_SVC).(*CookieSessionService)
	accountSvc := svc.Service(ACCOUNT_SVC).(*AccountService)
	pgSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	monitoringSvc := svc.Service(MONITORING_SVC).(*MonitoringService)

	svc.sessionHandler = handlers.NewSessionHandler(sessionSvc, flagSvc, cookieSvc, pgSvc)
	svc.healthHandler = handlers.NewHealthHandler(redisSvc, sessionSvc, flagSvc)
	svc.authHandler = handlers.NewAuthHandler(cookieSvc, accountSvc, sessionSvc, flagSvc, pgSvc)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowCredentials: true,
	}))
	app.Use(MonitoringMiddleware(monitoringSvc))
	for _, h := range svc.pageMiddleware {
		app.Use(h)
	}

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/api/health", svc.healthHandler.Health)
	app.Get("/api/user", svc.authHandler.User)
	app.Post("/api/auth/logout", svc.authHandler.Logout)

	app.All("/api/sessions", methodOnly(fiber.MethodGet, svc.sessionHandler.ListSessions))
	app.All("/api/sessions/revoke", methodOnly(fiber.MethodPost, svc.sessionHandler.RevokeSession))
	app.All("/api/sessions/revoke-all", methodOnly(fiber.MethodPost, svc.sessionHandler.RevokeAllSessions))

	// everything else is a page route; the upstream UI renders it
	app.All("/*", svc.page)

	svc.server = app

	log.WithField("port", svc.port).Info("HTTP server starting")
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// methodOnly answers 405 with the stable error code for any verb other than
// the one the endpoint supports.
func methodOnly(method string, handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != method {
			return shared.ResponseError(c, fiber.StatusMethodNotAllowed, shared.ErrCodeMethodNotAllowed)
		}
		return handler(c)
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")
	return shared.ResponseOK(c, "pong")
}

func (svc *HttpService) page(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

// errorHandler is the last line of defense: translate AppErrors into their
// stable codes, everything else into internal-error without leaking detail.
func errorHandler(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseError(c, appErr.StatusCode, appErr.Code)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code == fiber.StatusMethodNotAllowed {
			return shared.ResponseError(c, fiberErr.Code, shared.ErrCodeMethodNotAllowed)
		}
		if fiberErr.Code < fiber.StatusInternalServerError {
			return c.Status(fiberErr.Code).JSON(shared.APIError{Success: false, Error: fiberErr.Message})
		}
	}

	log.WithError(err).WithField("path", c.Path()).Error("Unhandled error")
	return shared.ResponseError(c, fiber.StatusInternalServerError, shared.ErrCodeInternalError)
}
