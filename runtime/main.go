package main

import (
	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/scix-archive/gateway_api/middleware"
	"github.com/scix-archive/gateway_api/services"
)

// @title SciX Gateway API
// @version 1.0
// @description Session, authentication and rate limiting gateway for the SciX archive UI
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	rateLimitMw := &middleware.RateLimitMiddleware{}
	authMw := &middleware.AuthMiddleware{}

	httpSvc := &services.HttpService{}
	httpSvc.UsePageMiddleware(rateLimitMw.Handler(), authMw.Handler())

	ctx, err := context.NewCtx(
		&services.FeatureFlagService{},
		&services.RedisService{},
		&services.PostgresService{},
		&services.CookieSessionService{},
		&services.AccountService{},
		&services.SessionStoreService{},
		&services.RateLimitService{},
		&services.MonitoringService{},

		rateLimitMw,
		authMw,

		httpSvc,
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
