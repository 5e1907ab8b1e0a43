package app

import (
	"docharvest/internal/controllers"
	"docharvest/internal/middleware"
	"docharvest/internal/ratelimit"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

func SetupMappings(app *Application) {
	authed := app.Engine.Group("", middleware.AuthMiddleware(app.Validator))
	{
		authed.POST("/extract",
			middleware.RateLimitExtract(app.RateLimiter, ratelimit.Bucket(app.Config.RateLimit.Extract)),
			controllers.NewExtractController(app.Extractions).Handle)
	}

	app.Engine.GET("/health", controllers.NewHealthController(Version).Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
