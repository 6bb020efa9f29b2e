package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/handler/dto"
	"github.com/makkenzo/license-key-service/internal/handler/middleware"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"github.com/makkenzo/license-key-service/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Licenses   *service.LicenseService
	Validation *service.ValidationService
	Auth       *service.AuthService
	Health     *HealthHandler
	Session    config.SessionConfig
	CORS       config.CORSConfig
	Logger     *zap.Logger
}

func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	appLogger := deps.Logger
	licenseHandler := NewLicenseHandler(deps.Licenses, appLogger)
	validateHandler := NewValidateHandler(deps.Validation, appLogger)
	authHandler := NewAuthHandler(deps.Auth, deps.Session, appLogger)

	authMiddleware := middleware.AuthMiddleware(deps.Auth, deps.Session.CookieName, appLogger)
	errorMiddleware := middleware.ErrorHandlerMiddleware(appLogger)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		appLogger.Error(logMsg, zap.Stack("stack"))

		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.APIErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: ierr.ErrInternalServer.Error(),
		})
	}))

	origins := deps.CORS.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	corsConfig := cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.MetricsMiddleware())
	router.Use(errorMiddleware)

	if deps.Health != nil {
		router.GET("/health", deps.Health.Check)
		router.GET("/healthz", deps.Health.Check)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/validate", validateHandler.Validate)
		api.POST("/login", authHandler.Login)
		api.GET("/logout", authHandler.Logout)
		api.POST("/logout", authHandler.Logout)
		api.GET("/session", authMiddleware, authHandler.Session)

		admin := api.Group("/admin")
		admin.Use(authMiddleware)
		{
			admin.POST("/generate", licenseHandler.Generate)
			admin.GET("/keys", licenseHandler.List)
			admin.POST("/revoke", licenseHandler.Revoke)
			admin.POST("/delete", licenseHandler.Delete)
			admin.DELETE("/keys/:key", licenseHandler.Delete)
			admin.GET("/stats", licenseHandler.Stats)
			admin.POST("/stats/reconcile", licenseHandler.Reconcile)
		}
	}

	return router, nil
}
