package app

import (
	"time"

	"corptrain_backend/docs"
	"corptrain_backend/internal/config"
	"corptrain_backend/internal/middleware"
	"corptrain_backend/internal/model"
	"corptrain_backend/pkg/monitoring"
	"corptrain_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由，按用户限流
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	authGroup := router.Group("/api")
	authGroup.Use(
		middleware.AuthMiddleware(cfg),
		security.RateLimiter(cfg.RateLimit.MaxRequests, window, security.ByUser(middleware.CurrentUserID)),
	)
	{
		// 学员作答接口
		a.registerStudentRoutes(authGroup, c)

		// 培训师接口
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	exercises := rg.Group("/exercises")
	{
		exercises.POST("/:id/attempts", c.attempt.StartAttempt)
		exercises.GET("/:id/attempts", c.attempt.ListMyAttempts)
	}

	attempts := rg.Group("/attempts")
	{
		attempts.GET("/:attemptId", c.attempt.GetAttempt)
		attempts.POST("/:attemptId/answers", c.attempt.SubmitAnswer)
		attempts.POST("/:attemptId/complete", c.attempt.CompleteAttempt)
		attempts.POST("/:attemptId/abandon", c.attempt.AbandonAttempt)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
	{
		teacher.POST("/exercises", c.exercise.CreateExercise)
		teacher.GET("/exercises", c.exercise.ListExercises)
		teacher.GET("/exercises/:id", c.exercise.GetExercise)
		teacher.PUT("/exercises/:id/type", c.exercise.ChangeType)
		teacher.GET("/exercises/:id/stats", c.exercise.GetStats)
		teacher.GET("/attempts/:attemptId", c.exercise.ReviewAttempt)
	}
}
