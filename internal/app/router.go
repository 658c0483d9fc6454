package app

import (
	"lesson_bundle_backend/docs"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/middleware"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// public
	router.GET("/api/health", c.health.HealthCheck)

	// authenticated
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// students
		a.registerStudentRoutes(authGroup, c)

		// teachers
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	learner := rg.Group("")
	learner.Use(middleware.RoleMiddleware(model.Student, model.Teacher))
	{
		// quizzes
		learner.GET("/quizzes/:id", c.quiz.GetQuiz)
		learner.POST("/quizzes/:id/submit", c.quiz.SubmitQuiz)
		learner.GET("/quizzes/:id/manual", c.quiz.GetManualQuestions)
		learner.GET("/quizzes/:id/attempts", c.quiz.ListAttempts)

		// badges / note views
		learner.GET("/badges", c.learner.ListBadges)
		learner.POST("/notes/:id/views", c.learner.RecordNoteView)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/bundles", c.bundle.CreateBundle)
		teacher.GET("/bundles", c.bundle.ListBundles)
		teacher.GET("/bundles/:id", c.bundle.GetBundle)
		teacher.PATCH("/bundles/:id", c.bundle.UpdateBundle)
		teacher.PUT("/bundles/:id/status", c.bundle.SetStatus)
		teacher.DELETE("/bundles/:id", c.bundle.DeleteBundle)
		teacher.POST("/bundles/:id/duplicate", c.bundle.DuplicateBundle)
		teacher.POST("/bundles/:id/resources/:rid", c.bundle.AttachResource)
		teacher.DELETE("/bundles/:id/resources/:rid", c.bundle.DetachResource)
	}
}
