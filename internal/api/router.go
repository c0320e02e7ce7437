package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gatherly-dev/gatherly/internal/api/handlers"
	"github.com/gatherly-dev/gatherly/internal/api/middleware"
	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/config"
	"github.com/gatherly-dev/gatherly/internal/metrics"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/service"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	DB            *gorm.DB
	Authenticator auth.Authenticator
	Directory     *service.DirectoryService
	Roles         *service.RoleService
	Catalog       *service.CatalogService
	RSVPs         *service.RSVPService
	Dashboard     *service.DashboardService
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.RegisterValidators()

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	authHandler := handlers.NewAuthHandler(d.Directory, d.Authenticator)
	eventHandler := handlers.NewEventHandler(d.Catalog, d.RSVPs)
	categoryHandler := handlers.NewCategoryHandler(d.Catalog)
	dashboardHandler := handlers.NewDashboardHandler(d.Dashboard)
	adminHandler := handlers.NewAdminHandler(d.DB, d.Roles)

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", handlers.HealthCheck)
		public.GET("/version", handlers.GetVersion)

		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/activate/:id/:token", authHandler.Activate)

		public.GET("/home", eventHandler.Home)
		public.GET("/events", eventHandler.ListEvents)
		public.GET("/events/:id", eventHandler.GetEvent)
		public.GET("/categories", categoryHandler.ListCategories)
		public.GET("/categories/:id", categoryHandler.GetCategory)
	}

	// Protected routes (require an active, authenticated user)
	protected := router.Group("/api/v1")
	protected.Use(d.Authenticator.Middleware())
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.PUT("/auth/me", authHandler.UpdateMe)
		protected.POST("/auth/password", authHandler.ChangePassword)
		protected.GET("/me/dashboard", authHandler.MyDashboard)
		protected.GET("/me/rsvps", eventHandler.MyRSVPs)

		protected.GET("/events/:id/rsvp", eventHandler.GetRSVP)
		protected.POST("/events/:id/rsvp", eventHandler.RSVP)
		protected.DELETE("/events/:id/rsvp", eventHandler.CancelRSVP)

		protected.POST("/events", middleware.RequirePermission(models.PermAddEvent), eventHandler.CreateEvent)
		protected.PUT("/events/:id", middleware.RequirePermission(models.PermChangeEvent), eventHandler.UpdateEvent)
		protected.DELETE("/events/:id", middleware.RequirePermission(models.PermDeleteEvent), eventHandler.DeleteEvent)
		protected.GET("/events/:id/participants", middleware.RequirePermission(models.PermViewEvent), eventHandler.ListParticipants)

		protected.POST("/categories", middleware.RequirePermission(models.PermAddCategory), categoryHandler.CreateCategory)
		protected.PUT("/categories/:id", middleware.RequirePermission(models.PermChangeCategory), categoryHandler.UpdateCategory)
		protected.DELETE("/categories/:id", middleware.RequirePermission(models.PermDeleteCategory), categoryHandler.DeleteCategory)

		protected.GET("/dashboard", middleware.RequirePermission(models.PermViewEvent), dashboardHandler.GetDashboard)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users/:id/role", adminHandler.AssignRole)
			admin.GET("/roles", adminHandler.ListRoles)
			admin.POST("/roles", adminHandler.CreateRole)
			admin.GET("/permissions", adminHandler.ListPermissions)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
		}
	}

	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	logger.Info("API router initialized", "mode", cfg.Server.Mode)
	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
