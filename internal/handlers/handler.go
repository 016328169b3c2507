package handlers

import (
	"street_trees/internal/logger"
	"street_trees/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Outbound notifications (HTTP upgrade), same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerFilterRoutes(api)
		h.registerResultRoutes(api)
		h.registerAnimationRoutes(api)
		h.registerLogRoutes(api)
		api.GET("/me", h.getMe)
	}
}

func (h *Handler) registerFilterRoutes(api *gin.RouterGroup) {
	filters := api.Group("/filters")
	{
		filters.GET("", h.getFilters)
		// Body example: {"name":"Linde"}
		filters.PUT("/category", h.selectCategory)
		filters.DELETE("/category", h.clearCategory)
		// Body example: {"min":20,"max":120}
		filters.PUT("/range", h.changeRange)
		// Body: {"ring":[{"lon":..,"lat":..},...]} or {"center":{"lon":..,"lat":..},"radius_km":0.5}
		filters.PUT("/region", h.drawRegion)
		filters.DELETE("/region", h.clearRegion)
		filters.PUT("/region/distance", h.setSearchDistance)
	}
}

func (h *Handler) registerResultRoutes(api *gin.RouterGroup) {
	api.GET("/summary", h.getSummary)
	api.GET("/histogram", h.getHistogram)
	api.GET("/species", h.getSpecies)
	api.GET("/view", h.getView)
}

func (h *Handler) registerAnimationRoutes(api *gin.RouterGroup) {
	anim := api.Group("/animation")
	{
		anim.GET("", h.getAnimation)
		// Body example: {"direction":"reverse"}; empty body plays forward
		anim.POST("/play", h.playAnimation)
		anim.POST("/stop", h.stopAnimation)
		anim.POST("/reset", h.resetAnimation)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
}
