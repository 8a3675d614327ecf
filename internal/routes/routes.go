package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shop-backoffice/internal/handlers"
	"shop-backoffice/internal/middleware"
	"shop-backoffice/internal/models"
)

type Options struct {
	CORSOrigins []string
	JWTSecret   string
	// Limiter is nil when no redis is configured.
	Limiter   middleware.Counter
	RateLimit int
	Logger    *zap.Logger
}

func RegisterRoutes(router *gin.Engine, h *handlers.ProductHandler, opts Options) {
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(opts.Logger),
		cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimiter(opts.Limiter, opts.RateLimit, time.Minute, opts.Logger))
	}
	api.Use(middleware.AdminAuth(opts.JWTSecret))

	registerProducts(api.Group("/product"), h)
	registerProducts(api.Group("/v1/products"), h)
}

// registerProducts mounts the product endpoints under g: /product is the
// primary mount, /v1/products serves the same handlers.
func registerProducts(g *gin.RouterGroup, h *handlers.ProductHandler) {
	g.GET("", h.ListProducts)
	g.GET("/:id", h.GetProduct)

	simple := g.Group("/simple")
	simple.POST("", h.CreateProduct(models.TypeSimple))
	simple.PUT("/:id", h.UpdateProduct(models.TypeSimple))
	simple.DELETE("/:id", h.DeleteProduct(models.TypeSimple))
	simple.PATCH("/:id/quantity", h.SetQuantity)

	variable := g.Group("/variable")
	variable.POST("", h.CreateProduct(models.TypeVariable))
	variable.PUT("/:id", h.UpdateProduct(models.TypeVariable))
	variable.DELETE("/:id", h.DeleteProduct(models.TypeVariable))
	variable.PATCH("/:id/variations/:sku/quantity", h.SetVariationQuantity)
}
