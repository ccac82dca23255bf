// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/api/handlers"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/api/middleware"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	TaxService      *service.TaxService
	QuoteService    *service.QuoteService
	SnapshotService *service.SnapshotService
	PlanningService *service.PlanningService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:8080", "http://127.0.0.1:8080"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services == nil {
		return router
	}

	if services.TaxService != nil {
		taxHandler := handlers.NewTaxHandler(services.TaxService, services.SnapshotService)
		taxGroup := apiGroup.Group("/tax")
		{
			taxGroup.POST("/lookup", taxHandler.Lookup)
			taxGroup.GET("/rules", taxHandler.GetRules)
			taxGroup.POST("/rules", taxHandler.SaveRules)
			taxGroup.POST("/rules/hydrate", taxHandler.Hydrate)
			taxGroup.POST("/rules/sync", taxHandler.Sync)
			taxGroup.POST("/snapshots", taxHandler.ExportSnapshot)
			taxGroup.POST("/snapshots/import", taxHandler.ImportSnapshot)
		}
	}

	if services.QuoteService != nil {
		quoteHandler := handlers.NewQuoteHandler(services.QuoteService)

		apiGroup.POST("/rates/compute", quoteHandler.ComputeRates)
		apiGroup.GET("/scenarios/timeline", quoteHandler.Timeline)
		apiGroup.POST("/optimizer", quoteHandler.Optimize)
		apiGroup.GET("/ncm/:code", quoteHandler.Classify)

		quoteGroup := apiGroup.Group("/quotes")
		{
			quoteGroup.POST("/rank", quoteHandler.Rank)
			quoteGroup.POST("/import", quoteHandler.ImportSuppliers)
			quoteGroup.GET("/template", quoteHandler.Template)
			quoteGroup.POST("/recipe-mix", quoteHandler.RecipeMix)
			quoteGroup.POST("/unit-price", quoteHandler.UnitPrice)
			quoteGroup.POST("/normalize", quoteHandler.Normalize)
			quoteGroup.POST("/impact", quoteHandler.Impact)
		}

		contractGroup := apiGroup.Group("/contracts")
		{
			contractGroup.GET("", quoteHandler.ListContracts)
			contractGroup.POST("", quoteHandler.AddContract)
		}
	}

	if services.PlanningService != nil {
		planningHandler := handlers.NewPlanningHandler(services.PlanningService)
		planningGroup := apiGroup.Group("/planning")
		{
			planningGroup.POST("/compare", planningHandler.Compare)
			planningGroup.POST("/items", planningHandler.Items)
			planningGroup.GET("/cnae/*code", planningHandler.CNAE)
			planningGroup.GET("/transition", planningHandler.Transition)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
