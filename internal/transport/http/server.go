package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gopherai-slides/internal/bootstrap"
	"gopherai-slides/internal/transport/http/handler"
	"gopherai-slides/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Log), gin.Recovery())
	router.Use(cors.New(corsConfig(app.Config.App.AllowedOrigins)))
	router.MaxMultipartMemory = int64(app.Config.Pipeline.MaxUploadMB) << 20

	checks := map[string]handler.Check{}
	for name, fn := range app.HealthChecks() {
		checks[name] = fn
	}
	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks)
	router.GET("/healthz", healthHandler.Check)

	if app.AssetsDir != "" {
		router.Static(app.Config.Assets.PublicBaseURL, app.AssetsDir)
	}

	presentationHandler := handler.NewPresentationHandler(app.Presentations, int64(app.Config.Pipeline.MaxUploadMB)<<20)
	questionHandler := handler.NewQuestionHandler(app.QA)
	scrapeHandler := handler.NewScrapeHandler(app.Scraper)

	v1 := router.Group("/api/v1")
	presentations := v1.Group("/presentations")
	presentations.POST("", presentationHandler.Create)
	presentations.GET("", presentationHandler.List)
	presentations.GET("/:id", presentationHandler.Get)
	presentations.DELETE("/:id", presentationHandler.Delete)

	v1.POST("/question", questionHandler.Ask)
	v1.POST("/scrape", scrapeHandler.Scrape)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
