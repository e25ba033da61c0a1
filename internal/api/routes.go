package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	AllowedOrigins []string

	// Serve locally stored uploads from StaticDir at StaticPath. Empty
	// StaticDir disables it.
	StaticPath string
	StaticDir  string
}

// NewRouter builds the engine with logging, recovery and CORS and registers
// the listing routes.
func NewRouter(handler *Handler, cfg RouterConfig, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	if cfg.StaticDir != "" {
		router.Static(cfg.StaticPath, cfg.StaticDir)
	}

	SetupRoutes(router, handler)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	allowed := map[string]bool{}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
		if origin != "" {
			allowed[origin] = true
		}
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		return allowed[origin]
	}
	return cfg
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// /produtos is the path existing clients use
	for _, prefix := range []string{"/produtos", "/api/listings"} {
		group := router.Group(prefix)
		{
			group.POST("", handler.CreateListing)
			group.GET("", handler.ListListings)
			group.GET("/:id", handler.GetListing)
			group.PUT("/:id", handler.UpdateListing)
			group.DELETE("/:id", handler.DeleteListing)
		}
	}
}
