package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	AllowedOrigins []string
}

func SetupRouter(opts RouterOptions, roomController *RoomController, mediaController *MediaController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), Metrics())

	config := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = opts.AllowedOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.POST("", roomController.CreateRoom)
		rooms.GET("/:slug", roomController.GetRoom)
		rooms.GET("/:slug/ws", roomController.JoinRoom)
	}

	if mediaController != nil {
		api.POST("/upload", mediaController.Upload)
		api.POST("/generate", mediaController.Generate)
	}

	return router
}
