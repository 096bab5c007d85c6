package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ggp-deploy/internal/handler"
)

func RegisterRoutes(r *gin.Engine, deployHandler *handler.DeployHandler, toolHandler *handler.ToolHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		deploy := api.Group("/deploy")
		{
			deploy.POST("", deployHandler.Deploy)
			deploy.GET("/stream", deployHandler.Stream)
		}

		api.POST("/terminate", deployHandler.Terminate)
		api.POST("/fetch", deployHandler.Fetch)
		api.GET("/tool/check", toolHandler.Check)
	}
}
