package routes

import "github.com/gin-gonic/gin"

func Health(r *gin.RouterGroup) {
	r.GET("/healthz", func(c *gin.Context) {
		msg := c.Query("ping")
		if msg == "" {
			msg = "pong"
		}

		c.JSON(200, gin.H{
			"message": msg,
		})
	})
}
