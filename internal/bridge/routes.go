package bridge

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes adds GET /status for a.
func RegisterRoutes(r gin.IRoutes, a *Adapter) {
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Status())
	})
}
