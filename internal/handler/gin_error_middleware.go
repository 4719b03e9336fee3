package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CustomErrorMiddleware логирует ошибки обработчиков и отдает страницы 404/500,
// если обработчик сам ничего не записал.
func CustomErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors {
				meta, _ := ginErr.Meta.(string)
				logger.Error("Handler error",
					zap.Error(ginErr.Err),
					zap.String("meta", meta),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
			}
			if !c.Writer.Written() {
				c.HTML(http.StatusInternalServerError, "500.html", errorPage{Title: "Error"})
			}
			return
		}

		status := c.Writer.Status()
		if status == http.StatusNotFound && !c.Writer.Written() {
			c.HTML(http.StatusNotFound, "404.html", errorPage{Title: "Not found"})
			return
		}

		if status >= http.StatusInternalServerError {
			logger.Warn("Request resulted in server error status",
				zap.Int("status", status),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			)
		}
	}
}
