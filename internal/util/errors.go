package util

import (
	"github.com/gin-gonic/gin"

	"auctionharvester/internal/logger"
)

// SafeErrorResponse returns a JSON error response, logging details but only
// exposing the error text outside release mode
func SafeErrorResponse(c *gin.Context, log logger.Logger, statusCode int, userMessage string, err error) {
	if err != nil {
		log.Error("request failed",
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", statusCode),
			logger.Error(err))
	}

	response := gin.H{
		"success": false,
		"message": userMessage,
	}
	if gin.Mode() != gin.ReleaseMode && err != nil {
		response["error"] = err.Error()
	}

	c.JSON(statusCode, response)
}
