// internal/api/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/stackvity/loan-verify/internal/api/handlers"
)

// SetupRouter registers every HTTP endpoint this service exposes (spec §6).
func SetupRouter(r *gin.Engine, verifyHandler *handlers.VerifyHandler, healthHandler *handlers.HealthHandler) {
	v1 := r.Group("/v1")
	{
		v1.GET("/health", healthHandler.HealthCheck)
		v1.POST("/verify", verifyHandler.Upload)
		v1.POST("/kafka/verify", verifyHandler.Kafka)
	}
}
