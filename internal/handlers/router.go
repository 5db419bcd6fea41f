package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/config"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/services"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/utils"
)

type HandlerManager struct {
	mockTestHandler *MockTestHandler
	serviceManager  services.ServiceManager
	authMiddleware  *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	return &HandlerManager{
		mockTestHandler: NewMockTestHandler(serviceManager.MockTest(), serviceManager.Export(), logger),
		serviceManager:  serviceManager,
		authMiddleware:  NewCasdoorAuthMiddleware(casdoorConfig),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		tests := v1.Group("/mock-tests")
		{
			tests.POST("", hm.mockTestHandler.CreateTest)
			tests.GET("", hm.mockTestHandler.ListTests)
			tests.GET("/export", hm.mockTestHandler.ExportTests)
			tests.GET("/:id", hm.mockTestHandler.GetTest)
			tests.POST("/:id/sections/:section/start", hm.mockTestHandler.StartSection)
			tests.POST("/:id/sections/:section/submit", hm.mockTestHandler.SubmitSection)
			tests.POST("/:id/abandon", hm.mockTestHandler.AbandonTest)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "mocktest-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
