package main

import (
	"chat-pipeline/internal/httpapi"
	"chat-pipeline/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway webhooks. Both paths accept every supported payload shape.
	r.POST("/webhook", h.Webhook)
	r.POST("/webhooks/whatsapp", h.Webhook)

	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/token", h.Token)
		authGroup.POST("/refresh", h.Refresh)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireOperator())

	anyRole := rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleAnalyst)
	operators := rbac.RequireAnyRole(rbac.RoleOperator)
	adminOnly := rbac.RequireAnyRole(rbac.RoleAdmin)

	conversations := v1.Group("/conversations")
	{
		conversations.POST("/:phone/reply", operators, h.ManualReply)
		conversations.GET("/:phone/history", anyRole, h.ConversationHistory)
	}

	campaigns := v1.Group("/campaigns")
	{
		campaigns.GET("/settings", anyRole, h.GetSettings)
		campaigns.PUT("/settings", adminOnly, h.PutSettings)

		campaigns.GET("/templates", anyRole, h.ListTemplates)
		campaigns.POST("/templates", operators, h.CreateTemplate)
		campaigns.PUT("/templates/:id", operators, h.UpdateTemplate)
		campaigns.DELETE("/templates/:id", operators, h.DeleteTemplate)

		campaigns.POST("/test", operators, h.TestCampaign)
		campaigns.GET("/history", anyRole, h.CampaignHistory)
		campaigns.GET("/stats", anyRole, h.CampaignStats)
		campaigns.GET("/types", anyRole, h.CampaignTypes)
		campaigns.GET("/variables", anyRole, h.CampaignVariables)
	}

	v1.GET("/gateway/state", operators, h.GatewayState)

	// ADMIN routes
	admin := v1.Group("/admin")
	admin.Use(adminOnly)
	{
		admin.GET("/audit", h.AuditLog)
	}
}
