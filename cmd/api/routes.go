package main

import (
	"callaudit-platform/internal/httpapi"
	"callaudit-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Telephony webhooks (public).
	// NOTE: This endpoint should be protected by source signature validation in production.
	r.POST("/webhooks/calls", h.IngestWebhook)

	// Token issuance.
	r.POST("/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		callsGroup := v1.Group("/calls")
		callsGroup.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor, rbac.RoleOperator))
		{
			callsGroup.GET("/:call_id", h.GetCall)
			callsGroup.GET("/:call_id/report", h.GetReport)
		}

		// Retry re-enters the pipeline; agents cannot trigger it.
		retry := v1.Group("/calls/:call_id/retry")
		retry.Use(rbac.RequireAnyRole(rbac.RoleSupervisor, rbac.RoleOperator))
		{
			retry.POST("", h.RetryCall)
		}

		// Aggregated pipeline/quality metrics.
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleSupervisor, rbac.RoleOperator))
		{
			reports.GET("/summary", h.GetSummary)
		}

		// Batch trigger for operators and schedulers.
		audits := v1.Group("/audits")
		audits.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		{
			audits.POST("/batch", h.RunBatch)
		}
	}
}
