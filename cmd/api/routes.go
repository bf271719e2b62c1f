package main

import (
	"database/sql"
	"time"

	"companion-platform/internal/httpapi"
	"companion-platform/internal/rbac"
	"companion-platform/internal/wallet"
	"companion-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// AUTH routes (token issuance) stay outside the auth middleware.
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		// BOOKING routes: customers create, companions confirm, both can
		// cancel and run the call lifecycle.
		bookings := v1.Group("/bookings")
		{
			// Creation is gated on the client's quoted estimate: the
			// X-Wallet-Id / X-Estimated-Cost-Minor / X-Currency headers
			// must cover the booking or the request stops with 402.
			bookings.POST("", rbac.RequireAnyRole(rbac.RoleCustomer), wallet.RequireSufficientBalance(h.Wallet), h.CreateBooking)
			bookings.GET("", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion), h.ListBookings)
			bookings.GET("/:booking_id", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion, rbac.RoleSupport), h.GetBooking)
			bookings.POST("/:booking_id/confirm", rbac.RequireAnyRole(rbac.RoleCompanion), h.ConfirmBooking)
			bookings.POST("/:booking_id/cancel", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion), h.CancelBooking)

			// Call lifecycle.
			bookings.GET("/:booking_id/call-status", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion), h.CallStatus)
			bookings.POST("/:booking_id/presence", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion), h.RegisterPresence)
			bookings.POST("/:booking_id/presence/heartbeat", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion), h.HeartbeatPresence)
			bookings.POST("/:booking_id/accept", rbac.RequireAnyRole(rbac.RoleCompanion), h.AcceptCall)
			bookings.POST("/:booking_id/call/ended", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion), h.CallEnded)
		}

		// WALLET routes
		walletGroup := v1.Group("/wallet")
		walletGroup.Use(rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion))
		{
			walletGroup.GET("/balance", h.GetWalletBalance)
			walletGroup.POST("/topup", h.Topup)
		}

		// REPORT routes
		reports := v1.Group("/reports")
		{
			reports.GET("/bookings", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion, rbac.RoleSupport), h.BookingsSummary)
			reports.GET("/spend", rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleCompanion), h.SpendSummary)
			reports.GET("/earnings", rbac.RequireAnyRole(rbac.RoleCompanion), h.CompanionEarnings)
		}

		// ADMIN routes
		// Hidden trust_ops is intentionally NOT included unless explicitly desired.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleSuperAdmin))
		{
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
			admin.POST("/wallets/manual-credit", h.AdminManualCredit)
		}
	}
}
