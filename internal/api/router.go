package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/shopdesk-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware. Order matters: the API key gate runs after rate
	// limiting so key-less floods are throttled too, and before the JWT
	// group so user auth never sees unkeyed traffic.
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Use(s.apiKeyMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check and version (no user auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/system/version", s.handleVersion)

		// System metrics (no user auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Auth endpoints (no user auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/change-password", s.handleChangePassword)
			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Customer endpoints
			r.Route("/customers", func(r chi.Router) {
				r.Get("/", s.handleListCustomers)
				r.Post("/", s.handleCreateCustomer)
				r.Get("/search", s.handleSearchCustomers)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetCustomer)
					r.Patch("/", s.handleUpdateCustomer)
					r.Delete("/", s.handleDeleteCustomer)
					r.Get("/bookings", s.handleCustomerBookings)
					r.Get("/documents", s.handleCustomerDocuments)
					r.Get("/activity", s.handleCustomerActivity)
				})
			})

			// Booking endpoints
			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", s.handleListBookings)
				r.Post("/", s.handleCreateBooking)
				r.Get("/calendar", s.handleBookingCalendar)
				r.Get("/available-slots", s.handleAvailableSlots)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetBooking)
					r.Patch("/", s.handleUpdateBooking)
					r.Post("/cancel", s.handleCancelBooking)
				})
			})

			// Document submission endpoints
			r.Route("/documents", func(r chi.Router) {
				r.Get("/", s.handleListSubmissions)
				r.Post("/", s.handleCreateSubmission)
				r.Get("/search", s.handleSearchSubmissions)

				r.Route("/{submissionID}", func(r chi.Router) {
					r.Get("/", s.handleGetSubmission)
					r.Post("/scan", s.handleScanSubmission)
					r.Post("/files", s.handleUploadFile)

					r.Route("/files/{filename}", func(r chi.Router) {
						r.Get("/", s.handleGetFile)
						r.Delete("/", s.handleDeleteFile)
						r.Get("/versions", s.handleFileVersions)
					})
				})
			})

			// Messaging endpoints
			r.Route("/messages", func(r chi.Router) {
				r.Get("/", s.handleListMessages)
				r.Post("/send", s.handleSendMessage)
				r.Get("/conversations", s.handleConversations)
				r.Get("/thread/{threadID}", s.handleThread)
			})

			// Activity feed
			r.Get("/activity", s.handleRecentActivity)

			// Dashboard views
			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/stats", s.handleDashboardStats)
				r.Get("/activity", s.handleDashboardActivity)
				r.Get("/revenue", s.handleDashboardRevenue)
			})

			// Settings: reads for all staff, mutation is admin-only
			r.Route("/settings", func(r chi.Router) {
				r.Get("/services", s.handleListServices)
				r.Get("/working-hours", s.handleGetWorkingHours)
				r.Get("/system-prompt", s.handleGetSystemPrompt)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermSettingsManage))
					r.Post("/services", s.handleCreateService)
					r.Patch("/services/{id}", s.handleUpdateService)
					r.Delete("/services/{id}", s.handleDeactivateService)
					r.Put("/working-hours", s.handleSetWorkingHours)
					r.Put("/system-prompt", s.handleSetSystemPrompt)
				})
			})

			// User management (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermUserManage))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Patch("/", s.handleUpdateUser)
					r.Delete("/", s.handleDeleteUser)
					r.Get("/sessions", s.handleListUserSessions)
					r.Delete("/sessions", s.handleRevokeUserSessions)
				})
			})

			// Audit trail (admin only)
			r.With(s.requirePermission(auth.PermSystemAdmin)).Get("/audit", s.handleListAuditLogs)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}
