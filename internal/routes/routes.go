package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telehealth-portal/internal/handlers"
	"telehealth-portal/internal/middleware"
	"telehealth-portal/internal/models"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Appointments *handlers.AppointmentHandler
	Reschedule   *handlers.RescheduleHandler
	Payments     *handlers.PaymentHandler
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer  prometheus.Gatherer
	JWTSecret string
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, h Handlers) {
	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(h.JWTSecret))
	{
		appointmentRoutes := private.Group("/appointments")
		{
			// List of the viewer's appointments; the filter state is kept per viewer
			appointmentRoutes.GET("", h.Appointments.ListAppointments)
			appointmentRoutes.GET("/filters", h.Appointments.GetFilters)

			// Party of the appointment or admin; actions are gated by eligibility inside the handler
			appointmentRoutes.GET("/:id", h.Appointments.GetAppointmentByID)
			appointmentRoutes.POST("/:id/cancel", h.Appointments.CancelAppointment)
			appointmentRoutes.GET("/:id/join", h.Appointments.JoinAppointment)
			appointmentRoutes.GET("/:id/history", h.Appointments.GetAppointmentHistory)
		}

		// Only the parties of an appointment can reschedule it
		sessionRoutes := private.Group("/reschedule-sessions")
		sessionRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor, models.RolePatient))
		{
			sessionRoutes.POST("", h.Reschedule.OpenSession)
			sessionRoutes.GET("/:id", h.Reschedule.GetSession)
			sessionRoutes.PUT("/:id/date", h.Reschedule.SelectDate)
			sessionRoutes.PUT("/:id/slot", h.Reschedule.SelectSlot)
			sessionRoutes.POST("/:id/submit", h.Reschedule.Submit)
			sessionRoutes.DELETE("/:id/notice", h.Reschedule.DismissNotice)
			sessionRoutes.DELETE("/:id", h.Reschedule.CloseSession)
		}

		private.GET("/payments/:id/status", h.Payments.GetPaymentStatus)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
