package routes

import (
	"clinicore-server/internal/config"
	"clinicore-server/internal/handlers"
	"clinicore-server/internal/middleware"
	"clinicore-server/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	specialtyHandler := handlers.NewSpecialtyHandler(db)
	appointmentHandler := handlers.NewAppointmentHandler(db)
	consultationHandler := handlers.NewConsultationHandler(db, cfg)
	clinicalHistoryHandler := handlers.NewClinicalHistoryHandler(db)
	orderHandler := handlers.NewOrderHandler(db)
	prescriptionHandler := handlers.NewPrescriptionHandler(db)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// Directories used when booking
		private.GET("/users/doctors", userHandler.GetDoctors)
		specialtyRoutes := private.Group("/specialties")
		{
			specialtyRoutes.GET("", specialtyHandler.List)
			specialtyRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleAdmin), specialtyHandler.Create)
		}

		// Appointment routes
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			// Payment confirmation and cancellation; finer checks inside the handlers
			appointmentRoutes.POST("/:id/confirm-payment", appointmentHandler.ConfirmPayment)
			appointmentRoutes.POST("/:id/cancel", appointmentHandler.CancelAppointment)
		}

		// Consultation routes (doctors only; ownership enforced per handler)
		consultationRoutes := private.Group("/consultations")
		consultationRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
		{
			consultationRoutes.POST("", consultationHandler.CreateOrUpdate)
			consultationRoutes.POST("/:id/diagnoses", consultationHandler.SaveDiagnoses)
			consultationRoutes.POST("/:id/orders", consultationHandler.SaveOrders)
			consultationRoutes.POST("/:id/close", consultationHandler.Close)
			consultationRoutes.GET("/:id/summary", consultationHandler.GetSummary)
		}

		// Clinical history routes (doctors only; relationship checked per handler)
		historyRoutes := private.Group("/clinical-history")
		historyRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
		{
			historyRoutes.GET("/patients", clinicalHistoryHandler.ListMyPatients)
			historyRoutes.GET("/patients/:patientId/timeline", clinicalHistoryHandler.Timeline)
		}

		// Lab worklist routes
		orderRoutes := private.Group("/medical-orders")
		orderRoutes.Use(middleware.RoleAuthMiddleware(models.RoleLab, models.RoleAdmin))
		{
			orderRoutes.GET("", orderHandler.ListWorklist)
			orderRoutes.PATCH("/:id/status", orderHandler.UpdateOrderStatus)
		}

		// Pharmacy routes
		prescriptionRoutes := private.Group("/prescriptions")
		prescriptionRoutes.Use(middleware.RoleAuthMiddleware(models.RolePharmacist, models.RoleAdmin))
		{
			prescriptionRoutes.GET("/pending", prescriptionHandler.ListPending)
			prescriptionRoutes.POST("/:id/dispense", prescriptionHandler.Dispense)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
