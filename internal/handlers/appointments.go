package handlers

import (
	"errors"
	"time"

	"clinicore-server/internal/middleware"
	"clinicore-server/internal/models"
	"clinicore-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AppointmentHandler handles appointment booking and status transitions.
type AppointmentHandler struct {
	DB *gorm.DB
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB) *AppointmentHandler {
	return &AppointmentHandler{DB: db}
}

// CreateAppointmentRequest represents the request body for booking an appointment.
type CreateAppointmentRequest struct {
	DoctorID    string    `json:"doctorId" binding:"required,uuid"`
	SpecialtyID string    `json:"specialtyId" binding:"required,uuid"`
	StartTime   time.Time `json:"startTime" binding:"required"`
	Reason      string    `json:"reason" binding:"required"`
	Notes       string    `json:"notes"`
}

// CreateAppointment books an appointment for the calling patient. New
// appointments await payment; confirmation happens via ConfirmPayment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	// Verify doctor exists and is a doctor
	var doctor models.User
	if err := h.DB.Where("id = ? AND role = ?", req.DoctorID, models.RoleDoctor).First(&doctor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found or user is not a doctor")
		} else {
			utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
		}
		return
	}

	var specialty models.Specialty
	if err := h.DB.First(&specialty, "id = ?", req.SpecialtyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Specialty not found")
		} else {
			utils.InternalServerError(c, "Database error verifying specialty: "+err.Error())
		}
		return
	}

	if req.StartTime.Before(time.Now()) {
		utils.BadRequest(c, "Appointment date must be in the future.")
		return
	}

	appointment := models.Appointment{
		PatientID:   patientID,
		DoctorID:    req.DoctorID,
		SpecialtyID: req.SpecialtyID,
		StartTime:   req.StartTime,
		Reason:      req.Reason,
		Notes:       req.Notes,
		Status:      models.StatusPendingPayment,
	}

	if err := h.DB.Create(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to create appointment: "+err.Error())
		return
	}

	utils.Created(c, "Appointment created successfully", appointment)
}

// GetAppointmentsForUser handles fetching appointments for the logged-in user.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	var appointments []models.Appointment
	var err error

	query := h.DB.Order("start_time asc")
	switch userRole {
	case models.RolePatient:
		err = query.Where("patient_id = ?", userID).Find(&appointments).Error
	case models.RoleDoctor:
		err = query.Where("doctor_id = ?", userID).Find(&appointments).Error
	case models.RoleAdmin:
		err = query.Find(&appointments).Error
	default:
		utils.Forbidden(c, "User role not permitted to view appointments this way.")
		return
	}

	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// ConfirmPayment transitions an appointment from pending_payment to
// confirmed. Only the booking patient (or an admin) may confirm.
func (h *AppointmentHandler) ConfirmPayment(c *gin.Context) {
	appointmentID := c.Param("id")

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)
	if userRole != models.RoleAdmin && appointment.PatientID != userID {
		utils.Forbidden(c, "You are not authorized to confirm this appointment")
		return
	}

	if appointment.Status != models.StatusPendingPayment {
		utils.Conflict(c, "Appointment is not awaiting payment")
		return
	}

	appointment.Status = models.StatusConfirmed
	if err := h.DB.Save(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to confirm appointment: "+err.Error())
		return
	}

	utils.Success(c, "Appointment confirmed successfully", appointment)
}

// CancelAppointment cancels an appointment that has not yet completed.
// Allowed for the booking patient, the appointment's doctor, or an admin.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	appointmentID := c.Param("id")

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)
	isInvolved := appointment.PatientID == userID || appointment.DoctorID == userID
	if userRole != models.RoleAdmin && !isInvolved {
		utils.Forbidden(c, "You are not authorized to cancel this appointment")
		return
	}

	if appointment.Status != models.StatusPendingPayment && appointment.Status != models.StatusConfirmed {
		utils.Conflict(c, "Appointment can no longer be cancelled")
		return
	}

	appointment.Status = models.StatusCancelled
	if err := h.DB.Save(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to cancel appointment: "+err.Error())
		return
	}

	utils.Success(c, "Appointment cancelled successfully", appointment)
}
