package handlers

import (
	"errors"
	"io"
	"strings"
	"time"

	"clinicore-server/internal/config"
	"clinicore-server/internal/logger"
	"clinicore-server/internal/middleware"
	"clinicore-server/internal/models"
	"clinicore-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ConsultationHandler handles the consultation lifecycle: create/update,
// diagnosis and order synchronization, closing, and the summary projection.
type ConsultationHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
}

// NewConsultationHandler creates a new ConsultationHandler.
func NewConsultationHandler(db *gorm.DB, cfg *config.Config) *ConsultationHandler {
	return &ConsultationHandler{DB: db, Cfg: cfg}
}

// IndicationInput is one free-text instruction in a consultation save.
type IndicationInput struct {
	Instruction string `json:"instruction" binding:"required"`
	Notes       string `json:"notes"`
}

// PrescriptionInput is one prescribed medication in a consultation save.
type PrescriptionInput struct {
	Medication string `json:"medication" binding:"required"`
	Dosage     string `json:"dosage"`
	Frequency  string `json:"frequency"`
	Duration   string `json:"duration"`
	Route      string `json:"route"`
}

// CreateConsultationRequest represents the request body for creating or
// updating the consultation of an appointment.
type CreateConsultationRequest struct {
	AppointmentID string              `json:"appointmentId" binding:"required,uuid"`
	Reason        string              `json:"reason" binding:"required"`
	Diagnosis     string              `json:"diagnosis"`
	Plan          string              `json:"plan"`
	Notes         string              `json:"notes"`
	Indications   []IndicationInput   `json:"indications" binding:"dive"`
	Prescriptions []PrescriptionInput `json:"prescriptions" binding:"dive"`
}

// CreateOrUpdate documents a consultation against an appointment owned by the
// calling doctor. The first call for an (appointment, doctor) pair creates the
// consultation with its indications and prescriptions; every later call
// replaces the scalar fields and both child collections in one transaction,
// so resubmitting the same form state never produces duplicate rows.
func (h *ConsultationHandler) CreateOrUpdate(c *gin.Context) {
	var req CreateConsultationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", req.AppointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error verifying appointment: "+err.Error())
		}
		return
	}
	if appointment.DoctorID != doctorID {
		utils.Forbidden(c, "You are not authorized to document this appointment")
		return
	}

	indications := make([]models.MedicalIndication, len(req.Indications))
	for i, in := range req.Indications {
		indications[i] = models.MedicalIndication{Instruction: in.Instruction, Notes: in.Notes}
	}
	prescriptions := make([]models.MedicationPrescription, len(req.Prescriptions))
	for i, p := range req.Prescriptions {
		prescriptions[i] = models.MedicationPrescription{
			Medication: p.Medication,
			Dosage:     p.Dosage,
			Frequency:  p.Frequency,
			Duration:   p.Duration,
			Route:      p.Route,
		}
	}

	var consultation models.Consultation
	err := h.DB.Where("appointment_id = ? AND doctor_id = ?", req.AppointmentID, doctorID).
		First(&consultation).Error

	switch {
	case err == nil:
		if !h.allowWrite(c, &consultation) {
			return
		}
		txErr := h.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("consultation_id = ?", consultation.ID).
				Delete(&models.MedicalIndication{}).Error; err != nil {
				return err
			}
			if err := tx.Where("consultation_id = ?", consultation.ID).
				Delete(&models.MedicationPrescription{}).Error; err != nil {
				return err
			}
			updates := map[string]interface{}{
				"reason":    req.Reason,
				"diagnosis": req.Diagnosis,
				"plan":      req.Plan,
				"notes":     req.Notes,
			}
			if err := tx.Model(&models.Consultation{}).Where("id = ?", consultation.ID).
				Updates(updates).Error; err != nil {
				return err
			}
			return createConsultationChildren(tx, consultation.ID, indications, prescriptions)
		})
		if txErr != nil {
			logger.WithFields(map[string]interface{}{
				"appointmentId":  req.AppointmentID,
				"consultationId": consultation.ID,
				"doctorId":       doctorID,
			}).WithError(txErr).Error("consultation update transaction failed")
			utils.InternalServerError(c, "Failed to update consultation")
			return
		}
		utils.Success(c, "Consultation updated successfully", gin.H{"id": consultation.ID})

	case errors.Is(err, gorm.ErrRecordNotFound):
		appointmentID := req.AppointmentID
		consultation = models.Consultation{
			AppointmentID: &appointmentID,
			PatientID:     appointment.PatientID,
			DoctorID:      doctorID,
			Reason:        req.Reason,
			Diagnosis:     req.Diagnosis,
			Plan:          req.Plan,
			Notes:         req.Notes,
			Status:        models.ConsultationInProgress,
		}
		txErr := h.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&consultation).Error; err != nil {
				return err
			}
			return createConsultationChildren(tx, consultation.ID, indications, prescriptions)
		})
		if txErr != nil {
			logger.WithFields(map[string]interface{}{
				"appointmentId": req.AppointmentID,
				"doctorId":      doctorID,
			}).WithError(txErr).Error("consultation create transaction failed")
			utils.InternalServerError(c, "Failed to create consultation")
			return
		}
		utils.Created(c, "Consultation created successfully", gin.H{"id": consultation.ID})

	default:
		utils.InternalServerError(c, "Database error looking up consultation: "+err.Error())
	}
}

func createConsultationChildren(tx *gorm.DB, consultationID string,
	indications []models.MedicalIndication, prescriptions []models.MedicationPrescription) error {
	for i := range indications {
		indications[i].BaseModel = models.BaseModel{}
		indications[i].ConsultationID = consultationID
	}
	if len(indications) > 0 {
		if err := tx.Create(&indications).Error; err != nil {
			return err
		}
	}
	for i := range prescriptions {
		prescriptions[i].BaseModel = models.BaseModel{}
		prescriptions[i].ConsultationID = consultationID
	}
	if len(prescriptions) > 0 {
		if err := tx.Create(&prescriptions).Error; err != nil {
			return err
		}
	}
	return nil
}

// CloseConsultationRequest represents the request body for closing a
// consultation. The body is optional.
type CloseConsultationRequest struct {
	CompleteAppointmentID string `json:"completeAppointmentId" binding:"omitempty,uuid"`
}

// Close transitions a consultation to completed and stamps closedAt. If the
// consultation carries an appointment reference, or the caller supplies one,
// that appointment is completed in the same transaction. Closing is purely a
// status transition; an empty consultation closes just as well.
func (h *ConsultationHandler) Close(c *gin.Context) {
	consultationID := c.Param("id")

	var req CloseConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultation, ok := h.ownedConsultation(c, consultationID, doctorID)
	if !ok {
		return
	}

	if consultation.Status == models.ConsultationCompleted {
		utils.Success(c, "Consultation already closed", gin.H{"ok": true})
		return
	}

	appointmentID := req.CompleteAppointmentID
	if consultation.AppointmentID != nil {
		appointmentID = *consultation.AppointmentID
	}

	now := time.Now()
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Consultation{}).Where("id = ?", consultation.ID).
			Updates(map[string]interface{}{
				"status":    models.ConsultationCompleted,
				"closed_at": now,
			}).Error; err != nil {
			return err
		}
		if appointmentID != "" {
			if err := tx.Model(&models.Appointment{}).
				Where("id = ? AND doctor_id = ?", appointmentID, doctorID).
				Update("status", models.StatusCompleted).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		logger.WithFields(map[string]interface{}{
			"consultationId": consultation.ID,
			"doctorId":       doctorID,
		}).WithError(txErr).Error("consultation close transaction failed")
		utils.InternalServerError(c, "Failed to close consultation")
		return
	}

	utils.Success(c, "Consultation closed successfully", gin.H{"ok": true})
}

// DiagnosisInput is one diagnosis item in a save-diagnoses call.
type DiagnosisInput struct {
	Code     string `json:"code"`
	Label    string `json:"label" binding:"required"`
	Severity string `json:"severity" binding:"omitempty,oneof=mild moderate severe"`
	Notes    string `json:"notes"`
}

// SaveDiagnosesRequest represents the request body for replacing the
// diagnoses of a consultation.
type SaveDiagnosesRequest struct {
	Items []DiagnosisInput `json:"items" binding:"required,min=1,dive"`
}

// SaveDiagnoses replaces the full diagnosis list of a consultation. Omitting
// a previously saved diagnosis deletes it; items colliding on (label, code)
// within the batch are inserted once.
func (h *ConsultationHandler) SaveDiagnoses(c *gin.Context) {
	consultationID := c.Param("id")

	var req SaveDiagnosesRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultation, ok := h.ownedConsultation(c, consultationID, doctorID)
	if !ok {
		return
	}
	if !h.allowWrite(c, consultation) {
		return
	}

	rows := buildDiagnosisRows(consultation.ID, req.Items)
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("consultation_id = ?", consultation.ID).
			Delete(&models.ConsultationDiagnosis{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if txErr != nil {
		logger.WithFields(map[string]interface{}{
			"consultationId": consultation.ID,
			"doctorId":       doctorID,
			"itemCount":      len(req.Items),
		}).WithError(txErr).Error("diagnosis replace transaction failed")
		utils.InternalServerError(c, "Failed to save diagnoses")
		return
	}

	utils.Success(c, "Diagnoses saved successfully", gin.H{"ok": true})
}

// buildDiagnosisRows converts diagnosis inputs to rows, dropping batch
// duplicates on the informal (label, code) key.
func buildDiagnosisRows(consultationID string, items []DiagnosisInput) []models.ConsultationDiagnosis {
	seen := make(map[string]bool, len(items))
	rows := make([]models.ConsultationDiagnosis, 0, len(items))
	for _, item := range items {
		key := item.Label + "\x00" + item.Code
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, models.ConsultationDiagnosis{
			ConsultationID: consultationID,
			Code:           item.Code,
			Label:          item.Label,
			Severity:       models.DiagnosisSeverity(item.Severity),
			Notes:          item.Notes,
		})
	}
	return rows
}

// OrderInput is one lab/imaging request in a save-orders call. Type uses the
// wire vocabulary {lab, imaging}.
type OrderInput struct {
	Type     string `json:"type" binding:"required,oneof=lab imaging"`
	Label    string `json:"label" binding:"required"`
	Code     string `json:"code"`
	Notes    string `json:"notes"`
	Priority string `json:"priority" binding:"omitempty,oneof=normal urgent"`
}

// SaveOrdersRequest represents the request body for replacing the medical
// orders of a consultation.
type SaveOrdersRequest struct {
	Orders []OrderInput `json:"orders" binding:"required,min=1,dive"`
}

// SaveOrders replaces the full medical-order list of a consultation. New rows
// start pending with no results; the description flattens label, code and
// notes into one line.
func (h *ConsultationHandler) SaveOrders(c *gin.Context) {
	consultationID := c.Param("id")

	var req SaveOrdersRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	consultation, ok := h.ownedConsultation(c, consultationID, doctorID)
	if !ok {
		return
	}
	if !h.allowWrite(c, consultation) {
		return
	}

	rows := buildOrderRows(consultation, req.Orders)
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("consultation_id = ?", consultation.ID).
			Delete(&models.MedicalOrder{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if txErr != nil {
		logger.WithFields(map[string]interface{}{
			"consultationId": consultation.ID,
			"doctorId":       doctorID,
			"orderCount":     len(req.Orders),
		}).WithError(txErr).Error("order replace transaction failed")
		utils.InternalServerError(c, "Failed to save orders")
		return
	}

	utils.Success(c, "Orders saved successfully", gin.H{"ok": true})
}

// buildOrderRows converts order inputs to rows: wire type lab maps to the
// stored laboratory enum, priority defaults to normal, status is forced to
// pending, and the description is synthesized from label, code and notes.
func buildOrderRows(consultation *models.Consultation, orders []OrderInput) []models.MedicalOrder {
	rows := make([]models.MedicalOrder, len(orders))
	for i, o := range orders {
		orderType := models.OrderTypeImaging
		if o.Type == "lab" {
			orderType = models.OrderTypeLaboratory
		}
		priority := models.OrderPriority(o.Priority)
		if priority == "" {
			priority = models.PriorityNormal
		}
		rows[i] = models.MedicalOrder{
			ConsultationID: consultation.ID,
			PatientID:      consultation.PatientID,
			DoctorID:       consultation.DoctorID,
			Type:           orderType,
			Description:    orderDescription(o.Label, o.Code, o.Notes),
			Priority:       priority,
			Status:         models.OrderPending,
		}
	}
	return rows
}

// orderDescription flattens label, parenthesized code and notes into one line.
func orderDescription(label, code, notes string) string {
	var b strings.Builder
	b.WriteString(label)
	if code != "" {
		b.WriteString(" (" + code + ")")
	}
	if notes != "" {
		b.WriteString(" - " + notes)
	}
	return b.String()
}

// ConsultationSummary is the denormalized read model for display and export.
type ConsultationSummary struct {
	Consultation models.Consultation  `json:"consultation"`
	Patient      models.UserSanitized `json:"patient"`
	Doctor       models.UserSanitized `json:"doctor"`
	Appointment  *models.Appointment  `json:"appointment,omitempty"`
	Specialty    *models.Specialty    `json:"specialty,omitempty"`
}

// GetSummary returns a consultation with all child collections and shallow
// patient/doctor/appointment/specialty projections. Read-only.
func (h *ConsultationHandler) GetSummary(c *gin.Context) {
	consultationID := c.Param("id")

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var consultation models.Consultation
	err := h.DB.
		Preload("Indications").
		Preload("Prescriptions").
		Preload("Diagnoses").
		Preload("Orders").
		Preload("Patient").
		Preload("Doctor").
		Preload("Appointment").
		Preload("Appointment.Specialty").
		Where("id = ? AND doctor_id = ?", consultationID, doctorID).
		First(&consultation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Reported as forbidden so other doctors cannot probe for existence.
			utils.Forbidden(c, "You are not authorized to view this consultation")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	summary := ConsultationSummary{
		Consultation: consultation,
		Patient:      consultation.Patient.Sanitize(),
		Doctor:       consultation.Doctor.Sanitize(),
		Appointment:  consultation.Appointment,
	}
	if consultation.Appointment != nil {
		summary.Specialty = &consultation.Appointment.Specialty
	}

	utils.Success(c, "Consultation summary fetched successfully", summary)
}

// ownedConsultation loads a consultation owned by the calling doctor. A miss
// is reported as forbidden whether the record is missing or owned by someone
// else, so existence never leaks across doctors. Returns false with the
// response already written on failure.
func (h *ConsultationHandler) ownedConsultation(c *gin.Context, consultationID, doctorID string) (*models.Consultation, bool) {
	var consultation models.Consultation
	err := h.DB.Where("id = ? AND doctor_id = ?", consultationID, doctorID).
		First(&consultation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Forbidden(c, "You are not authorized to modify this consultation")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &consultation, true
}

// allowWrite enforces the optional post-close write lock.
func (h *ConsultationHandler) allowWrite(c *gin.Context, consultation *models.Consultation) bool {
	if h.Cfg.LockClosedConsultations && consultation.Status == models.ConsultationCompleted {
		utils.Conflict(c, "Consultation is closed and locked against further changes")
		return false
	}
	return true
}
