package handlers

import (
	"errors"
	"time"

	"clinicore-server/internal/models"
	"clinicore-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PrescriptionHandler serves the pharmacy workflow: the undispensed queue and
// dispense marking. Prescriptions themselves are written only through the
// consultation handlers.
type PrescriptionHandler struct {
	DB *gorm.DB
}

// NewPrescriptionHandler creates a new PrescriptionHandler.
func NewPrescriptionHandler(db *gorm.DB) *PrescriptionHandler {
	return &PrescriptionHandler{DB: db}
}

// ListPending returns prescriptions not yet dispensed, oldest first.
func (h *PrescriptionHandler) ListPending(c *gin.Context) {
	var prescriptions []models.MedicationPrescription
	if err := h.DB.Where("dispensed = ?", false).
		Order("created_at asc").
		Find(&prescriptions).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch prescriptions: "+err.Error())
		return
	}

	utils.Success(c, "Pending prescriptions fetched successfully", prescriptions)
}

// Dispense marks a prescription as dispensed exactly once.
func (h *PrescriptionHandler) Dispense(c *gin.Context) {
	prescriptionID := c.Param("id")

	var prescription models.MedicationPrescription
	if err := h.DB.First(&prescription, "id = ?", prescriptionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Prescription not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if prescription.Dispensed {
		utils.Conflict(c, "Prescription has already been dispensed")
		return
	}

	now := time.Now()
	prescription.Dispensed = true
	prescription.DispensedAt = &now

	if err := h.DB.Save(&prescription).Error; err != nil {
		utils.InternalServerError(c, "Failed to dispense prescription: "+err.Error())
		return
	}

	utils.Success(c, "Prescription dispensed successfully", prescription)
}
