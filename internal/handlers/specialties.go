package handlers

import (
	"clinicore-server/internal/models"
	"clinicore-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SpecialtyHandler handles the specialty directory.
type SpecialtyHandler struct {
	DB *gorm.DB
}

// NewSpecialtyHandler creates a new SpecialtyHandler.
func NewSpecialtyHandler(db *gorm.DB) *SpecialtyHandler {
	return &SpecialtyHandler{DB: db}
}

// List returns all specialties, name ascending.
func (h *SpecialtyHandler) List(c *gin.Context) {
	var specialties []models.Specialty
	if err := h.DB.Order("name asc").Find(&specialties).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch specialties: "+err.Error())
		return
	}

	utils.Success(c, "Specialties fetched successfully", specialties)
}

// CreateSpecialtyRequest represents the request body for creating a specialty.
type CreateSpecialtyRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create adds a specialty (admin).
func (h *SpecialtyHandler) Create(c *gin.Context) {
	var req CreateSpecialtyRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existing models.Specialty
	if err := h.DB.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		utils.BadRequest(c, "Specialty with this name already exists")
		return
	} else if err != gorm.ErrRecordNotFound {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	specialty := models.Specialty{Name: req.Name, Description: req.Description}
	if err := h.DB.Create(&specialty).Error; err != nil {
		utils.InternalServerError(c, "Failed to create specialty: "+err.Error())
		return
	}

	utils.Created(c, "Specialty created successfully", specialty)
}
