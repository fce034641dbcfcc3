package handlers

import (
	"clinicore-server/internal/models"
	"clinicore-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler handles user directory requests.
type UserHandler struct {
	DB *gorm.DB
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// GetDoctors handles fetching all users with the doctor role, optionally
// filtered by specialty. Accessible to patients for booking appointments.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	query := h.DB.Where("role = ?", models.RoleDoctor)
	if specialtyID := c.Query("specialtyId"); specialtyID != "" {
		query = query.Where("specialty_id = ?", specialtyID)
	}

	var doctors []models.User
	if err := query.Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}

	sanitizedDoctors := make([]models.UserSanitized, len(doctors))
	for i, doctor := range doctors {
		sanitizedDoctors[i] = doctor.Sanitize()
	}

	utils.Success(c, "Doctors fetched successfully", sanitizedDoctors)
}
