package handlers

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"clinicore-server/internal/middleware"
	"clinicore-server/internal/models"
	"clinicore-server/internal/timeline"
	"clinicore-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ClinicalHistoryHandler serves the per-doctor patient roster and the merged
// consultation/order timeline of a patient.
type ClinicalHistoryHandler struct {
	DB *gorm.DB
}

// NewClinicalHistoryHandler creates a new ClinicalHistoryHandler.
func NewClinicalHistoryHandler(db *gorm.DB) *ClinicalHistoryHandler {
	return &ClinicalHistoryHandler{DB: db}
}

// PatientSummary is one roster row: the patient plus the derived date of the
// doctor's latest contact with them.
type PatientSummary struct {
	models.UserSanitized
	LastContactAt time.Time `json:"lastContactAt"`
}

// ListMyPatients returns every patient who ever had a paid appointment with
// the calling doctor or at least one consultation authored by them.
// lastContactAt is computed here after the fetch, not in the query. Default
// order is display name ascending; orderByLastContact=true re-sorts by
// lastContactAt descending.
func (h *ClinicalHistoryHandler) ListMyPatients(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	orderByLastContact := c.Query("orderByLastContact") == "true"

	var appointments []models.Appointment
	if err := h.DB.Preload("Patient").
		Where("doctor_id = ? AND status IN ?", doctorID,
			[]models.AppointmentStatus{models.StatusConfirmed, models.StatusCompleted}).
		Find(&appointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	var consultations []models.Consultation
	if err := h.DB.Preload("Patient").
		Where("doctor_id = ?", doctorID).
		Find(&consultations).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch consultations: "+err.Error())
		return
	}

	type aggregate struct {
		patient     models.User
		lastContact time.Time
	}
	byPatient := make(map[string]*aggregate)
	touch := func(patient models.User, contact time.Time) {
		agg, ok := byPatient[patient.ID]
		if !ok {
			byPatient[patient.ID] = &aggregate{patient: patient, lastContact: contact}
			return
		}
		if contact.After(agg.lastContact) {
			agg.lastContact = contact
		}
	}
	for _, a := range appointments {
		touch(a.Patient, a.StartTime)
	}
	for _, cons := range consultations {
		touch(cons.Patient, cons.CreatedAt)
	}

	matched := make([]*aggregate, 0, len(byPatient))
	for _, agg := range byPatient {
		if search != "" && !patientMatches(&agg.patient, search) {
			continue
		}
		matched = append(matched, agg)
	}

	if orderByLastContact {
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].lastContact.After(matched[j].lastContact)
		})
	} else {
		sort.Slice(matched, func(i, j int) bool {
			return strings.ToLower(matched[i].patient.DisplayName()) <
				strings.ToLower(matched[j].patient.DisplayName())
		})
	}

	summaries := make([]PatientSummary, len(matched))
	for i, agg := range matched {
		summaries[i] = PatientSummary{
			UserSanitized: agg.patient.Sanitize(),
			LastContactAt: agg.lastContact,
		}
	}

	utils.Success(c, "Patients fetched successfully", summaries)
}

// patientMatches reports a case-insensitive substring match against the
// patient's first name, last name or email.
func patientMatches(patient *models.User, needle string) bool {
	return strings.Contains(strings.ToLower(patient.FirstName), needle) ||
		strings.Contains(strings.ToLower(patient.LastName), needle) ||
		strings.Contains(strings.ToLower(patient.Email), needle)
}

// TimelineResponse is one page of a patient's clinical feed.
type TimelineResponse struct {
	Items      []timeline.Entry `json:"items"`
	NextCursor *string          `json:"nextCursor"`
	HasMore    bool             `json:"hasMore"`
}

// Timeline returns the merged reverse-chronological feed of a patient's
// consultations and medical orders with the calling doctor. The doctor must
// have a prior care relationship with the patient; the check happens before
// any feed query and a miss is reported as forbidden.
func (h *ClinicalHistoryHandler) Timeline(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	patientID := c.Param("patientId")

	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			utils.BadRequest(c, "Invalid limit: "+rawLimit)
			return
		}
		limit = parsed
	}
	limit = timeline.ClampLimit(limit)

	cursor, err := timeline.ParseCursor(c.Query("cursor"))
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	related, err := h.hasCareRelationship(doctorID, patientID)
	if err != nil {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}
	if !related {
		utils.Forbidden(c, "You are not authorized to view this patient's history")
		return
	}

	cond, args := cursor.Where("created_at")

	var consultations []models.Consultation
	if err := h.DB.
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID).
		Where(cond, args...).
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&consultations).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch consultations: "+err.Error())
		return
	}

	var orders []models.MedicalOrder
	if err := h.DB.
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID).
		Where(cond, args...).
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&orders).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch medical orders: "+err.Error())
		return
	}

	consultationEntries := make([]timeline.Entry, len(consultations))
	for i, cons := range consultations {
		consultationEntries[i] = timeline.Entry{
			Kind: timeline.KindConsultation,
			ID:   cons.ID,
			Date: cons.CreatedAt,
			Item: cons,
		}
	}
	orderEntries := make([]timeline.Entry, len(orders))
	for i, o := range orders {
		orderEntries[i] = timeline.Entry{
			Kind: timeline.KindOrder,
			ID:   o.ID,
			Date: o.CreatedAt,
			Item: o,
		}
	}

	items, hasMore := timeline.Merge(consultationEntries, orderEntries, limit)

	resp := TimelineResponse{Items: items, HasMore: hasMore}
	if hasMore {
		next := timeline.NextCursor(items)
		resp.NextCursor = &next
	}

	utils.Success(c, "Timeline fetched successfully", resp)
}

// hasCareRelationship reports whether the doctor and patient share at least
// one appointment or consultation.
func (h *ClinicalHistoryHandler) hasCareRelationship(doctorID, patientID string) (bool, error) {
	var count int64
	if err := h.DB.Model(&models.Appointment{}).
		Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := h.DB.Model(&models.Consultation{}).
		Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
