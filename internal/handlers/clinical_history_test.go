package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"clinicore-server/internal/models"
	"clinicore-server/internal/timeline"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientMatches(t *testing.T) {
	patient := &models.User{
		FirstName: "Maria",
		LastName:  "Gonzalez",
		Email:     "maria.gonzalez@example.com",
	}

	assert.True(t, patientMatches(patient, "maria"))
	assert.True(t, patientMatches(patient, "gonz"))
	assert.True(t, patientMatches(patient, "example.com"))
	assert.False(t, patientMatches(patient, "smith"))
}

func TestListMyPatientsAggregatesAndSortsByName(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewClinicalHistoryHandler(db)

	otherPatientID := "88888888-8888-4888-8888-888888888888"
	visitAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM `appointments`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "status", "start_time"}).
			AddRow(testAppointmentID, testPatientID, testDoctorID, "confirmed", visitAt))
	mock.ExpectQuery("SELECT (.+) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "role"}).
			AddRow(testPatientID, "Zoe", "Alvarez", "zoe@example.com", "patient"))
	mock.ExpectQuery("SELECT (.+) FROM `consultations`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "created_at"}).
			AddRow(testConsultID, otherPatientID, testDoctorID, visitAt.Add(time.Hour)))
	mock.ExpectQuery("SELECT (.+) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "role"}).
			AddRow(otherPatientID, "Ana", "Mora", "ana@example.com", "patient"))

	c, w := doctorRequest(http.MethodGet, "/clinical-history/patients", "", nil)
	h.ListMyPatients(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	var envelope struct {
		Data []struct {
			FirstName     string    `json:"firstName"`
			LastContactAt time.Time `json:"lastContactAt"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "Ana", envelope.Data[0].FirstName)
	assert.Equal(t, "Zoe", envelope.Data[1].FirstName)
	assert.True(t, envelope.Data[1].LastContactAt.Equal(visitAt),
		"appointment start time drives last contact")
}

func TestTimelineRejectsInvalidCursor(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewClinicalHistoryHandler(db)

	c, w := doctorRequest(http.MethodGet,
		"/clinical-history/patients/"+testPatientID+"/timeline?cursor=garbage", "",
		gin.Params{{Key: "patientId", Value: testPatientID}})
	h.Timeline(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimelineRejectsInvalidLimit(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewClinicalHistoryHandler(db)

	c, w := doctorRequest(http.MethodGet,
		"/clinical-history/patients/"+testPatientID+"/timeline?limit=abc", "",
		gin.Params{{Key: "patientId", Value: testPatientID}})
	h.Timeline(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimelineForbiddenWithoutCareRelationship(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewClinicalHistoryHandler(db)

	// No shared appointments and no authored consultations.
	mock.ExpectQuery("SELECT count(.+) FROM `appointments`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT count(.+) FROM `consultations`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	c, w := doctorRequest(http.MethodGet,
		"/clinical-history/patients/"+testPatientID+"/timeline", "",
		gin.Params{{Key: "patientId", Value: testPatientID}})
	h.Timeline(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "feed queries must not run")
}

func TestTimelineMergesConsultationsAndOrders(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewClinicalHistoryHandler(db)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count(.+) FROM `appointments`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM `consultations`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "patient_id", "doctor_id"}).
			AddRow("c2", base.Add(2*time.Hour), testPatientID, testDoctorID).
			AddRow("c1", base, testPatientID, testDoctorID))
	mock.ExpectQuery("SELECT (.+) FROM `medical_orders`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "patient_id", "doctor_id"}).
			AddRow("o1", base.Add(time.Hour), testPatientID, testDoctorID))

	c, w := doctorRequest(http.MethodGet,
		"/clinical-history/patients/"+testPatientID+"/timeline?limit=10", "",
		gin.Params{{Key: "patientId", Value: testPatientID}})
	h.Timeline(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	data := decodeData(t, w)
	assert.Equal(t, false, data["hasMore"])
	assert.Nil(t, data["nextCursor"])

	items, ok := data["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 3)

	first := items[0].(map[string]interface{})
	second := items[1].(map[string]interface{})
	third := items[2].(map[string]interface{})
	assert.Equal(t, "c2", first["id"])
	assert.Equal(t, "consultation", first["kind"])
	assert.Equal(t, "o1", second["id"])
	assert.Equal(t, "order", second["kind"])
	assert.Equal(t, "c1", third["id"])
}

func TestTimelineReportsMoreAndIssuesCursor(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewClinicalHistoryHandler(db)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	consultationRows := sqlmock.NewRows([]string{"id", "created_at", "patient_id", "doctor_id"})
	// Eleven rows against a limit of ten forces a second page.
	for i := 10; i >= 0; i-- {
		consultationRows.AddRow(
			fmt.Sprintf("c%02d", i), base.Add(time.Duration(i)*time.Minute), testPatientID, testDoctorID)
	}

	mock.ExpectQuery("SELECT count(.+) FROM `appointments`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM `consultations`").
		WillReturnRows(consultationRows)
	mock.ExpectQuery("SELECT (.+) FROM `medical_orders`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "patient_id", "doctor_id"}))

	c, w := doctorRequest(http.MethodGet,
		"/clinical-history/patients/"+testPatientID+"/timeline?limit=10", "",
		gin.Params{{Key: "patientId", Value: testPatientID}})
	h.Timeline(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	data := decodeData(t, w)
	assert.Equal(t, true, data["hasMore"])

	rawCursor, ok := data["nextCursor"].(string)
	require.True(t, ok, "a further page must carry a cursor")

	items := data["items"].([]interface{})
	require.Len(t, items, 10)

	// The cursor pins the last returned row so the next page resumes after it.
	last := items[9].(map[string]interface{})
	cur, err := timeline.ParseCursor(rawCursor)
	require.NoError(t, err)
	assert.Equal(t, last["id"], cur.BeforeID)
}
