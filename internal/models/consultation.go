package models

import (
	"time"
)

// ConsultationStatus represents the lifecycle state of a consultation
type ConsultationStatus string

const (
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
)

// Consultation is the clinical record one doctor documents for one appointment.
// At most one consultation exists per (appointment, doctor) pair; that is
// enforced by the find-or-replace rule in the handler, not by a DB constraint.
// Only the doctor who created it may mutate or close it.
type Consultation struct {
	BaseModel
	AppointmentID *string            `gorm:"size:36;index" json:"appointmentId,omitempty"`
	PatientID     string             `gorm:"size:36;index" json:"patientId"`
	DoctorID      string             `gorm:"size:36;index" json:"doctorId"`
	Reason        string             `gorm:"size:500" json:"reason"`
	Diagnosis     string             `gorm:"type:text" json:"diagnosis,omitempty"`
	Plan          string             `gorm:"type:text;not null" json:"plan"`
	Notes         string             `gorm:"type:text" json:"notes,omitempty"`
	Status        ConsultationStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	ClosedAt      *time.Time         `json:"closedAt,omitempty"`

	// Relations
	Appointment   *Appointment             `gorm:"foreignKey:AppointmentID" json:"-"`
	Patient       User                     `gorm:"foreignKey:PatientID" json:"-"`
	Doctor        User                     `gorm:"foreignKey:DoctorID" json:"-"`
	Indications   []MedicalIndication      `gorm:"foreignKey:ConsultationID" json:"indications,omitempty"`
	Prescriptions []MedicationPrescription `gorm:"foreignKey:ConsultationID" json:"prescriptions,omitempty"`
	Diagnoses     []ConsultationDiagnosis  `gorm:"foreignKey:ConsultationID" json:"consultationDiagnosis,omitempty"`
	Orders        []MedicalOrder           `gorm:"foreignKey:ConsultationID" json:"medicalOrders,omitempty"`
}

// MedicalIndication is a free-text instruction owned by exactly one
// consultation. Fully replaced (delete-all, recreate) on every update.
type MedicalIndication struct {
	BaseModel
	ConsultationID string `gorm:"size:36;index;not null" json:"consultationId"`
	Instruction    string `gorm:"size:500;not null" json:"instruction"`
	Notes          string `gorm:"type:text" json:"notes,omitempty"`
}

// MedicationPrescription is a prescribed medication owned by exactly one
// consultation. The dispensed pair is written only by the pharmacy workflow
// and surfaced read-only everywhere else.
type MedicationPrescription struct {
	BaseModel
	ConsultationID string     `gorm:"size:36;index;not null" json:"consultationId"`
	Medication     string     `gorm:"size:255;not null" json:"medication"`
	Dosage         string     `gorm:"size:100" json:"dosage"`
	Frequency      string     `gorm:"size:100" json:"frequency"`
	Duration       string     `gorm:"size:100" json:"duration"`
	Route          string     `gorm:"size:100" json:"route"`
	Dispensed      bool       `gorm:"default:false" json:"dispensed"`
	DispensedAt    *time.Time `json:"dispensedAt,omitempty"`
}

// DiagnosisSeverity grades a consultation diagnosis
type DiagnosisSeverity string

const (
	SeverityMild     DiagnosisSeverity = "mild"
	SeverityModerate DiagnosisSeverity = "moderate"
	SeveritySevere   DiagnosisSeverity = "severe"
)

// ConsultationDiagnosis is a coded diagnosis attached to a consultation.
// Uniqueness is informally scoped by (consultationId, label, code) so that
// batch inserts stay idempotent.
type ConsultationDiagnosis struct {
	BaseModel
	ConsultationID string            `gorm:"size:36;index;not null" json:"consultationId"`
	Code           string            `gorm:"size:50" json:"code,omitempty"`
	Label          string            `gorm:"size:255;not null" json:"label"`
	Severity       DiagnosisSeverity `gorm:"size:20" json:"severity,omitempty"`
	Notes          string            `gorm:"type:text" json:"notes,omitempty"`
}

// OrderType is the stored vocabulary for medical orders. The create endpoint
// accepts {lab, imaging} on the wire and maps lab to laboratory.
type OrderType string

const (
	OrderTypeLaboratory OrderType = "laboratory"
	OrderTypeImaging    OrderType = "imaging"
)

// OrderPriority represents the urgency of a medical order
type OrderPriority string

const (
	PriorityNormal OrderPriority = "normal"
	PriorityUrgent OrderPriority = "urgent"
)

// OrderStatus represents the fulfillment state of a medical order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderReceived  OrderStatus = "received"
	OrderInProcess OrderStatus = "in_process"
	OrderReported  OrderStatus = "reported"
	OrderCancelled OrderStatus = "cancelled"
)

// MedicalOrder is a lab or imaging request. It references consultation,
// patient and doctor independently so it can be queried by patient without
// loading its parent consultation.
type MedicalOrder struct {
	BaseModel
	ConsultationID string        `gorm:"size:36;index;not null" json:"consultationId"`
	PatientID      string        `gorm:"size:36;index" json:"patientId"`
	DoctorID       string        `gorm:"size:36;index" json:"doctorId"`
	Type           OrderType     `gorm:"size:20;not null" json:"type"`
	Description    string        `gorm:"size:500;not null" json:"description"`
	Priority       OrderPriority `gorm:"size:20;default:'normal'" json:"priority"`
	Status         OrderStatus   `gorm:"size:20;default:'pending'" json:"status"`
	Results        string        `gorm:"type:text" json:"results,omitempty"`
	ResultFile     string        `gorm:"size:500" json:"resultFile,omitempty"`

	// Relations
	Consultation Consultation `gorm:"foreignKey:ConsultationID" json:"-"`
	Patient      User         `gorm:"foreignKey:PatientID" json:"-"`
	Doctor       User         `gorm:"foreignKey:DoctorID" json:"-"`
}
