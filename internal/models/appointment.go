package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPendingPayment AppointmentStatus = "pending_payment"
	StatusConfirmed      AppointmentStatus = "confirmed"
	StatusCancelled      AppointmentStatus = "cancelled"
	StatusCompleted      AppointmentStatus = "completed"
)

// Appointment represents a scheduled encounter between one patient and one
// doctor for one specialty. Created when the patient books (pending_payment),
// confirmed by payment, completed by consultation closure.
type Appointment struct {
	BaseModel
	PatientID   string            `gorm:"size:36;index" json:"patientId"`
	DoctorID    string            `gorm:"size:36;index" json:"doctorId"`
	SpecialtyID string            `gorm:"size:36;index" json:"specialtyId"`
	StartTime   time.Time         `json:"startTime"`
	Status      AppointmentStatus `gorm:"size:20;default:'pending_payment'" json:"status"`
	Reason      string            `gorm:"size:255" json:"reason"`
	Notes       string            `gorm:"type:text" json:"notes"`

	// Relations
	Patient   User      `gorm:"foreignKey:PatientID" json:"-"`
	Doctor    User      `gorm:"foreignKey:DoctorID" json:"-"`
	Specialty Specialty `gorm:"foreignKey:SpecialtyID" json:"-"`
}
