package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
	RolePharmacist Role = "pharmacist"
	RoleLab        Role = "lab"
)

// User represents a user in the system
type User struct {
	BaseModel
	Email       string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password    string     `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FirstName   string     `gorm:"size:100" json:"firstName"`
	LastName    string     `gorm:"size:100" json:"lastName"`
	Role        Role       `gorm:"size:20;default:'patient'" json:"role"`
	SpecialtyID *string    `gorm:"size:36;index" json:"specialtyId,omitempty"` // Set for doctors only
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Address     string     `json:"address,omitempty"`

	// Relations (not always preloaded)
	Specialty           *Specialty     `gorm:"foreignKey:SpecialtyID" json:"-"`
	RefreshTokens       []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
	DoctorAppointments  []Appointment  `gorm:"foreignKey:DoctorID" json:"-"`
	PatientAppointments []Appointment  `gorm:"foreignKey:PatientID" json:"-"`
	Consultations       []Consultation `gorm:"foreignKey:DoctorID" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        Role       `json:"role"`
	SpecialtyID *string    `json:"specialtyId,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		SpecialtyID: u.SpecialtyID,
		DateOfBirth: u.DateOfBirth,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// DisplayName returns the patient-facing name used for sorting directory listings.
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}
