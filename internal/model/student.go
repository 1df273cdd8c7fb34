package model

import (
	"time"

	"github.com/google/uuid"
)

// Student represents a registered exam candidate. The device fingerprint is
// set once at registration and never rebound afterwards.
type Student struct {
	ID                uuid.UUID `json:"id"`
	RollNumber        string    `json:"roll_number"`
	FullName          string    `json:"full_name"`
	Department        string    `json:"department"`
	Semester          int       `json:"semester"`
	PasswordHash      string    `json:"-"`
	DeviceFingerprint string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RegisterStudentRequest is the payload for student registration.
type RegisterStudentRequest struct {
	RollNumber        string `json:"roll_number" binding:"required,min=4,max=32"`
	FullName          string `json:"full_name" binding:"required,min=2,max=100"`
	Department        string `json:"department" binding:"required,min=2,max=100"`
	Semester          int    `json:"semester" binding:"required,min=1,max=12"`
	Password          string `json:"password" binding:"required,min=6,max=128"`
	DeviceFingerprint string `json:"device_fingerprint" binding:"required,min=8,max=512"`
}

// StudentLoginRequest is the payload for student authentication. The
// fingerprint must equal the one frozen at registration.
type StudentLoginRequest struct {
	RollNumber        string `json:"roll_number" binding:"required,min=4,max=32"`
	Password          string `json:"password" binding:"required,min=6,max=128"`
	DeviceFingerprint string `json:"device_fingerprint" binding:"required,min=8,max=512"`
}

// StudentLoginResponse is returned after successful registration or login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}
