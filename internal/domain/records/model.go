package records

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not allowed")
)

// MedicalHistory maps to the medical_history table. Each patient has at most
// one row, written with an upsert.
type MedicalHistory struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	BloodGroup        *string   `db:"blood_group" json:"blood_group,omitempty"`
	HeightCM          *float64  `db:"height_cm" json:"height_cm,omitempty"`
	WeightKG          *float64  `db:"weight_kg" json:"weight_kg,omitempty"`
	Allergies         *string   `db:"allergies" json:"allergies,omitempty"`
	ChronicConditions *string   `db:"chronic_conditions" json:"chronic_conditions,omitempty"`
	PastSurgeries     *string   `db:"past_surgeries" json:"past_surgeries,omitempty"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// LabReport maps to the lab_reports table.
type LabReport struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	TestName   string    `db:"test_name" json:"test_name"`
	Result     string    `db:"result" json:"result"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	ReportDate time.Time `db:"report_date" json:"report_date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
