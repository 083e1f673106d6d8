package medication

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("not allowed")
	ErrNoAppointment = errors.New("no appointment between doctor and patient")
)

// Prescription maps to the prescriptions table. Prescriptions are immutable
// once written.
type Prescription struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Diagnosis *string   `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MedicineEntry maps to the medicine_entries table. Position preserves the
// order the doctor listed the medicines in.
type MedicineEntry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	Position       int       `db:"position" json:"position"`
	Name           string    `db:"name" json:"name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      *string   `db:"frequency" json:"frequency,omitempty"`
	Duration       *string   `db:"duration" json:"duration,omitempty"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
}

// PrescriptionView is a Prescription with its medicines and display names.
type PrescriptionView struct {
	Prescription
	DoctorName  string           `json:"doctor_name"`
	PatientName string           `json:"patient_name"`
	Medicines   []*MedicineEntry `json:"medicines"`
}

// MedicationReminder maps to the medication_reminders table. RemindAt is a
// wall-clock "HH:MM" that fires daily between StartDate and EndDate.
// MedicineEntryID, when set, ties the reminder to a prescribed medicine.
type MedicationReminder struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicineEntryID *uuid.UUID `db:"medicine_entry_id" json:"medicine_entry_id,omitempty"`
	MedicineName    string     `db:"medicine_name" json:"medicine_name"`
	Dosage       string     `db:"dosage" json:"dosage"`
	RemindAt     string     `db:"remind_at" json:"remind_at"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// DueReminder is a reminder joined with the patient's phone number, ready
// for SMS delivery.
type DueReminder struct {
	ReminderID uuid.UUID
	Phone      string
	Medicine   string
	Dosage     string
	Time       string
}
