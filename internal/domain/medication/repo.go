package medication

import (
	"context"

	"github.com/google/uuid"
)

// PrescriptionRepository persists prescriptions and their medicine entries.
type PrescriptionRepository interface {
	// Create stores the prescription and its medicines atomically.
	Create(ctx context.Context, p *Prescription, medicines []*MedicineEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	MedicinesFor(ctx context.Context, prescriptionIDs []uuid.UUID) (map[uuid.UUID][]*MedicineEntry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	// EntryForPatient fetches a medicine entry only when it belongs to one
	// of the patient's prescriptions; anything else is ErrNotFound.
	EntryForPatient(ctx context.Context, entryID, patientID uuid.UUID) (*MedicineEntry, error)
}

// ReminderRepository persists medication reminders.
type ReminderRepository interface {
	Create(ctx context.Context, r *MedicationReminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationReminder, error)
	Update(ctx context.Context, r *MedicationReminder) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicationReminder, error)
	// DueAt returns active reminders whose remind_at equals the given "HH:MM",
	// joined with the owning patient's phone number.
	DueAt(ctx context.Context, hhmm string) ([]*DueReminder, error)
}
