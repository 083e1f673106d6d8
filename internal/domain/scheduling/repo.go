package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// Transition moves a scheduled appointment to the given terminal status.
	// Returns false when the appointment was not scheduled.
	Transition(ctx context.Context, id uuid.UUID, status string) (bool, error)
	// ExistsBetween reports whether the doctor and patient share any
	// non-cancelled appointment.
	ExistsBetween(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	// PatientIDsForDoctor returns the distinct patients holding a
	// non-cancelled appointment with the doctor.
	PatientIDsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error)
}
