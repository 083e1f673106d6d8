package records

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetHistory(ctx context.Context, patientID uuid.UUID) (*MedicalHistory, error)
	UpsertHistory(ctx context.Context, h *MedicalHistory) error
	CreateLabReport(ctx context.Context, r *LabReport) error
	GetLabReport(ctx context.Context, id uuid.UUID) (*LabReport, error)
	DeleteLabReport(ctx context.Context, id uuid.UUID) error
	ListLabReports(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error)
}
