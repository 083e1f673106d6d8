package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// History returns the patient's medical history, or an empty history when
// none has been recorded yet.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) (*MedicalHistory, error) {
	h, err := s.repo.GetHistory(ctx, patientID)
	if err == ErrNotFound {
		return &MedicalHistory{PatientID: patientID}, nil
	}
	return h, err
}

// UpsertHistory creates or replaces the patient's medical history.
func (s *Service) UpsertHistory(ctx context.Context, h *MedicalHistory) error {
	if h.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	return s.repo.UpsertHistory(ctx, h)
}

// AddLabReport records a lab report for the patient.
func (s *Service) AddLabReport(ctx context.Context, l *LabReport) error {
	if l.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if l.TestName == "" {
		return fmt.Errorf("test_name is required")
	}
	if l.Result == "" {
		return fmt.Errorf("result is required")
	}
	if l.ReportDate.IsZero() {
		l.ReportDate = time.Now()
	}
	return s.repo.CreateLabReport(ctx, l)
}

// DeleteLabReport removes a lab report. Only its owner may delete it.
func (s *Service) DeleteLabReport(ctx context.Context, id, patientID uuid.UUID) error {
	l, err := s.repo.GetLabReport(ctx, id)
	if err != nil {
		return err
	}
	if l.PatientID != patientID {
		return ErrForbidden
	}
	return s.repo.DeleteLabReport(ctx, id)
}

func (s *Service) ListLabReports(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error) {
	return s.repo.ListLabReports(ctx, patientID, limit, offset)
}
