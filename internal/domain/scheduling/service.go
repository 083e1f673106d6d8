package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserDirectory resolves roles and display names. Satisfied by the identity
// service.
type UserDirectory interface {
	RoleOf(ctx context.Context, id uuid.UUID) (string, error)
	NamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Notifier delivers a templated notification to a user. Delivery is best
// effort; implementations log failures instead of returning them.
type Notifier interface {
	Notify(ctx context.Context, templateID string, userID uuid.UUID, data map[string]string)
}

type Service struct {
	repo     Repository
	users    UserDirectory
	notifier Notifier
}

func NewService(repo Repository, users UserDirectory, notifier Notifier) *Service {
	return &Service{repo: repo, users: users, notifier: notifier}
}

// Book creates a scheduled appointment between a patient and a doctor.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, at time.Time, reason *string) (*Appointment, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("scheduled_at is required")
	}
	if at.Before(time.Now()) {
		return nil, fmt.Errorf("scheduled_at must be in the future")
	}

	role, err := s.users.RoleOf(ctx, doctorID)
	if err != nil || role != "doctor" {
		return nil, fmt.Errorf("invalid doctor reference")
	}

	a := &Appointment{
		DoctorID:    doctorID,
		PatientID:   patientID,
		ScheduledAt: at,
		Reason:      reason,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.notifyBooked(ctx, a)
	return a, nil
}

func (s *Service) notifyBooked(ctx context.Context, a *Appointment) {
	if s.notifier == nil {
		return
	}
	names, err := s.users.NamesByIDs(ctx, []uuid.UUID{a.DoctorID, a.PatientID})
	if err != nil {
		return
	}
	s.notifier.Notify(ctx, "appointment-booked", a.PatientID, map[string]string{
		"patient_name": names[a.PatientID],
		"doctor_name":  names[a.DoctorID],
		"date":         a.ScheduledAt.Format("2006-01-02"),
		"time":         a.ScheduledAt.Format("15:04"),
	})
}

// Complete marks a scheduled appointment as completed. Only the appointment's
// doctor may complete it; a foreign appointment looks like it does not exist.
func (s *Service) Complete(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, doctorID, StatusCompleted)
}

// Cancel cancels a scheduled appointment. Transitions belong to the doctor;
// the patient side is read-only once booked.
func (s *Service) Cancel(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, doctorID, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id, doctorID uuid.UUID, status string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, ErrNotFound
	}

	ok, err := s.repo.Transition(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	a.Status = status
	return a, nil
}

// HasAppointmentBetween reports whether the doctor and patient share any
// non-cancelled appointment. Prescriptions are gated on this.
func (s *Service) HasAppointmentBetween(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s.repo.ExistsBetween(ctx, doctorID, patientID)
}

// PatientRef is a patient the doctor has seen, suitable for picking a
// target when requesting record access.
type PatientRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PatientsForDoctor lists the distinct patients with a non-cancelled
// appointment with the doctor.
func (s *Service) PatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*PatientRef, error) {
	ids, err := s.repo.PatientIDsForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	names, err := s.users.NamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	refs := make([]*PatientRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, &PatientRef{ID: id, Name: names[id]})
	}
	return refs, nil
}

// ForPatient lists the patient's appointments with doctor names.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AppointmentView, int, error) {
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, items)
	return views, total, err
}

// ForDoctor lists the doctor's appointments with patient names.
func (s *Service) ForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AppointmentView, int, error) {
	items, total, err := s.repo.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, items)
	return views, total, err
}

func (s *Service) views(ctx context.Context, items []*Appointment) ([]*AppointmentView, error) {
	ids := make([]uuid.UUID, 0, len(items)*2)
	for _, a := range items {
		ids = append(ids, a.DoctorID, a.PatientID)
	}
	names, err := s.users.NamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*AppointmentView, 0, len(items))
	for _, a := range items {
		views = append(views, &AppointmentView{
			Appointment: *a,
			DoctorName:  names[a.DoctorID],
			PatientName: names[a.PatientID],
		})
	}
	return views, nil
}
