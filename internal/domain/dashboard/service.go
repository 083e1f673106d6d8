package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medivault/medivault/internal/domain/access"
	"github.com/medivault/medivault/internal/domain/identity"
	"github.com/medivault/medivault/internal/domain/medication"
	"github.com/medivault/medivault/internal/domain/records"
	"github.com/medivault/medivault/internal/domain/scheduling"
)

var ErrNoAccess = errors.New("no access grant for this patient")

// snapshotLimit caps each sublist on a dashboard. Full lists live behind
// their own paginated endpoints.
const snapshotLimit = 10

type ProfileSource interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
	GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*identity.DoctorProfile, error)
}

type RecordSource interface {
	History(ctx context.Context, patientID uuid.UUID) (*records.MedicalHistory, error)
	ListLabReports(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*records.LabReport, int, error)
}

type PrescriptionSource interface {
	ForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*medication.PrescriptionView, int, error)
	RemindersForPatient(ctx context.Context, patientID uuid.UUID) ([]*medication.MedicationReminder, error)
}

type AppointmentSource interface {
	ForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*scheduling.AppointmentView, int, error)
	ForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*scheduling.AppointmentView, int, error)
}

type AccessSource interface {
	HasAccess(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	PendingForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*access.RequestView, int, error)
	RequestsForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*access.RequestView, int, error)
	GrantsForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*access.GrantView, int, error)
	GrantsForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*access.GrantView, int, error)
}

type Service struct {
	profiles      ProfileSource
	records       RecordSource
	prescriptions PrescriptionSource
	appointments  AppointmentSource
	access        AccessSource
}

func NewService(profiles ProfileSource, records RecordSource, prescriptions PrescriptionSource, appointments AppointmentSource, access AccessSource) *Service {
	return &Service{
		profiles:      profiles,
		records:       records,
		prescriptions: prescriptions,
		appointments:  appointments,
		access:        access,
	}
}

// PatientDashboard is the patient home screen in one payload.
type PatientDashboard struct {
	Profile         *identity.User                   `json:"profile"`
	MedicalHistory  *records.MedicalHistory          `json:"medical_history"`
	Prescriptions   []*medication.PrescriptionView   `json:"prescriptions"`
	Appointments    []*scheduling.AppointmentView    `json:"appointments"`
	LabReports      []*records.LabReport             `json:"lab_reports"`
	PendingRequests []*access.RequestView            `json:"pending_requests"`
	CurrentAccess   []*access.GrantView              `json:"current_access"`
	Reminders       []*medication.MedicationReminder `json:"reminders"`
}

func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID) (*PatientDashboard, error) {
	user, err := s.profiles.GetUser(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	history, err := s.records.History(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	prescriptions, _, err := s.prescriptions.ForPatient(ctx, patientID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	appointments, _, err := s.appointments.ForPatient(ctx, patientID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	labReports, _, err := s.records.ListLabReports(ctx, patientID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load lab reports: %w", err)
	}
	pending, _, err := s.access.PendingForPatient(ctx, patientID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load pending requests: %w", err)
	}
	grants, _, err := s.access.GrantsForPatient(ctx, patientID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}
	reminders, err := s.prescriptions.RemindersForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}

	return &PatientDashboard{
		Profile:         user,
		MedicalHistory:  history,
		Prescriptions:   prescriptions,
		Appointments:    appointments,
		LabReports:      labReports,
		PendingRequests: pending,
		CurrentAccess:   grants,
		Reminders:       reminders,
	}, nil
}

// DoctorDashboard is the doctor home screen in one payload.
type DoctorDashboard struct {
	Profile        *identity.User                `json:"profile"`
	Specialization string                        `json:"specialization"`
	Requests       []*access.RequestView         `json:"requests"`
	Patients       []*access.GrantView           `json:"patients"`
	Appointments   []*scheduling.AppointmentView `json:"appointments"`
}

func (s *Service) ForDoctor(ctx context.Context, doctorID uuid.UUID) (*DoctorDashboard, error) {
	user, err := s.profiles.GetUser(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	profile, err := s.profiles.GetDoctorProfile(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor profile: %w", err)
	}
	requests, _, err := s.access.RequestsForDoctor(ctx, doctorID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	patients, _, err := s.access.GrantsForDoctor(ctx, doctorID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	appointments, _, err := s.appointments.ForDoctor(ctx, doctorID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	return &DoctorDashboard{
		Profile:        user,
		Specialization: profile.Specialization,
		Requests:       requests,
		Patients:       patients,
		Appointments:   appointments,
	}, nil
}

// PatientRecord is the full chart a doctor sees for a granted patient.
type PatientRecord struct {
	Patient        *identity.User                 `json:"patient"`
	MedicalHistory *records.MedicalHistory        `json:"medical_history"`
	LabReports     []*records.LabReport           `json:"lab_reports"`
	Prescriptions  []*medication.PrescriptionView `json:"prescriptions"`
}

// RecordForDoctor returns the patient's chart, provided the doctor holds an
// access grant for that patient.
func (s *Service) RecordForDoctor(ctx context.Context, doctorID, patientID uuid.UUID) (*PatientRecord, error) {
	ok, err := s.access.HasAccess(ctx, doctorID, patientID)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}
	if !ok {
		return nil, ErrNoAccess
	}

	patient, err := s.profiles.GetUser(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	history, err := s.records.History(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	labReports, _, err := s.records.ListLabReports(ctx, patientID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load lab reports: %w", err)
	}
	prescriptions, _, err := s.prescriptions.ForPatient(ctx, patientID, snapshotLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}

	return &PatientRecord{
		Patient:        patient,
		MedicalHistory: history,
		LabReports:     labReports,
		Prescriptions:  prescriptions,
	}, nil
}
