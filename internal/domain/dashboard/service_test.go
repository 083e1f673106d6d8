package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/medivault/medivault/internal/domain/access"
	"github.com/medivault/medivault/internal/domain/identity"
	"github.com/medivault/medivault/internal/domain/medication"
	"github.com/medivault/medivault/internal/domain/records"
	"github.com/medivault/medivault/internal/domain/scheduling"
)

type stubProfiles struct {
	users    map[uuid.UUID]*identity.User
	profiles map[uuid.UUID]*identity.DoctorProfile
}

func (s *stubProfiles) GetUser(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (s *stubProfiles) GetDoctorProfile(_ context.Context, id uuid.UUID) (*identity.DoctorProfile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return p, nil
}

type stubRecords struct {
	history    map[uuid.UUID]*records.MedicalHistory
	labReports map[uuid.UUID][]*records.LabReport
}

func (s *stubRecords) History(_ context.Context, patientID uuid.UUID) (*records.MedicalHistory, error) {
	if h, ok := s.history[patientID]; ok {
		return h, nil
	}
	return &records.MedicalHistory{PatientID: patientID}, nil
}

func (s *stubRecords) ListLabReports(_ context.Context, patientID uuid.UUID, _, _ int) ([]*records.LabReport, int, error) {
	items := s.labReports[patientID]
	return items, len(items), nil
}

type stubPrescriptions struct {
	byPatient map[uuid.UUID][]*medication.PrescriptionView
	reminders map[uuid.UUID][]*medication.MedicationReminder
}

func (s *stubPrescriptions) ForPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*medication.PrescriptionView, int, error) {
	items := s.byPatient[patientID]
	return items, len(items), nil
}

func (s *stubPrescriptions) RemindersForPatient(_ context.Context, patientID uuid.UUID) ([]*medication.MedicationReminder, error) {
	return s.reminders[patientID], nil
}

type stubAppointments struct {
	byPatient map[uuid.UUID][]*scheduling.AppointmentView
	byDoctor  map[uuid.UUID][]*scheduling.AppointmentView
}

func (s *stubAppointments) ForPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*scheduling.AppointmentView, int, error) {
	items := s.byPatient[patientID]
	return items, len(items), nil
}

func (s *stubAppointments) ForDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*scheduling.AppointmentView, int, error) {
	items := s.byDoctor[doctorID]
	return items, len(items), nil
}

type stubAccess struct {
	granted  map[[2]uuid.UUID]bool
	pending  map[uuid.UUID][]*access.RequestView
	requests map[uuid.UUID][]*access.RequestView
	grantsP  map[uuid.UUID][]*access.GrantView
	grantsD  map[uuid.UUID][]*access.GrantView
}

func (s *stubAccess) HasAccess(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s.granted[[2]uuid.UUID{doctorID, patientID}], nil
}

func (s *stubAccess) PendingForPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*access.RequestView, int, error) {
	items := s.pending[patientID]
	return items, len(items), nil
}

func (s *stubAccess) RequestsForDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*access.RequestView, int, error) {
	items := s.requests[doctorID]
	return items, len(items), nil
}

func (s *stubAccess) GrantsForPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*access.GrantView, int, error) {
	items := s.grantsP[patientID]
	return items, len(items), nil
}

func (s *stubAccess) GrantsForDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*access.GrantView, int, error) {
	items := s.grantsD[doctorID]
	return items, len(items), nil
}

type fixture struct {
	svc       *Service
	profiles  *stubProfiles
	records   *stubRecords
	rx        *stubPrescriptions
	appts     *stubAppointments
	access    *stubAccess
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		doctorID:  uuid.New(),
		patientID: uuid.New(),
	}
	f.profiles = &stubProfiles{
		users:    map[uuid.UUID]*identity.User{},
		profiles: map[uuid.UUID]*identity.DoctorProfile{},
	}
	f.profiles.users[f.patientID] = &identity.User{ID: f.patientID, Name: "Ravi Kumar", Role: identity.RolePatient}
	f.profiles.users[f.doctorID] = &identity.User{ID: f.doctorID, Name: "Dr. Asha Rao", Role: identity.RoleDoctor}
	f.profiles.profiles[f.doctorID] = &identity.DoctorProfile{UserID: f.doctorID, Specialization: "Cardiology"}
	f.records = &stubRecords{
		history:    map[uuid.UUID]*records.MedicalHistory{},
		labReports: map[uuid.UUID][]*records.LabReport{},
	}
	f.rx = &stubPrescriptions{
		byPatient: map[uuid.UUID][]*medication.PrescriptionView{},
		reminders: map[uuid.UUID][]*medication.MedicationReminder{},
	}
	f.appts = &stubAppointments{
		byPatient: map[uuid.UUID][]*scheduling.AppointmentView{},
		byDoctor:  map[uuid.UUID][]*scheduling.AppointmentView{},
	}
	f.access = &stubAccess{
		granted:  map[[2]uuid.UUID]bool{},
		pending:  map[uuid.UUID][]*access.RequestView{},
		requests: map[uuid.UUID][]*access.RequestView{},
		grantsP:  map[uuid.UUID][]*access.GrantView{},
		grantsD:  map[uuid.UUID][]*access.GrantView{},
	}
	f.svc = NewService(f.profiles, f.records, f.rx, f.appts, f.access)
	return f
}

func TestForPatient(t *testing.T) {
	f := newFixture()
	bg := "O+"
	f.records.history[f.patientID] = &records.MedicalHistory{PatientID: f.patientID, BloodGroup: &bg}
	f.records.labReports[f.patientID] = []*records.LabReport{{PatientID: f.patientID, TestName: "CBC"}}
	f.rx.byPatient[f.patientID] = []*medication.PrescriptionView{{DoctorName: "Dr. Asha Rao"}}
	f.rx.reminders[f.patientID] = []*medication.MedicationReminder{{PatientID: f.patientID, MedicineName: "Metformin"}}
	f.access.pending[f.patientID] = []*access.RequestView{{DoctorName: "Dr. Asha Rao"}}
	f.access.grantsP[f.patientID] = []*access.GrantView{{DoctorName: "Dr. Asha Rao"}}

	dash, err := f.svc.ForPatient(context.Background(), f.patientID)
	if err != nil {
		t.Fatalf("ForPatient: %v", err)
	}
	if dash.Profile.Name != "Ravi Kumar" {
		t.Errorf("unexpected profile: %+v", dash.Profile)
	}
	if dash.MedicalHistory.BloodGroup == nil || *dash.MedicalHistory.BloodGroup != "O+" {
		t.Errorf("unexpected history: %+v", dash.MedicalHistory)
	}
	if len(dash.Prescriptions) != 1 || len(dash.LabReports) != 1 || len(dash.Reminders) != 1 {
		t.Errorf("missing sublists: %+v", dash)
	}
	if len(dash.PendingRequests) != 1 || len(dash.CurrentAccess) != 1 {
		t.Errorf("missing access sublists: %+v", dash)
	}
}

func TestForPatient_EmptyHistoryIsNotAnError(t *testing.T) {
	f := newFixture()

	dash, err := f.svc.ForPatient(context.Background(), f.patientID)
	if err != nil {
		t.Fatalf("ForPatient: %v", err)
	}
	if dash.MedicalHistory == nil || dash.MedicalHistory.PatientID != f.patientID {
		t.Errorf("expected empty history shell, got %+v", dash.MedicalHistory)
	}
}

func TestForDoctor(t *testing.T) {
	f := newFixture()
	f.access.requests[f.doctorID] = []*access.RequestView{{PatientName: "Ravi Kumar"}}
	f.access.grantsD[f.doctorID] = []*access.GrantView{{PatientName: "Ravi Kumar"}}
	f.appts.byDoctor[f.doctorID] = []*scheduling.AppointmentView{{DoctorName: "Dr. Asha Rao"}}

	dash, err := f.svc.ForDoctor(context.Background(), f.doctorID)
	if err != nil {
		t.Fatalf("ForDoctor: %v", err)
	}
	if dash.Specialization != "Cardiology" {
		t.Errorf("unexpected specialization: %q", dash.Specialization)
	}
	if len(dash.Requests) != 1 || len(dash.Patients) != 1 || len(dash.Appointments) != 1 {
		t.Errorf("missing sublists: %+v", dash)
	}
}

func TestRecordForDoctor_RequiresGrant(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RecordForDoctor(context.Background(), f.doctorID, f.patientID)
	if !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}
}

func TestRecordForDoctor(t *testing.T) {
	f := newFixture()
	f.access.granted[[2]uuid.UUID{f.doctorID, f.patientID}] = true
	f.records.labReports[f.patientID] = []*records.LabReport{{PatientID: f.patientID, TestName: "Lipid Panel"}}
	f.rx.byPatient[f.patientID] = []*medication.PrescriptionView{{PatientName: "Ravi Kumar"}}

	record, err := f.svc.RecordForDoctor(context.Background(), f.doctorID, f.patientID)
	if err != nil {
		t.Fatalf("RecordForDoctor: %v", err)
	}
	if record.Patient.Name != "Ravi Kumar" {
		t.Errorf("unexpected patient: %+v", record.Patient)
	}
	if len(record.LabReports) != 1 || record.LabReports[0].TestName != "Lipid Panel" {
		t.Errorf("unexpected lab reports: %+v", record.LabReports)
	}
	if len(record.Prescriptions) != 1 {
		t.Errorf("unexpected prescriptions: %+v", record.Prescriptions)
	}
}
