package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Status = StatusScheduled
	a.CreatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) Transition(_ context.Context, id uuid.UUID, status string) (bool, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != StatusScheduled {
		return false, nil
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockRepo) ExistsBetween(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.PatientID == patientID && a.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) PatientIDsForDoctor(_ context.Context, doctorID uuid.UUID) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Status != StatusCancelled && !seen[a.PatientID] {
			seen[a.PatientID] = true
			ids = append(ids, a.PatientID)
		}
	}
	return ids, nil
}

type mockDirectory struct {
	roles map[uuid.UUID]string
	names map[uuid.UUID]string
}

func (m *mockDirectory) RoleOf(_ context.Context, id uuid.UUID) (string, error) {
	role, ok := m.roles[id]
	if !ok {
		return "", errors.New("user not found")
	}
	return role, nil
}

func (m *mockDirectory) NamesByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string)
	for _, id := range ids {
		if n, ok := m.names[id]; ok {
			names[id] = n
		}
	}
	return names, nil
}

type notifyCall struct {
	template string
	userID   uuid.UUID
	data     map[string]string
}

type mockNotifier struct {
	calls []notifyCall
}

func (m *mockNotifier) Notify(_ context.Context, templateID string, userID uuid.UUID, data map[string]string) {
	m.calls = append(m.calls, notifyCall{template: templateID, userID: userID, data: data})
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	notifier *mockNotifier
	doctor   uuid.UUID
	patient  uuid.UUID
}

func newFixture() *fixture {
	doctor := uuid.New()
	patient := uuid.New()
	repo := newMockRepo()
	dir := &mockDirectory{
		roles: map[uuid.UUID]string{doctor: "doctor", patient: "patient"},
		names: map[uuid.UUID]string{doctor: "Dr. Chen", patient: "Alice Patel"},
	}
	notifier := &mockNotifier{}
	return &fixture{svc: NewService(repo, dir, notifier), repo: repo, notifier: notifier, doctor: doctor, patient: patient}
}

func future() time.Time { return time.Now().Add(24 * time.Hour) }

func TestBook(t *testing.T) {
	f := newFixture()

	a, err := f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %q", a.Status)
	}
}

func TestBook_Validation(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Book(context.Background(), f.patient, f.doctor, time.Time{}, nil); err == nil {
		t.Error("expected error for missing time")
	}
	if _, err := f.svc.Book(context.Background(), f.patient, f.doctor, time.Now().Add(-time.Hour), nil); err == nil {
		t.Error("expected error for past time")
	}
	if _, err := f.svc.Book(context.Background(), f.patient, uuid.New(), future(), nil); err == nil {
		t.Error("expected error for unknown doctor")
	}
	// A patient cannot sit on the doctor side of a booking.
	if _, err := f.svc.Book(context.Background(), f.patient, f.patient, future(), nil); err == nil {
		t.Error("expected error when doctor reference is a patient")
	}
}

func TestComplete(t *testing.T) {
	f := newFixture()

	a, _ := f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)

	got, err := f.svc.Complete(context.Background(), a.ID, f.doctor)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %q", got.Status)
	}
}

func TestComplete_ForeignAppointmentLooksMissing(t *testing.T) {
	f := newFixture()

	a, _ := f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)

	if _, err := f.svc.Complete(context.Background(), a.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another doctor, got %v", err)
	}

	got, _ := f.repo.GetByID(context.Background(), a.ID)
	if got.Status != StatusScheduled {
		t.Errorf("expected appointment untouched, got %q", got.Status)
	}
}

func TestTerminalStates(t *testing.T) {
	f := newFixture()

	a, _ := f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)
	if _, err := f.svc.Cancel(context.Background(), a.ID, f.doctor); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	if _, err := f.svc.Complete(context.Background(), a.ID, f.doctor); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState completing a cancelled appointment, got %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), a.ID, f.doctor); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for double cancel, got %v", err)
	}
}

func TestCancel_DoctorOnly(t *testing.T) {
	f := newFixture()

	a, _ := f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)

	// The booking patient cannot cancel; transitions belong to the doctor.
	if _, err := f.svc.Cancel(context.Background(), a.ID, f.patient); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for patient cancel, got %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), a.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a stranger, got %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), a.ID, f.doctor); err != nil {
		t.Errorf("doctor cancel failed: %v", err)
	}
}

func TestHasAppointmentBetween(t *testing.T) {
	f := newFixture()

	ok, _ := f.svc.HasAppointmentBetween(context.Background(), f.doctor, f.patient)
	if ok {
		t.Error("expected no appointment initially")
	}

	a, _ := f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)
	ok, _ = f.svc.HasAppointmentBetween(context.Background(), f.doctor, f.patient)
	if !ok {
		t.Error("expected appointment found after booking")
	}

	// Cancelled appointments do not count.
	_, _ = f.svc.Cancel(context.Background(), a.ID, f.doctor)
	ok, _ = f.svc.HasAppointmentBetween(context.Background(), f.doctor, f.patient)
	if ok {
		t.Error("expected cancelled appointment to not count")
	}
}

func TestForPatient_IncludesNames(t *testing.T) {
	f := newFixture()

	_, _ = f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)

	items, total, err := f.svc.ForPatient(context.Background(), f.patient, 100, 0)
	if err != nil {
		t.Fatalf("ForPatient returned error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected one appointment, got %d", total)
	}
	if items[0].DoctorName != "Dr. Chen" {
		t.Errorf("expected doctor name resolved, got %q", items[0].DoctorName)
	}
}

func TestPatientsForDoctor_Distinct(t *testing.T) {
	f := newFixture()

	first, err := f.svc.Book(context.Background(), f.patient, f.doctor, future(), nil)
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	if _, err := f.svc.Book(context.Background(), f.patient, f.doctor, future().Add(time.Hour), nil); err != nil {
		t.Fatalf("Book returned error: %v", err)
	}

	refs, err := f.svc.PatientsForDoctor(context.Background(), f.doctor)
	if err != nil {
		t.Fatalf("PatientsForDoctor returned error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected one distinct patient, got %d", len(refs))
	}
	if refs[0].ID != f.patient || refs[0].Name != "Alice Patel" {
		t.Errorf("unexpected patient ref: %+v", refs[0])
	}

	// Cancelling every appointment removes the patient from the roster.
	if _, err := f.svc.Cancel(context.Background(), first.ID, f.doctor); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	items, _, _ := f.svc.ForPatient(context.Background(), f.patient, 100, 0)
	for _, a := range items {
		if a.Status == StatusScheduled {
			if _, err := f.svc.Cancel(context.Background(), a.ID, f.doctor); err != nil {
				t.Fatalf("Cancel returned error: %v", err)
			}
		}
	}
	refs, err = f.svc.PatientsForDoctor(context.Background(), f.doctor)
	if err != nil {
		t.Fatalf("PatientsForDoctor returned error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected empty roster after cancellations, got %d", len(refs))
	}
}

func TestBook_NotifiesPatient(t *testing.T) {
	f := newFixture()

	at := future()
	if _, err := f.svc.Book(context.Background(), f.patient, f.doctor, at, nil); err != nil {
		t.Fatalf("Book returned error: %v", err)
	}

	if len(f.notifier.calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.notifier.calls))
	}
	got := f.notifier.calls[0]
	if got.template != "appointment-booked" || got.userID != f.patient {
		t.Errorf("unexpected notification: %+v", got)
	}
	if got.data["date"] != at.Format("2006-01-02") || got.data["time"] != at.Format("15:04") {
		t.Errorf("unexpected schedule data: %+v", got.data)
	}
	if got.data["doctor_name"] != "Dr. Chen" {
		t.Errorf("expected doctor name in data, got %q", got.data["doctor_name"])
	}
}
