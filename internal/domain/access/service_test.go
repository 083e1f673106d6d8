package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRequestRepo struct {
	requests map[uuid.UUID]*AccessRequest
	grants   *mockGrantRepo

	// hidePending makes HasPending answer false, standing in for a
	// concurrent submit whose row the precheck has not seen yet.
	hidePending bool
	// failGrant makes the grant half of ApproveAndGrant fail.
	failGrant error
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[uuid.UUID]*AccessRequest)}
}

func (m *mockRequestRepo) Create(_ context.Context, r *AccessRequest) error {
	// Mirrors the partial unique index on pending pairs.
	for _, existing := range m.requests {
		if existing.DoctorID == r.DoctorID && existing.PatientID == r.PatientID && existing.Status == StatusPending {
			return ErrDuplicate
		}
	}
	r.ID = uuid.New()
	r.Status = StatusPending
	r.CreatedAt = time.Now()
	m.requests[r.ID] = r
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*AccessRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) HasPending(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	if m.hidePending {
		return false, nil
	}
	for _, r := range m.requests {
		if r.DoctorID == doctorID && r.PatientID == patientID && r.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRequestRepo) ListPendingByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*AccessRequest, int, error) {
	var items []*AccessRequest
	for _, r := range m.requests {
		if r.PatientID == patientID && r.Status == StatusPending {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

func (m *mockRequestRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*AccessRequest, int, error) {
	var items []*AccessRequest
	for _, r := range m.requests {
		if r.DoctorID == doctorID {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

func (m *mockRequestRepo) Resolve(_ context.Context, id uuid.UUID, status string) (bool, error) {
	r, ok := m.requests[id]
	if !ok || r.Status != StatusPending {
		return false, nil
	}
	r.Status = status
	now := time.Now()
	r.ResolvedAt = &now
	return true, nil
}

func (m *mockRequestRepo) ApproveAndGrant(ctx context.Context, id uuid.UUID) (*AccessGrant, bool, error) {
	r, ok := m.requests[id]
	if !ok || r.Status != StatusPending {
		return nil, false, nil
	}
	// Both writes land or neither does; the request stays pending on a
	// grant failure, like the rolled-back transaction would leave it.
	if m.failGrant != nil {
		return nil, false, m.failGrant
	}
	g := &AccessGrant{DoctorID: r.DoctorID, PatientID: r.PatientID, Purpose: r.Reason}
	created, err := m.grants.Create(ctx, g)
	if err != nil {
		return nil, false, err
	}
	if !created {
		for _, existing := range m.grants.grants {
			if existing.DoctorID == r.DoctorID && existing.PatientID == r.PatientID {
				g = existing
			}
		}
	}
	r.Status = StatusApproved
	now := time.Now()
	r.ResolvedAt = &now
	return g, true, nil
}

type mockGrantRepo struct {
	grants map[uuid.UUID]*AccessGrant
}

func newMockGrantRepo() *mockGrantRepo {
	return &mockGrantRepo{grants: make(map[uuid.UUID]*AccessGrant)}
}

func (m *mockGrantRepo) Create(_ context.Context, g *AccessGrant) (bool, error) {
	for _, existing := range m.grants {
		if existing.DoctorID == g.DoctorID && existing.PatientID == g.PatientID {
			return false, nil
		}
	}
	g.ID = uuid.New()
	g.GrantedAt = time.Now()
	m.grants[g.ID] = g
	return true, nil
}

func (m *mockGrantRepo) GetByID(_ context.Context, id uuid.UUID) (*AccessGrant, error) {
	g, ok := m.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *mockGrantRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.grants, id)
	return nil
}

func (m *mockGrantRepo) Exists(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	for _, g := range m.grants {
		if g.DoctorID == doctorID && g.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockGrantRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*AccessGrant, int, error) {
	var items []*AccessGrant
	for _, g := range m.grants {
		if g.PatientID == patientID {
			items = append(items, g)
		}
	}
	return items, len(items), nil
}

func (m *mockGrantRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*AccessGrant, int, error) {
	var items []*AccessGrant
	for _, g := range m.grants {
		if g.DoctorID == doctorID {
			items = append(items, g)
		}
	}
	return items, len(items), nil
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
	requests *mockRequestRepo
	grants   *mockGrantRepo
	notifier *mockNotifier
	doctor   uuid.UUID
	patient  uuid.UUID
}

func newFixture() *fixture {
	doctor := uuid.New()
	patient := uuid.New()
	dir := &mockDirectory{
		roles: map[uuid.UUID]string{doctor: "doctor", patient: "patient"},
		names: map[uuid.UUID]string{doctor: "Dr. Chen", patient: "Alice Patel"},
	}
	requests := newMockRequestRepo()
	grants := newMockGrantRepo()
	requests.grants = grants
	notifier := &mockNotifier{}
	return &fixture{
		svc:      NewService(requests, grants, dir, notifier),
		requests: requests,
		grants:   grants,
		notifier: notifier,
		doctor:   doctor,
		patient:  patient,
	}
}

func TestSubmitRequest(t *testing.T) {
	f := newFixture()

	req, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	if err != nil {
		t.Fatalf("SubmitRequest returned error: %v", err)
	}
	if req.Status != StatusPending {
		t.Errorf("expected pending, got %q", req.Status)
	}
}

func TestSubmitRequest_InvalidReferences(t *testing.T) {
	f := newFixture()

	// Unknown patient
	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, uuid.New(), nil); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference for unknown patient, got %v", err)
	}
	// Patient in the doctor position
	if _, err := f.svc.SubmitRequest(context.Background(), f.patient, f.patient, nil); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference for non-doctor requester, got %v", err)
	}
}

func TestSubmitRequest_DuplicatePending(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for second pending request, got %v", err)
	}
}

func TestSubmitRequest_AlreadyGranted(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	if _, err := f.svc.Approve(context.Background(), req.ID, f.patient); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate when grant already exists, got %v", err)
	}
}

func TestApprove_CreatesGrant(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	grant, err := f.svc.Approve(context.Background(), req.ID, f.patient)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if grant.DoctorID != f.doctor || grant.PatientID != f.patient {
		t.Errorf("grant references wrong pair: %+v", grant)
	}

	ok, err := f.svc.HasAccess(context.Background(), f.doctor, f.patient)
	if err != nil {
		t.Fatalf("HasAccess returned error: %v", err)
	}
	if !ok {
		t.Error("expected access after approval")
	}

	got, _ := f.requests.GetByID(context.Background(), req.ID)
	if got.Status != StatusApproved {
		t.Errorf("expected request approved, got %q", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}
}

func TestApprove_OnlyOwningPatient(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	if _, err := f.svc.Approve(context.Background(), req.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-owner, got %v", err)
	}

	// Request must remain pending after the forbidden attempt.
	got, _ := f.requests.GetByID(context.Background(), req.ID)
	if got.Status != StatusPending {
		t.Errorf("expected request still pending, got %q", got.Status)
	}
}

func TestResolvedRequestIsTerminal(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	if err := f.svc.Reject(context.Background(), req.ID, f.patient); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	// Neither approval nor a second rejection may land on a resolved request.
	if _, err := f.svc.Approve(context.Background(), req.ID, f.patient); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState approving a rejected request, got %v", err)
	}
	if err := f.svc.Reject(context.Background(), req.ID, f.patient); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for double reject, got %v", err)
	}

	ok, _ := f.svc.HasAccess(context.Background(), f.doctor, f.patient)
	if ok {
		t.Error("expected no access after rejection")
	}
}

func TestReject_AllowsReRequest(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	if err := f.svc.Reject(context.Background(), req.ID, f.patient); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil); err != nil {
		t.Errorf("expected re-request after rejection to succeed, got %v", err)
	}
}

func TestAtMostOneGrantPerPair(t *testing.T) {
	f := newFixture()

	// Two pending requests cannot coexist, but an approved request followed
	// by reject+approve on a fresh one must still produce a single grant.
	req1, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	if _, err := f.svc.Approve(context.Background(), req1.ID, f.patient); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	// Force a second approved request through the repo directly to simulate
	// a race, then verify the grant store still holds one grant.
	req2 := &AccessRequest{DoctorID: f.doctor, PatientID: f.patient}
	_ = f.requests.Create(context.Background(), req2)
	if _, err := f.svc.Approve(context.Background(), req2.ID, f.patient); err != nil {
		t.Fatalf("second Approve returned error: %v", err)
	}

	grants, total, err := f.svc.GrantsForPatient(context.Background(), f.patient, 100, 0)
	if err != nil {
		t.Fatalf("GrantsForPatient returned error: %v", err)
	}
	if total != 1 || len(grants) != 1 {
		t.Errorf("expected exactly one grant for the pair, got %d", total)
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	grant, _ := f.svc.Approve(context.Background(), req.ID, f.patient)

	// Someone else's revoke is forbidden.
	if err := f.svc.Revoke(context.Background(), grant.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	if err := f.svc.Revoke(context.Background(), grant.ID, f.patient); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	ok, _ := f.svc.HasAccess(context.Background(), f.doctor, f.patient)
	if ok {
		t.Error("expected no access after revoke")
	}

	// Doctor may request again after revocation.
	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil); err != nil {
		t.Errorf("expected new request after revoke to succeed, got %v", err)
	}
}

func TestViews_IncludeNames(t *testing.T) {
	f := newFixture()

	_, _ = f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)

	pending, _, err := f.svc.PendingForPatient(context.Background(), f.patient, 100, 0)
	if err != nil {
		t.Fatalf("PendingForPatient returned error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
	if pending[0].DoctorName != "Dr. Chen" {
		t.Errorf("expected doctor name resolved, got %q", pending[0].DoctorName)
	}
	if pending[0].PatientName != "Alice Patel" {
		t.Errorf("expected patient name resolved, got %q", pending[0].PatientName)
	}
}

func TestApprove_GrantFailureLeavesRequestPending(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)

	f.requests.failGrant = errors.New("insert failed")
	if _, err := f.svc.Approve(context.Background(), req.ID, f.patient); err == nil {
		t.Fatal("expected error when grant insertion fails")
	}

	// The request must still be pending so the patient can approve again.
	got, _ := f.requests.GetByID(context.Background(), req.ID)
	if got.Status != StatusPending {
		t.Fatalf("expected request still pending after failed approve, got %q", got.Status)
	}

	f.requests.failGrant = nil
	if _, err := f.svc.Approve(context.Background(), req.ID, f.patient); err != nil {
		t.Fatalf("retry after failure returned error: %v", err)
	}
	ok, _ := f.svc.HasAccess(context.Background(), f.doctor, f.patient)
	if !ok {
		t.Error("expected access after retried approval")
	}
}

func TestApprove_CarriesReasonAsPurpose(t *testing.T) {
	f := newFixture()

	reason := "post-op follow-up"
	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, &reason)
	grant, err := f.svc.Approve(context.Background(), req.ID, f.patient)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if grant.Purpose == nil || *grant.Purpose != reason {
		t.Fatalf("expected grant purpose %q, got %v", reason, grant.Purpose)
	}

	grants, _, err := f.svc.GrantsForPatient(context.Background(), f.patient, 100, 0)
	if err != nil {
		t.Fatalf("GrantsForPatient returned error: %v", err)
	}
	if len(grants) != 1 || grants[0].Purpose == nil || *grants[0].Purpose != reason {
		t.Errorf("expected purpose on grant view, got %+v", grants)
	}
}

func TestSubmitRequest_RaceFallsBackToStore(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	// Hide the pending row from the precheck; the store's uniqueness rule
	// must still reject the duplicate.
	f.requests.hidePending = true
	if _, err := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate from store, got %v", err)
	}
}

func TestRequestLifecycleNotifies(t *testing.T) {
	f := newFixture()

	req, _ := f.svc.SubmitRequest(context.Background(), f.doctor, f.patient, nil)
	if len(f.notifier.calls) != 1 {
		t.Fatalf("expected 1 notification after submit, got %d", len(f.notifier.calls))
	}
	got := f.notifier.calls[0]
	if got.template != "access-request-received" || got.userID != f.patient {
		t.Errorf("unexpected submit notification: %+v", got)
	}
	if got.data["doctor_name"] != "Dr. Chen" {
		t.Errorf("expected doctor name in data, got %q", got.data["doctor_name"])
	}

	if _, err := f.svc.Approve(context.Background(), req.ID, f.patient); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if len(f.notifier.calls) != 2 {
		t.Fatalf("expected 2 notifications after approve, got %d", len(f.notifier.calls))
	}
	got = f.notifier.calls[1]
	if got.template != "access-request-approved" || got.userID != f.doctor {
		t.Errorf("unexpected approve notification: %+v", got)
	}
}
