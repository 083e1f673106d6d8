package access

import (
	"context"

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
	requests RequestRepository
	grants   GrantRepository
	users    UserDirectory
	notifier Notifier
}

func NewService(requests RequestRepository, grants GrantRepository, users UserDirectory, notifier Notifier) *Service {
	return &Service{requests: requests, grants: grants, users: users, notifier: notifier}
}

func (s *Service) notify(ctx context.Context, templateID string, userID, doctorID, patientID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	names, err := s.users.NamesByIDs(ctx, []uuid.UUID{doctorID, patientID})
	if err != nil {
		return
	}
	s.notifier.Notify(ctx, templateID, userID, map[string]string{
		"doctor_name":  names[doctorID],
		"patient_name": names[patientID],
	})
}

// SubmitRequest records a doctor's request to view a patient's records. A
// pair can have at most one pending request at a time, and a doctor who
// already holds a grant cannot request again.
func (s *Service) SubmitRequest(ctx context.Context, doctorID, patientID uuid.UUID, reason *string) (*AccessRequest, error) {
	if err := s.checkRoles(ctx, doctorID, patientID); err != nil {
		return nil, err
	}

	granted, err := s.grants.Exists(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if granted {
		return nil, ErrDuplicate
	}

	pending, err := s.requests.HasPending(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicate
	}

	req := &AccessRequest{DoctorID: doctorID, PatientID: patientID, Reason: reason}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.notify(ctx, "access-request-received", patientID, doctorID, patientID)
	return req, nil
}

func (s *Service) checkRoles(ctx context.Context, doctorID, patientID uuid.UUID) error {
	role, err := s.users.RoleOf(ctx, doctorID)
	if err != nil || role != "doctor" {
		return ErrInvalidReference
	}
	role, err = s.users.RoleOf(ctx, patientID)
	if err != nil || role != "patient" {
		return ErrInvalidReference
	}
	return nil
}

// Approve resolves a pending request in the patient's favor and creates the
// grant. Only the patient the request addresses may approve it, and a
// request can be resolved exactly once. Resolution and grant insertion
// happen in one transaction, so an approved request always has its grant.
func (s *Service) Approve(ctx context.Context, requestID, patientID uuid.UUID) (*AccessGrant, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.PatientID != patientID {
		return nil, ErrForbidden
	}

	grant, resolved, err := s.requests.ApproveAndGrant(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, ErrInvalidState
	}
	s.notify(ctx, "access-request-approved", req.DoctorID, req.DoctorID, req.PatientID)
	return grant, nil
}

// Reject resolves a pending request without granting access. The doctor may
// request again later.
func (s *Service) Reject(ctx context.Context, requestID, patientID uuid.UUID) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.PatientID != patientID {
		return ErrForbidden
	}

	resolved, err := s.requests.Resolve(ctx, requestID, StatusRejected)
	if err != nil {
		return err
	}
	if !resolved {
		return ErrInvalidState
	}
	return nil
}

// Revoke removes a grant. Only the patient who granted it may revoke it.
func (s *Service) Revoke(ctx context.Context, grantID, patientID uuid.UUID) error {
	g, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return err
	}
	if g.PatientID != patientID {
		return ErrForbidden
	}
	return s.grants.Delete(ctx, grantID)
}

// HasAccess reports whether the doctor currently holds a grant for the patient.
func (s *Service) HasAccess(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s.grants.Exists(ctx, doctorID, patientID)
}

// PendingForPatient lists the patient's open requests with doctor names.
func (s *Service) PendingForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*RequestView, int, error) {
	items, total, err := s.requests.ListPendingByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.requestViews(ctx, items)
	return views, total, err
}

// RequestsForDoctor lists all of a doctor's requests, pending and resolved.
func (s *Service) RequestsForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*RequestView, int, error) {
	items, total, err := s.requests.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.requestViews(ctx, items)
	return views, total, err
}

// GrantsForPatient lists who currently holds access to the patient's records.
func (s *Service) GrantsForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*GrantView, int, error) {
	items, total, err := s.grants.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.grantViews(ctx, items)
	return views, total, err
}

// GrantsForDoctor lists the patients the doctor can currently view.
func (s *Service) GrantsForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*GrantView, int, error) {
	items, total, err := s.grants.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.grantViews(ctx, items)
	return views, total, err
}

func (s *Service) requestViews(ctx context.Context, items []*AccessRequest) ([]*RequestView, error) {
	ids := make([]uuid.UUID, 0, len(items)*2)
	for _, r := range items {
		ids = append(ids, r.DoctorID, r.PatientID)
	}
	names, err := s.users.NamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*RequestView, 0, len(items))
	for _, r := range items {
		views = append(views, &RequestView{
			AccessRequest: *r,
			DoctorName:    names[r.DoctorID],
			PatientName:   names[r.PatientID],
		})
	}
	return views, nil
}

func (s *Service) grantViews(ctx context.Context, items []*AccessGrant) ([]*GrantView, error) {
	ids := make([]uuid.UUID, 0, len(items)*2)
	for _, g := range items {
		ids = append(ids, g.DoctorID, g.PatientID)
	}
	names, err := s.users.NamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*GrantView, 0, len(items))
	for _, g := range items {
		views = append(views, &GrantView{
			AccessGrant: *g,
			DoctorName:  names[g.DoctorID],
			PatientName: names[g.PatientID],
		})
	}
	return views, nil
}
