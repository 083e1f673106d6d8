package access

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Request statuses. A request starts pending and ends in exactly one of the
// terminal states; terminal requests never change again.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("not allowed")
	ErrInvalidState     = errors.New("request already resolved")
	ErrDuplicate        = errors.New("duplicate request")
	ErrInvalidReference = errors.New("invalid doctor or patient reference")
)

// AccessRequest maps to the access_requests table: a doctor asking a patient
// for permission to view their records.
type AccessRequest struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	DoctorID   uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status     string     `db:"status" json:"status"`
	Reason     *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// AccessGrant maps to the access_grants table: an active permission for a
// doctor to view a patient's records. At most one grant exists per
// (doctor, patient) pair.
type AccessGrant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Purpose   *string   `db:"purpose" json:"purpose,omitempty"`
	GrantedAt time.Time `db:"granted_at" json:"granted_at"`
}

// RequestView is an AccessRequest enriched with display names.
type RequestView struct {
	AccessRequest
	DoctorName  string `json:"doctor_name"`
	PatientName string `json:"patient_name"`
}

// GrantView is an AccessGrant enriched with display names.
type GrantView struct {
	AccessGrant
	DoctorName  string `json:"doctor_name"`
	PatientName string `json:"patient_name"`
}
