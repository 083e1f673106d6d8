package access

import (
	"context"

	"github.com/google/uuid"
)

type RequestRepository interface {
	Create(ctx context.Context, r *AccessRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error)
	HasPending(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListPendingByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error)
	// Resolve transitions a pending request to the given terminal status.
	// Returns false when the request was not pending, so concurrent
	// resolutions cannot both win.
	Resolve(ctx context.Context, id uuid.UUID, status string) (bool, error)
	// ApproveAndGrant resolves a pending request as approved and inserts
	// the matching grant in a single transaction, carrying the request's
	// reason over as the grant's purpose. Returns false when the request
	// was not pending; neither write lands in that case.
	ApproveAndGrant(ctx context.Context, id uuid.UUID) (*AccessGrant, bool, error)
}

type GrantRepository interface {
	// Create inserts a grant unless one already exists for the pair.
	// Returns false when the pair was already granted.
	Create(ctx context.Context, g *AccessGrant) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error)
}
