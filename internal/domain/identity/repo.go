package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	CreateDoctorProfile(ctx context.Context, p *DoctorProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	NamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
}
