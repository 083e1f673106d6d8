package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository { return &requestRepoPG{pool: pool} }

const requestCols = `id, doctor_id, patient_id, status, reason, created_at, resolved_at`

func scanRequest(row pgx.Row) (*AccessRequest, error) {
	var a AccessRequest
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.Status, &a.Reason, &a.CreatedAt, &a.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *requestRepoPG) Create(ctx context.Context, a *AccessRequest) error {
	a.ID = uuid.New()
	a.Status = StatusPending
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_requests (id, doctor_id, patient_id, status, reason)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.DoctorID, a.PatientID, a.Status, a.Reason)
	// The partial unique index on pending (doctor_id, patient_id) pairs
	// backstops the HasPending precheck under concurrent submits.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestCols+` FROM access_requests WHERE id = $1`, id))
}

func (r *requestRepoPG) HasPending(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM access_requests
			WHERE doctor_id = $1 AND patient_id = $2 AND status = $3)`,
		doctorID, patientID, StatusPending).Scan(&exists)
	return exists, err
}

func (r *requestRepoPG) ListPendingByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_requests WHERE patient_id = $1 AND status = $2`,
		patientID, StatusPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestCols+` FROM access_requests
		WHERE patient_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		patientID, StatusPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessRequest
	for rows.Next() {
		a, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *requestRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_requests WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestCols+` FROM access_requests
		WHERE doctor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessRequest
	for rows.Next() {
		a, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *requestRepoPG) ApproveAndGrant(ctx context.Context, id uuid.UUID) (*AccessGrant, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	g := &AccessGrant{ID: uuid.New()}
	err = tx.QueryRow(ctx, `
		UPDATE access_requests SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING doctor_id, patient_id, reason`,
		id, StatusApproved, StatusPending).Scan(&g.DoctorID, &g.PatientID, &g.Purpose)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// A grant that sneaked in for the pair wins; the approval still lands.
	if _, err := tx.Exec(ctx, `
		INSERT INTO access_grants (id, doctor_id, patient_id, purpose)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (doctor_id, patient_id) DO NOTHING`,
		g.ID, g.DoctorID, g.PatientID, g.Purpose); err != nil {
		return nil, false, err
	}
	g, err = scanGrant(tx.QueryRow(ctx, `SELECT `+grantCols+` FROM access_grants
		WHERE doctor_id = $1 AND patient_id = $2`, g.DoctorID, g.PatientID))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return g, true, nil
}

func (r *requestRepoPG) Resolve(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	// The status guard makes concurrent approve/reject race-safe: only the
	// first resolution matches a pending row.
	tag, err := r.pool.Exec(ctx, `
		UPDATE access_requests SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, status, StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type grantRepoPG struct{ pool *pgxpool.Pool }

func NewGrantRepoPG(pool *pgxpool.Pool) GrantRepository { return &grantRepoPG{pool: pool} }

const grantCols = `id, doctor_id, patient_id, purpose, granted_at`

func scanGrant(row pgx.Row) (*AccessGrant, error) {
	var g AccessGrant
	err := row.Scan(&g.ID, &g.DoctorID, &g.PatientID, &g.Purpose, &g.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &g, err
}

func (r *grantRepoPG) Create(ctx context.Context, g *AccessGrant) (bool, error) {
	g.ID = uuid.New()
	// The unique index on (doctor_id, patient_id) enforces at most one grant
	// per pair even under concurrent approvals.
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO access_grants (id, doctor_id, patient_id, purpose)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (doctor_id, patient_id) DO NOTHING`,
		g.ID, g.DoctorID, g.PatientID, g.Purpose)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *grantRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	return scanGrant(r.pool.QueryRow(ctx, `SELECT `+grantCols+` FROM access_grants WHERE id = $1`, id))
}

func (r *grantRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM access_grants WHERE id = $1`, id)
	return err
}

func (r *grantRepoPG) Exists(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM access_grants WHERE doctor_id = $1 AND patient_id = $2)`,
		doctorID, patientID).Scan(&exists)
	return exists, err
}

func (r *grantRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_grants WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+grantCols+` FROM access_grants
		WHERE patient_id = $1 ORDER BY granted_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *grantRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AccessGrant, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_grants WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+grantCols+` FROM access_grants
		WHERE doctor_id = $1 ORDER BY granted_at DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}
