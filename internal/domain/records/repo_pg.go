package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const historyCols = `id, patient_id, blood_group, height_cm, weight_kg, allergies, chronic_conditions, past_surgeries, updated_at`

func (r *repoPG) GetHistory(ctx context.Context, patientID uuid.UUID) (*MedicalHistory, error) {
	var h MedicalHistory
	err := r.pool.QueryRow(ctx, `SELECT `+historyCols+` FROM medical_history WHERE patient_id = $1`, patientID).
		Scan(&h.ID, &h.PatientID, &h.BloodGroup, &h.HeightCM, &h.WeightKG,
			&h.Allergies, &h.ChronicConditions, &h.PastSurgeries, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &h, err
}

func (r *repoPG) UpsertHistory(ctx context.Context, h *MedicalHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO medical_history (id, patient_id, blood_group, height_cm, weight_kg,
			allergies, chronic_conditions, past_surgeries)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (patient_id) DO UPDATE SET
			blood_group = EXCLUDED.blood_group,
			height_cm = EXCLUDED.height_cm,
			weight_kg = EXCLUDED.weight_kg,
			allergies = EXCLUDED.allergies,
			chronic_conditions = EXCLUDED.chronic_conditions,
			past_surgeries = EXCLUDED.past_surgeries,
			updated_at = NOW()`,
		h.ID, h.PatientID, h.BloodGroup, h.HeightCM, h.WeightKG,
		h.Allergies, h.ChronicConditions, h.PastSurgeries)
	return err
}

const labCols = `id, patient_id, test_name, result, notes, report_date, created_at`

func (r *repoPG) scanLabReport(row pgx.Row) (*LabReport, error) {
	var l LabReport
	err := row.Scan(&l.ID, &l.PatientID, &l.TestName, &l.Result, &l.Notes, &l.ReportDate, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &l, err
}

func (r *repoPG) CreateLabReport(ctx context.Context, l *LabReport) error {
	l.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lab_reports (id, patient_id, test_name, result, notes, report_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.ID, l.PatientID, l.TestName, l.Result, l.Notes, l.ReportDate)
	return err
}

func (r *repoPG) GetLabReport(ctx context.Context, id uuid.UUID) (*LabReport, error) {
	return r.scanLabReport(r.pool.QueryRow(ctx, `SELECT `+labCols+` FROM lab_reports WHERE id = $1`, id))
}

func (r *repoPG) DeleteLabReport(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM lab_reports WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListLabReports(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lab_reports WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+labCols+` FROM lab_reports
		WHERE patient_id = $1 ORDER BY report_date DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabReport
	for rows.Next() {
		l, err := r.scanLabReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}
