package medication

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const prescriptionCols = `id, doctor_id, patient_id, diagnosis, notes, created_at`

func (r *prescriptionRepoPG) scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.DoctorID, &p.PatientID, &p.Diagnosis, &p.Notes, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription, medicines []*MedicineEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	p.ID = uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO prescriptions (id, doctor_id, patient_id, diagnosis, notes)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.DoctorID, p.PatientID, p.Diagnosis, p.Notes); err != nil {
		return err
	}
	for i, m := range medicines {
		m.ID = uuid.New()
		m.PrescriptionID = p.ID
		m.Position = i
		if _, err := tx.Exec(ctx, `
			INSERT INTO medicine_entries (id, prescription_id, position, name, dosage, frequency, duration, instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			m.ID, m.PrescriptionID, m.Position, m.Name, m.Dosage, m.Frequency, m.Duration, m.Instructions); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return r.scanPrescription(r.pool.QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
}

const medicineCols = `id, prescription_id, position, name, dosage, frequency, duration, instructions`

func (r *prescriptionRepoPG) MedicinesFor(ctx context.Context, prescriptionIDs []uuid.UUID) (map[uuid.UUID][]*MedicineEntry, error) {
	out := make(map[uuid.UUID][]*MedicineEntry, len(prescriptionIDs))
	if len(prescriptionIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+medicineCols+` FROM medicine_entries
		WHERE prescription_id = ANY($1) ORDER BY position`, prescriptionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m MedicineEntry
		if err := rows.Scan(&m.ID, &m.PrescriptionID, &m.Position, &m.Name, &m.Dosage,
			&m.Frequency, &m.Duration, &m.Instructions); err != nil {
			return nil, err
		}
		out[m.PrescriptionID] = append(out[m.PrescriptionID], &m)
	}
	return out, rows.Err()
}

func (r *prescriptionRepoPG) EntryForPatient(ctx context.Context, entryID, patientID uuid.UUID) (*MedicineEntry, error) {
	var m MedicineEntry
	err := r.pool.QueryRow(ctx, `
		SELECT e.id, e.prescription_id, e.position, e.name, e.dosage, e.frequency, e.duration, e.instructions
		FROM medicine_entries e
		JOIN prescriptions p ON p.id = e.prescription_id
		WHERE e.id = $1 AND p.patient_id = $2`,
		entryID, patientID).Scan(&m.ID, &m.PrescriptionID, &m.Position, &m.Name, &m.Dosage,
		&m.Frequency, &m.Duration, &m.Instructions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, `patient_id`, patientID, limit, offset)
}

func (r *prescriptionRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *prescriptionRepoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions WHERE `+col+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+prescriptionCols+` FROM prescriptions
		WHERE `+col+` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := r.scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

type reminderRepoPG struct{ pool *pgxpool.Pool }

func NewReminderRepoPG(pool *pgxpool.Pool) ReminderRepository {
	return &reminderRepoPG{pool: pool}
}

const reminderCols = `id, patient_id, medicine_entry_id, medicine_name, dosage, remind_at, start_date, end_date, active, created_at`

func (r *reminderRepoPG) scanReminder(row pgx.Row) (*MedicationReminder, error) {
	var m MedicationReminder
	err := row.Scan(&m.ID, &m.PatientID, &m.MedicineEntryID, &m.MedicineName, &m.Dosage, &m.RemindAt,
		&m.StartDate, &m.EndDate, &m.Active, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *reminderRepoPG) Create(ctx context.Context, m *MedicationReminder) error {
	m.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO medication_reminders (id, patient_id, medicine_entry_id, medicine_name, dosage, remind_at, start_date, end_date, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.PatientID, m.MedicineEntryID, m.MedicineName, m.Dosage, m.RemindAt, m.StartDate, m.EndDate, m.Active)
	return err
}

func (r *reminderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicationReminder, error) {
	return r.scanReminder(r.pool.QueryRow(ctx,
		`SELECT `+reminderCols+` FROM medication_reminders WHERE id = $1`, id))
}

func (r *reminderRepoPG) Update(ctx context.Context, m *MedicationReminder) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE medication_reminders
		SET medicine_name = $2, dosage = $3, remind_at = $4, start_date = $5, end_date = $6, active = $7
		WHERE id = $1`,
		m.ID, m.MedicineName, m.Dosage, m.RemindAt, m.StartDate, m.EndDate, m.Active)
	return err
}

func (r *reminderRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM medication_reminders WHERE id = $1`, id)
	return err
}

func (r *reminderRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicationReminder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reminderCols+` FROM medication_reminders
		WHERE patient_id = $1 ORDER BY remind_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicationReminder
	for rows.Next() {
		m, err := r.scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *reminderRepoPG) DueAt(ctx context.Context, hhmm string) ([]*DueReminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT mr.id, COALESCE(u.phone, ''), mr.medicine_name, mr.dosage, mr.remind_at
		FROM medication_reminders mr
		JOIN users u ON u.id = mr.patient_id
		WHERE mr.active AND mr.remind_at = $1
		  AND mr.start_date <= CURRENT_DATE
		  AND (mr.end_date IS NULL OR mr.end_date >= CURRENT_DATE)`, hhmm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var due []*DueReminder
	for rows.Next() {
		var d DueReminder
		if err := rows.Scan(&d.ReminderID, &d.Phone, &d.Medicine, &d.Dosage, &d.Time); err != nil {
			return nil, err
		}
		due = append(due, &d)
	}
	return due, rows.Err()
}
