package medication

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserDirectory resolves roles and display names. Satisfied by the identity
// service.
type UserDirectory interface {
	RoleOf(ctx context.Context, id uuid.UUID) (string, error)
	NamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// AppointmentChecker reports whether the doctor and patient have ever had a
// non-cancelled appointment. Prescriptions are gated on this.
type AppointmentChecker interface {
	HasAppointmentBetween(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	prescriptions PrescriptionRepository
	reminders     ReminderRepository
	users         UserDirectory
	appointments  AppointmentChecker
}

func NewService(prescriptions PrescriptionRepository, reminders ReminderRepository, users UserDirectory, appointments AppointmentChecker) *Service {
	return &Service{prescriptions: prescriptions, reminders: reminders, users: users, appointments: appointments}
}

// MedicineInput is one medicine line on a new prescription.
type MedicineInput struct {
	Name         string  `json:"name"`
	Dosage       string  `json:"dosage"`
	Frequency    *string `json:"frequency,omitempty"`
	Duration     *string `json:"duration,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// Prescribe writes a prescription with at least one medicine. The target must
// be a patient, and the doctor must have had an appointment with them.
func (s *Service) Prescribe(ctx context.Context, doctorID, patientID uuid.UUID, diagnosis, notes *string, medicines []MedicineInput) (*Prescription, error) {
	if len(medicines) == 0 {
		return nil, fmt.Errorf("at least one medicine is required")
	}
	role, err := s.users.RoleOf(ctx, patientID)
	if err != nil || role != "patient" {
		return nil, ErrNotFound
	}
	entries := make([]*MedicineEntry, 0, len(medicines))
	for i, m := range medicines {
		name := strings.TrimSpace(m.Name)
		dosage := strings.TrimSpace(m.Dosage)
		if name == "" {
			return nil, fmt.Errorf("medicine %d: name is required", i+1)
		}
		if dosage == "" {
			return nil, fmt.Errorf("medicine %d: dosage is required", i+1)
		}
		entries = append(entries, &MedicineEntry{
			Name:         name,
			Dosage:       dosage,
			Frequency:    m.Frequency,
			Duration:     m.Duration,
			Instructions: m.Instructions,
		})
	}

	ok, err := s.appointments.HasAppointmentBetween(ctx, doctorID, patientID)
	if err != nil {
		return nil, fmt.Errorf("check appointment: %w", err)
	}
	if !ok {
		return nil, ErrNoAppointment
	}

	p := &Prescription{
		DoctorID:  doctorID,
		PatientID: patientID,
		Diagnosis: diagnosis,
		Notes:     notes,
		CreatedAt: time.Now(),
	}
	if err := s.prescriptions.Create(ctx, p, entries); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	return p, nil
}

func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PrescriptionView, int, error) {
	items, total, err := s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, items)
	return views, total, err
}

func (s *Service) ForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*PrescriptionView, int, error) {
	items, total, err := s.prescriptions.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, items)
	return views, total, err
}

func (s *Service) views(ctx context.Context, items []*Prescription) ([]*PrescriptionView, error) {
	ids := make([]uuid.UUID, 0, len(items))
	userIDs := make([]uuid.UUID, 0, len(items)*2)
	for _, p := range items {
		ids = append(ids, p.ID)
		userIDs = append(userIDs, p.DoctorID, p.PatientID)
	}
	medicines, err := s.prescriptions.MedicinesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	names, err := s.users.NamesByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	views := make([]*PrescriptionView, 0, len(items))
	for _, p := range items {
		views = append(views, &PrescriptionView{
			Prescription: *p,
			DoctorName:   names[p.DoctorID],
			PatientName:  names[p.PatientID],
			Medicines:    medicines[p.ID],
		})
	}
	return views, nil
}

// ReminderInput describes a new daily medication reminder. RemindAt must be
// a 24h "HH:MM" wall-clock time; StartDate defaults to today. When
// MedicineEntryID names one of the patient's prescribed medicines, blank
// name and dosage fields are filled in from the entry.
type ReminderInput struct {
	MedicineEntryID *uuid.UUID `json:"medicine_entry_id,omitempty"`
	MedicineName    string     `json:"medicine_name"`
	Dosage          string     `json:"dosage"`
	RemindAt        string     `json:"remind_at"`
	StartDate       time.Time  `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

func (s *Service) AddReminder(ctx context.Context, patientID uuid.UUID, in ReminderInput) (*MedicationReminder, error) {
	medicineName := strings.TrimSpace(in.MedicineName)
	dosage := strings.TrimSpace(in.Dosage)
	if in.MedicineEntryID != nil {
		entry, err := s.prescriptions.EntryForPatient(ctx, *in.MedicineEntryID, patientID)
		if err != nil {
			return nil, err
		}
		if medicineName == "" {
			medicineName = entry.Name
		}
		if dosage == "" {
			dosage = entry.Dosage
		}
	}
	if medicineName == "" {
		return nil, fmt.Errorf("medicine_name is required")
	}
	if dosage == "" {
		return nil, fmt.Errorf("dosage is required")
	}
	if _, err := time.Parse("15:04", in.RemindAt); err != nil {
		return nil, fmt.Errorf("remind_at must be in HH:MM format")
	}
	start := in.StartDate
	if start.IsZero() {
		start = time.Now()
	}
	if in.EndDate != nil && in.EndDate.Before(start) {
		return nil, fmt.Errorf("end_date must not be before start_date")
	}
	r := &MedicationReminder{
		PatientID:       patientID,
		MedicineEntryID: in.MedicineEntryID,
		MedicineName:    medicineName,
		Dosage:          dosage,
		RemindAt:        in.RemindAt,
		StartDate:       start,
		EndDate:         in.EndDate,
		Active:          true,
		CreatedAt:       time.Now(),
	}
	if err := s.reminders.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	return r, nil
}

// ReminderUpdate carries the mutable fields of a reminder. Nil fields are
// left unchanged.
type ReminderUpdate struct {
	MedicineName *string    `json:"medicine_name,omitempty"`
	Dosage       *string    `json:"dosage,omitempty"`
	RemindAt     *string    `json:"remind_at,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Active       *bool      `json:"active,omitempty"`
}

func (s *Service) UpdateReminder(ctx context.Context, patientID, id uuid.UUID, upd ReminderUpdate) (*MedicationReminder, error) {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.PatientID != patientID {
		return nil, ErrForbidden
	}
	if upd.MedicineName != nil {
		name := strings.TrimSpace(*upd.MedicineName)
		if name == "" {
			return nil, fmt.Errorf("medicine_name is required")
		}
		r.MedicineName = name
	}
	if upd.Dosage != nil {
		dosage := strings.TrimSpace(*upd.Dosage)
		if dosage == "" {
			return nil, fmt.Errorf("dosage is required")
		}
		r.Dosage = dosage
	}
	if upd.RemindAt != nil {
		if _, err := time.Parse("15:04", *upd.RemindAt); err != nil {
			return nil, fmt.Errorf("remind_at must be in HH:MM format")
		}
		r.RemindAt = *upd.RemindAt
	}
	if upd.EndDate != nil {
		if upd.EndDate.Before(r.StartDate) {
			return nil, fmt.Errorf("end_date must not be before start_date")
		}
		r.EndDate = upd.EndDate
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	if err := s.reminders.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	return r, nil
}

func (s *Service) DeleteReminder(ctx context.Context, patientID, id uuid.UUID) error {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r.PatientID != patientID {
		return ErrForbidden
	}
	return s.reminders.Delete(ctx, id)
}

func (s *Service) RemindersForPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicationReminder, error) {
	return s.reminders.ListByPatient(ctx, patientID)
}

// DueAt lists reminders firing at the given "HH:MM" with delivery details.
func (s *Service) DueAt(ctx context.Context, hhmm string) ([]*DueReminder, error) {
	return s.reminders.DueAt(ctx, hhmm)
}
