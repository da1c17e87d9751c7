package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// =========== Mock Repositories ===========

// mockStore is shared by the mock repositories. err, when set, is returned
// from every call.
type mockStore struct {
	mu            sync.Mutex
	nextID        int64
	records       map[int64]*MedicalRecord
	prescriptions map[int64]*Prescription
	allergies     map[int64]*Allergy
	immunizations map[int64]*Immunization
	labTests      map[int64]*LabTest
	err           error
}

func newMockStore() *mockStore {
	return &mockStore{
		records:       make(map[int64]*MedicalRecord),
		prescriptions: make(map[int64]*Prescription),
		allergies:     make(map[int64]*Allergy),
		immunizations: make(map[int64]*Immunization),
		labTests:      make(map[int64]*LabTest),
	}
}

func (s *mockStore) stores() Stores {
	return Stores{
		Records:       &mockRecordRepo{s},
		Prescriptions: &mockPrescriptionRepo{s},
		Allergies:     &mockAllergyRepo{s},
		Immunizations: &mockImmunizationRepo{s},
		LabTests:      &mockLabTestRepo{s},
	}
}

func (s *mockStore) id() int64 {
	s.nextID++
	return s.nextID
}

// prescription returns a copy of the stored row, or nil.
func (s *mockStore) prescription(id int64) *Prescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prescriptions[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func missing(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// sortDesc orders newest first, breaking ties by id.
func sortDesc[T any](items []T, at func(T) time.Time, id func(T) int64) []T {
	sort.Slice(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(items[i]) > id(items[j])
	})
	return items
}

type mockRecordRepo struct{ s *mockStore }

func (m *mockRecordRepo) Create(_ context.Context, r *MedicalRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return m.s.err
	}
	r.ID = m.s.id()
	cp := *r
	m.s.records[r.ID] = &cp
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id int64) (*MedicalRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	r, ok := m.s.records[id]
	if !ok {
		return nil, missing("medical record", id)
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecordRepo) filter(keep func(*MedicalRecord) bool) ([]*MedicalRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	var out []*MedicalRecord
	for _, r := range m.s.records {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return sortDesc(out, func(r *MedicalRecord) time.Time { return r.CreatedAt }, func(r *MedicalRecord) int64 { return r.ID }), nil
}

func (m *mockRecordRepo) ListByPatient(_ context.Context, patientID int64) ([]*MedicalRecord, error) {
	return m.filter(func(r *MedicalRecord) bool { return r.PatientID == patientID })
}

func (m *mockRecordRepo) ListByDoctor(_ context.Context, doctorID int64) ([]*MedicalRecord, error) {
	return m.filter(func(r *MedicalRecord) bool { return r.DoctorID == doctorID })
}

func (m *mockRecordRepo) Update(_ context.Context, id int64, in *UpdateMedicalRecordInput, now time.Time) (*MedicalRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	r, ok := m.s.records[id]
	if !ok {
		return nil, missing("medical record", id)
	}
	if in.AppointmentID != nil {
		r.AppointmentID = in.AppointmentID
	}
	if in.RecordType != nil {
		r.RecordType = *in.RecordType
	}
	if in.Title != nil {
		r.Title = *in.Title
	}
	if in.Description != nil {
		r.Description = in.Description
	}
	if in.Diagnosis != nil {
		r.Diagnosis = in.Diagnosis
	}
	if in.Treatment != nil {
		r.Treatment = in.Treatment
	}
	if in.Notes != nil {
		r.Notes = in.Notes
	}
	if in.Medications != nil {
		r.Medications = in.Medications
	}
	if in.VitalSigns != nil {
		r.VitalSigns = in.VitalSigns
	}
	if in.LabResults != nil {
		r.LabResults = in.LabResults
	}
	if in.ImagingResults != nil {
		r.ImagingResults = in.ImagingResults
	}
	if in.Attachments != nil {
		r.Attachments = in.Attachments
	}
	if in.IsConfidential != nil {
		r.IsConfidential = *in.IsConfidential
	}
	r.UpdatedAt = now
	cp := *r
	return &cp, nil
}

func (m *mockRecordRepo) Delete(_ context.Context, id int64) (*MedicalRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	r, ok := m.s.records[id]
	if !ok {
		return nil, missing("medical record", id)
	}
	delete(m.s.records, id)
	return r, nil
}

func (m *mockRecordRepo) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	items, err := m.ListByPatient(ctx, patientID)
	return len(items), err
}

func (m *mockRecordRepo) Count(context.Context) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.records), m.s.err
}

type mockPrescriptionRepo struct{ s *mockStore }

func (m *mockPrescriptionRepo) Create(_ context.Context, p *Prescription) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return m.s.err
	}
	p.ID = m.s.id()
	cp := *p
	m.s.prescriptions[p.ID] = &cp
	return nil
}

func (m *mockPrescriptionRepo) filter(keep func(*Prescription) bool) ([]*Prescription, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	var out []*Prescription
	for _, p := range m.s.prescriptions {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return sortDesc(out, func(p *Prescription) time.Time { return p.PrescribedAt }, func(p *Prescription) int64 { return p.ID }), nil
}

func (m *mockPrescriptionRepo) ListByPatient(_ context.Context, patientID int64) ([]*Prescription, error) {
	return m.filter(func(p *Prescription) bool { return p.PatientID == patientID })
}

func (m *mockPrescriptionRepo) ListActiveByPatient(_ context.Context, patientID int64, now time.Time) ([]*Prescription, error) {
	return m.filter(func(p *Prescription) bool { return p.PatientID == patientID && p.ActiveAt(now) })
}

// Refill mirrors the conditional update: check and increment happen under
// one lock.
func (m *mockPrescriptionRepo) Refill(_ context.Context, id int64, now time.Time) (*Prescription, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	p, ok := m.s.prescriptions[id]
	if !ok {
		return nil, missing("prescription", id)
	}
	if p.RefillsUsed >= p.RefillsAllowed {
		return nil, fmt.Errorf("prescription %d has no refills remaining: %w", id, ErrConflict)
	}
	p.RefillsUsed++
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}

func (m *mockPrescriptionRepo) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	items, err := m.ListByPatient(ctx, patientID)
	return len(items), err
}

func (m *mockPrescriptionRepo) Count(context.Context) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.prescriptions), m.s.err
}

type mockAllergyRepo struct{ s *mockStore }

func (m *mockAllergyRepo) Create(_ context.Context, a *Allergy) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return m.s.err
	}
	a.ID = m.s.id()
	cp := *a
	m.s.allergies[a.ID] = &cp
	return nil
}

func (m *mockAllergyRepo) ListActiveByPatient(_ context.Context, patientID int64) ([]*Allergy, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	var out []*Allergy
	for _, a := range m.s.allergies {
		if a.PatientID == patientID && a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return sortDesc(out, func(a *Allergy) time.Time { return a.CreatedAt }, func(a *Allergy) int64 { return a.ID }), nil
}

func (m *mockAllergyRepo) CountActiveByPatient(ctx context.Context, patientID int64) (int, error) {
	items, err := m.ListActiveByPatient(ctx, patientID)
	return len(items), err
}

func (m *mockAllergyRepo) Count(context.Context) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.allergies), m.s.err
}

type mockImmunizationRepo struct{ s *mockStore }

func (m *mockImmunizationRepo) Create(_ context.Context, im *Immunization) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return m.s.err
	}
	im.ID = m.s.id()
	cp := *im
	m.s.immunizations[im.ID] = &cp
	return nil
}

func (m *mockImmunizationRepo) ListByPatient(_ context.Context, patientID int64) ([]*Immunization, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	var out []*Immunization
	for _, im := range m.s.immunizations {
		if im.PatientID == patientID {
			cp := *im
			out = append(out, &cp)
		}
	}
	return sortDesc(out, func(im *Immunization) time.Time { return im.AdministeredAt }, func(im *Immunization) int64 { return im.ID }), nil
}

func (m *mockImmunizationRepo) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	items, err := m.ListByPatient(ctx, patientID)
	return len(items), err
}

func (m *mockImmunizationRepo) Count(context.Context) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.immunizations), m.s.err
}

type mockLabTestRepo struct{ s *mockStore }

func (m *mockLabTestRepo) Create(_ context.Context, lt *LabTest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return m.s.err
	}
	lt.ID = m.s.id()
	cp := *lt
	m.s.labTests[lt.ID] = &cp
	return nil
}

func (m *mockLabTestRepo) ListByPatient(_ context.Context, patientID int64) ([]*LabTest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	var out []*LabTest
	for _, lt := range m.s.labTests {
		if lt.PatientID == patientID {
			cp := *lt
			out = append(out, &cp)
		}
	}
	return sortDesc(out, func(lt *LabTest) time.Time { return lt.OrderedAt }, func(lt *LabTest) int64 { return lt.ID }), nil
}

func (m *mockLabTestRepo) CompleteWithResults(_ context.Context, id int64, results Document, now time.Time) (*LabTest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.err != nil {
		return nil, m.s.err
	}
	lt, ok := m.s.labTests[id]
	if !ok {
		return nil, missing("lab test", id)
	}
	lt.Results = results
	lt.Status = LabCompleted
	completed := now
	lt.CompletedAt = &completed
	lt.UpdatedAt = now
	cp := *lt
	return &cp, nil
}

func (m *mockLabTestRepo) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	items, err := m.ListByPatient(ctx, patientID)
	return len(items), err
}

func (m *mockLabTestRepo) Count(context.Context) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.labTests), m.s.err
}
