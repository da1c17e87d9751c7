package records

import (
	"context"
	"time"
)

// Repositories return ErrNotFound for a missing id. Lists are ordered most
// recent first and are never paginated.

type MedicalRecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id int64) (*MedicalRecord, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error)
	ListByDoctor(ctx context.Context, doctorID int64) ([]*MedicalRecord, error)
	Update(ctx context.Context, id int64, in *UpdateMedicalRecordInput, now time.Time) (*MedicalRecord, error)
	Delete(ctx context.Context, id int64) (*MedicalRecord, error)
	CountByPatient(ctx context.Context, patientID int64) (int, error)
	Count(ctx context.Context) (int, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Prescription, error)
	ListActiveByPatient(ctx context.Context, patientID int64, now time.Time) ([]*Prescription, error)
	// Refill increments refills_used by one only while refills remain.
	// It returns ErrConflict, leaving the row untouched, when none do.
	Refill(ctx context.Context, id int64, now time.Time) (*Prescription, error)
	CountByPatient(ctx context.Context, patientID int64) (int, error)
	Count(ctx context.Context) (int, error)
}

type AllergyRepository interface {
	Create(ctx context.Context, a *Allergy) error
	ListActiveByPatient(ctx context.Context, patientID int64) ([]*Allergy, error)
	CountActiveByPatient(ctx context.Context, patientID int64) (int, error)
	Count(ctx context.Context) (int, error)
}

type ImmunizationRepository interface {
	Create(ctx context.Context, im *Immunization) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Immunization, error)
	CountByPatient(ctx context.Context, patientID int64) (int, error)
	Count(ctx context.Context) (int, error)
}

type LabTestRepository interface {
	Create(ctx context.Context, lt *LabTest) error
	ListByPatient(ctx context.Context, patientID int64) ([]*LabTest, error)
	// CompleteWithResults stores results, sets status COMPLETED and stamps
	// completed_at whatever the prior status was.
	CompleteWithResults(ctx context.Context, id int64, results Document, now time.Time) (*LabTest, error)
	CountByPatient(ctx context.Context, patientID int64) (int, error)
	Count(ctx context.Context) (int, error)
}

// Stores groups the repositories the service depends on.
type Stores struct {
	Records       MedicalRecordRepository
	Prescriptions PrescriptionRepository
	Allergies     AllergyRepository
	Immunizations ImmunizationRepository
	LabTests      LabTestRepository
}
