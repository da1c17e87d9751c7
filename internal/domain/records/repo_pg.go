package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/doctori/medrecords/internal/platform/db"
)

// NewPGStores returns Postgres-backed repositories sharing q, which is
// usually a *pgxpool.Pool.
func NewPGStores(q db.Querier) Stores {
	return Stores{
		Records:       &medicalRecordRepoPG{q: q},
		Prescriptions: &prescriptionRepoPG{q: q},
		Allergies:     &allergyRepoPG{q: q},
		Immunizations: &immunizationRepoPG{q: q},
		LabTests:      &labTestRepoPG{q: q},
	}
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return err
}

func count(ctx context.Context, q db.Querier, sql string, args ...any) (int, error) {
	var n int
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// =========== Medical Record Repository ===========

type medicalRecordRepoPG struct{ q db.Querier }

const recordCols = `id, patient_id, doctor_id, appointment_id, record_type, title,
	description, diagnosis, treatment, notes,
	medications, vital_signs, lab_results, imaging_results, attachments,
	is_confidential, created_by, created_at, updated_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.AppointmentID, &m.RecordType, &m.Title,
		&m.Description, &m.Diagnosis, &m.Treatment, &m.Notes,
		&m.Medications, &m.VitalSigns, &m.LabResults, &m.ImagingResults, &m.Attachments,
		&m.IsConfidential, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicalRecordRepoPG) list(ctx context.Context, sql string, args ...any) ([]*MedicalRecord, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*MedicalRecord, error) {
		return scanRecord(row)
	})
}

func (r *medicalRecordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO medical_record (patient_id, doctor_id, appointment_id, record_type, title,
			description, diagnosis, treatment, notes,
			medications, vital_signs, lab_results, imaging_results, attachments,
			is_confidential, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id`,
		m.PatientID, m.DoctorID, m.AppointmentID, m.RecordType, m.Title,
		m.Description, m.Diagnosis, m.Treatment, m.Notes,
		m.Medications, m.VitalSigns, m.LabResults, m.ImagingResults, m.Attachments,
		m.IsConfidential, m.CreatedBy, m.CreatedAt, m.UpdatedAt).Scan(&m.ID)
}

func (r *medicalRecordRepoPG) GetByID(ctx context.Context, id int64) (*MedicalRecord, error) {
	m, err := scanRecord(r.q.QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "medical record", id)
	}
	return m, nil
}

func (r *medicalRecordRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM medical_record WHERE patient_id = $1 ORDER BY created_at DESC, id DESC`, patientID)
}

func (r *medicalRecordRepoPG) ListByDoctor(ctx context.Context, doctorID int64) ([]*MedicalRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM medical_record WHERE doctor_id = $1 ORDER BY created_at DESC, id DESC`, doctorID)
}

func (r *medicalRecordRepoPG) Update(ctx context.Context, id int64, in *UpdateMedicalRecordInput, now time.Time) (*MedicalRecord, error) {
	m, err := scanRecord(r.q.QueryRow(ctx, `
		UPDATE medical_record SET
			appointment_id  = COALESCE($2, appointment_id),
			record_type     = COALESCE($3, record_type),
			title           = COALESCE($4, title),
			description     = COALESCE($5, description),
			diagnosis       = COALESCE($6, diagnosis),
			treatment       = COALESCE($7, treatment),
			notes           = COALESCE($8, notes),
			medications     = COALESCE($9, medications),
			vital_signs     = COALESCE($10, vital_signs),
			lab_results     = COALESCE($11, lab_results),
			imaging_results = COALESCE($12, imaging_results),
			attachments     = COALESCE($13, attachments),
			is_confidential = COALESCE($14, is_confidential),
			updated_at      = $15
		WHERE id = $1
		RETURNING `+recordCols,
		id, in.AppointmentID, in.RecordType, in.Title,
		in.Description, in.Diagnosis, in.Treatment, in.Notes,
		in.Medications, in.VitalSigns, in.LabResults, in.ImagingResults, in.Attachments,
		in.IsConfidential, now))
	if err != nil {
		return nil, notFound(err, "medical record", id)
	}
	return m, nil
}

func (r *medicalRecordRepoPG) Delete(ctx context.Context, id int64) (*MedicalRecord, error) {
	m, err := scanRecord(r.q.QueryRow(ctx, `DELETE FROM medical_record WHERE id = $1 RETURNING `+recordCols, id))
	if err != nil {
		return nil, notFound(err, "medical record", id)
	}
	return m, nil
}

func (r *medicalRecordRepoPG) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM medical_record WHERE patient_id = $1`, patientID)
}

func (r *medicalRecordRepoPG) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM medical_record`)
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ q db.Querier }

const prescriptionCols = `id, patient_id, doctor_id, medical_record_id, medication_name,
	dosage, frequency, duration, instructions, quantity,
	refills_allowed, refills_used, is_active, expires_at,
	prescribed_at, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.MedicalRecordID, &p.MedicationName,
		&p.Dosage, &p.Frequency, &p.Duration, &p.Instructions, &p.Quantity,
		&p.RefillsAllowed, &p.RefillsUsed, &p.IsActive, &p.ExpiresAt,
		&p.PrescribedAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *prescriptionRepoPG) list(ctx context.Context, sql string, args ...any) ([]*Prescription, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Prescription, error) {
		return scanPrescription(row)
	})
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO prescription (patient_id, doctor_id, medical_record_id, medication_name,
			dosage, frequency, duration, instructions, quantity,
			refills_allowed, refills_used, is_active, expires_at,
			prescribed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id`,
		p.PatientID, p.DoctorID, p.MedicalRecordID, p.MedicationName,
		p.Dosage, p.Frequency, p.Duration, p.Instructions, p.Quantity,
		p.RefillsAllowed, p.RefillsUsed, p.IsActive, p.ExpiresAt,
		p.PrescribedAt, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Prescription, error) {
	return r.list(ctx, `SELECT `+prescriptionCols+` FROM prescription WHERE patient_id = $1 ORDER BY prescribed_at DESC, id DESC`, patientID)
}

func (r *prescriptionRepoPG) ListActiveByPatient(ctx context.Context, patientID int64, now time.Time) ([]*Prescription, error) {
	return r.list(ctx, `SELECT `+prescriptionCols+` FROM prescription
		WHERE patient_id = $1 AND is_active AND expires_at >= $2
		ORDER BY prescribed_at DESC, id DESC`, patientID, now)
}

func (r *prescriptionRepoPG) Refill(ctx context.Context, id int64, now time.Time) (*Prescription, error) {
	p, err := scanPrescription(r.q.QueryRow(ctx, `
		UPDATE prescription SET refills_used = refills_used + 1, updated_at = $2
		WHERE id = $1 AND refills_used < refills_allowed
		RETURNING `+prescriptionCols, id, now))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// No row updated: either the id is unknown or the refills are used up.
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM prescription WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("prescription %d: %w", id, ErrNotFound)
	}
	return nil, fmt.Errorf("prescription %d has no refills remaining: %w", id, ErrConflict)
}

func (r *prescriptionRepoPG) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM prescription WHERE patient_id = $1`, patientID)
}

func (r *prescriptionRepoPG) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM prescription`)
}

// =========== Allergy Repository ===========

type allergyRepoPG struct{ q db.Querier }

const allergyCols = `id, patient_id, allergen, reaction, severity, is_active, notes, created_at, updated_at`

func scanAllergy(row pgx.Row) (*Allergy, error) {
	var a Allergy
	err := row.Scan(&a.ID, &a.PatientID, &a.Allergen, &a.Reaction, &a.Severity,
		&a.IsActive, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO allergy (patient_id, allergen, reaction, severity, is_active, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		a.PatientID, a.Allergen, a.Reaction, a.Severity, a.IsActive, a.Notes,
		a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
}

func (r *allergyRepoPG) ListActiveByPatient(ctx context.Context, patientID int64) ([]*Allergy, error) {
	rows, err := r.q.Query(ctx, `SELECT `+allergyCols+` FROM allergy
		WHERE patient_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Allergy, error) {
		return scanAllergy(row)
	})
}

func (r *allergyRepoPG) CountActiveByPatient(ctx context.Context, patientID int64) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM allergy WHERE patient_id = $1 AND is_active`, patientID)
}

func (r *allergyRepoPG) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM allergy`)
}

// =========== Immunization Repository ===========

type immunizationRepoPG struct{ q db.Querier }

const immunizationCols = `id, patient_id, vaccine_name, vaccine_type, administered_at, administered_by,
	lot_number, expiration_date, next_due_date, notes, created_at, updated_at`

func scanImmunization(row pgx.Row) (*Immunization, error) {
	var im Immunization
	err := row.Scan(&im.ID, &im.PatientID, &im.VaccineName, &im.VaccineType, &im.AdministeredAt, &im.AdministeredBy,
		&im.LotNumber, &im.ExpirationDate, &im.NextDueDate, &im.Notes, &im.CreatedAt, &im.UpdatedAt)
	return &im, err
}

func (r *immunizationRepoPG) Create(ctx context.Context, im *Immunization) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO immunization (patient_id, vaccine_name, vaccine_type, administered_at, administered_by,
			lot_number, expiration_date, next_due_date, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id`,
		im.PatientID, im.VaccineName, im.VaccineType, im.AdministeredAt, im.AdministeredBy,
		im.LotNumber, im.ExpirationDate, im.NextDueDate, im.Notes, im.CreatedAt, im.UpdatedAt).Scan(&im.ID)
}

func (r *immunizationRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Immunization, error) {
	rows, err := r.q.Query(ctx, `SELECT `+immunizationCols+` FROM immunization
		WHERE patient_id = $1 ORDER BY administered_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Immunization, error) {
		return scanImmunization(row)
	})
}

func (r *immunizationRepoPG) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM immunization WHERE patient_id = $1`, patientID)
}

func (r *immunizationRepoPG) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM immunization`)
}

// =========== Lab Test Repository ===========

type labTestRepoPG struct{ q db.Querier }

const labTestCols = `id, patient_id, doctor_id, test_name, test_type,
	ordered_at, collected_at, completed_at, results, reference_range,
	status, lab_name, lab_address, created_at, updated_at`

func scanLabTest(row pgx.Row) (*LabTest, error) {
	var lt LabTest
	err := row.Scan(&lt.ID, &lt.PatientID, &lt.DoctorID, &lt.TestName, &lt.TestType,
		&lt.OrderedAt, &lt.CollectedAt, &lt.CompletedAt, &lt.Results, &lt.ReferenceRange,
		&lt.Status, &lt.LabName, &lt.LabAddress, &lt.CreatedAt, &lt.UpdatedAt)
	return &lt, err
}

func (r *labTestRepoPG) Create(ctx context.Context, lt *LabTest) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO lab_test (patient_id, doctor_id, test_name, test_type,
			ordered_at, collected_at, completed_at, results, reference_range,
			status, lab_name, lab_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`,
		lt.PatientID, lt.DoctorID, lt.TestName, lt.TestType,
		lt.OrderedAt, lt.CollectedAt, lt.CompletedAt, lt.Results, lt.ReferenceRange,
		lt.Status, lt.LabName, lt.LabAddress, lt.CreatedAt, lt.UpdatedAt).Scan(&lt.ID)
}

func (r *labTestRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*LabTest, error) {
	rows, err := r.q.Query(ctx, `SELECT `+labTestCols+` FROM lab_test
		WHERE patient_id = $1 ORDER BY ordered_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*LabTest, error) {
		return scanLabTest(row)
	})
}

func (r *labTestRepoPG) CompleteWithResults(ctx context.Context, id int64, results Document, now time.Time) (*LabTest, error) {
	lt, err := scanLabTest(r.q.QueryRow(ctx, `
		UPDATE lab_test SET results = $2, status = $3, completed_at = $4, updated_at = $4
		WHERE id = $1
		RETURNING `+labTestCols, id, results, LabCompleted, now))
	if err != nil {
		return nil, notFound(err, "lab test", id)
	}
	return lt, nil
}

func (r *labTestRepoPG) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM lab_test WHERE patient_id = $1`, patientID)
}

func (r *labTestRepoPG) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM lab_test`)
}
