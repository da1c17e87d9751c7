package records

import (
	"encoding/json"
	"time"
)

// Document is a schema-less JSON value stored in a jsonb column. The
// service stores and returns it verbatim.
type Document = json.RawMessage

type RecordType string

const (
	RecordConsultation RecordType = "CONSULTATION"
	RecordDiagnosis    RecordType = "DIAGNOSIS"
	RecordTreatment    RecordType = "TREATMENT"
	RecordFollowUp     RecordType = "FOLLOW_UP"
	RecordEmergency    RecordType = "EMERGENCY"
	RecordLabResult    RecordType = "LAB_RESULT"
	RecordImaging      RecordType = "IMAGING"
	RecordSurgery      RecordType = "SURGERY"
	RecordVaccination  RecordType = "VACCINATION"
)

type AllergySeverity string

const (
	SeverityMild     AllergySeverity = "MILD"
	SeverityModerate AllergySeverity = "MODERATE"
	SeveritySevere   AllergySeverity = "SEVERE"
)

type LabTestStatus string

const (
	LabOrdered    LabTestStatus = "ORDERED"
	LabInProgress LabTestStatus = "IN_PROGRESS"
	LabCompleted  LabTestStatus = "COMPLETED"
	LabCancelled  LabTestStatus = "CANCELLED"
)

// MedicalRecord maps to the medical_record table.
type MedicalRecord struct {
	ID             int64      `db:"id" json:"id"`
	PatientID      int64      `db:"patient_id" json:"patient_id"`
	DoctorID       int64      `db:"doctor_id" json:"doctor_id"`
	AppointmentID  *int64     `db:"appointment_id" json:"appointment_id,omitempty"`
	RecordType     RecordType `db:"record_type" json:"record_type"`
	Title          string     `db:"title" json:"title"`
	Description    *string    `db:"description" json:"description,omitempty"`
	Diagnosis      *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment      *string    `db:"treatment" json:"treatment,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	Medications    Document   `db:"medications" json:"medications"`
	VitalSigns     Document   `db:"vital_signs" json:"vital_signs"`
	LabResults     Document   `db:"lab_results" json:"lab_results"`
	ImagingResults Document   `db:"imaging_results" json:"imaging_results"`
	Attachments    Document   `db:"attachments" json:"attachments"`
	IsConfidential bool       `db:"is_confidential" json:"is_confidential"`
	CreatedBy      int64      `db:"created_by" json:"created_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Prescription maps to the prescription table. RefillsUsed never exceeds
// RefillsAllowed through a refill, but creation stores whatever it is given.
type Prescription struct {
	ID              int64      `db:"id" json:"id"`
	PatientID       int64      `db:"patient_id" json:"patient_id"`
	DoctorID        int64      `db:"doctor_id" json:"doctor_id"`
	MedicalRecordID *int64     `db:"medical_record_id" json:"medical_record_id,omitempty"`
	MedicationName  string     `db:"medication_name" json:"medication_name"`
	Dosage          string     `db:"dosage" json:"dosage"`
	Frequency       string     `db:"frequency" json:"frequency"`
	Duration        string     `db:"duration" json:"duration"`
	Instructions    *string    `db:"instructions" json:"instructions,omitempty"`
	Quantity        int        `db:"quantity" json:"quantity"`
	RefillsAllowed  int        `db:"refills_allowed" json:"refills_allowed"`
	RefillsUsed     int        `db:"refills_used" json:"refills_used"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	PrescribedAt    time.Time  `db:"prescribed_at" json:"prescribed_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// RefillsRemaining is never negative.
func (p *Prescription) RefillsRemaining() int {
	if p.RefillsUsed >= p.RefillsAllowed {
		return 0
	}
	return p.RefillsAllowed - p.RefillsUsed
}

// ActiveAt reports whether the prescription is active and unexpired at t.
// A prescription without an expiry is never active.
func (p *Prescription) ActiveAt(t time.Time) bool {
	return p.IsActive && p.ExpiresAt != nil && !p.ExpiresAt.Before(t)
}

type Allergy struct {
	ID        int64           `db:"id" json:"id"`
	PatientID int64           `db:"patient_id" json:"patient_id"`
	Allergen  string          `db:"allergen" json:"allergen"`
	Reaction  string          `db:"reaction" json:"reaction"`
	Severity  AllergySeverity `db:"severity" json:"severity"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	Notes     *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

type Immunization struct {
	ID             int64      `db:"id" json:"id"`
	PatientID      int64      `db:"patient_id" json:"patient_id"`
	VaccineName    string     `db:"vaccine_name" json:"vaccine_name"`
	VaccineType    *string    `db:"vaccine_type" json:"vaccine_type,omitempty"`
	AdministeredAt time.Time  `db:"administered_at" json:"administered_at"`
	AdministeredBy int64      `db:"administered_by" json:"administered_by"`
	LotNumber      *string    `db:"lot_number" json:"lot_number,omitempty"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	NextDueDate    *time.Time `db:"next_due_date" json:"next_due_date,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type LabTest struct {
	ID             int64         `db:"id" json:"id"`
	PatientID      int64         `db:"patient_id" json:"patient_id"`
	DoctorID       int64         `db:"doctor_id" json:"doctor_id"`
	TestName       string        `db:"test_name" json:"test_name"`
	TestType       *string       `db:"test_type" json:"test_type,omitempty"`
	OrderedAt      time.Time     `db:"ordered_at" json:"ordered_at"`
	CollectedAt    *time.Time    `db:"collected_at" json:"collected_at,omitempty"`
	CompletedAt    *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	Results        Document      `db:"results" json:"results"`
	ReferenceRange Document      `db:"reference_range" json:"reference_range"`
	Status         LabTestStatus `db:"status" json:"status"`
	LabName        *string       `db:"lab_name" json:"lab_name,omitempty"`
	LabAddress     *string       `db:"lab_address" json:"lab_address,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// HealthSummary is a per-patient count of each entity kind. Allergies are
// counted only while active.
type HealthSummary struct {
	PatientID          int64 `json:"patient_id"`
	TotalRecords       int   `json:"total_records"`
	TotalPrescriptions int   `json:"total_prescriptions"`
	ActiveAllergies    int   `json:"active_allergies"`
	TotalImmunizations int   `json:"total_immunizations"`
	TotalLabTests      int   `json:"total_lab_tests"`
}

// -- Inputs --

type CreateMedicalRecordInput struct {
	PatientID      int64      `json:"patient_id" validate:"required,gt=0"`
	DoctorID       int64      `json:"doctor_id" validate:"required,gt=0"`
	AppointmentID  *int64     `json:"appointment_id" validate:"omitempty,gt=0"`
	RecordType     RecordType `json:"record_type" validate:"required,oneof=CONSULTATION DIAGNOSIS TREATMENT FOLLOW_UP EMERGENCY LAB_RESULT IMAGING SURGERY VACCINATION"`
	Title          string     `json:"title" validate:"required,max=255"`
	Description    *string    `json:"description"`
	Diagnosis      *string    `json:"diagnosis"`
	Treatment      *string    `json:"treatment"`
	Notes          *string    `json:"notes"`
	Medications    Document   `json:"medications"`
	VitalSigns     Document   `json:"vital_signs"`
	LabResults     Document   `json:"lab_results"`
	ImagingResults Document   `json:"imaging_results"`
	Attachments    Document   `json:"attachments"`
	IsConfidential bool       `json:"is_confidential"`
	CreatedBy      int64      `json:"created_by" validate:"required,gt=0"`
}

// UpdateMedicalRecordInput is a partial update: nil fields keep their
// stored value.
type UpdateMedicalRecordInput struct {
	AppointmentID  *int64      `json:"appointment_id" validate:"omitempty,gt=0"`
	RecordType     *RecordType `json:"record_type" validate:"omitempty,oneof=CONSULTATION DIAGNOSIS TREATMENT FOLLOW_UP EMERGENCY LAB_RESULT IMAGING SURGERY VACCINATION"`
	Title          *string     `json:"title" validate:"omitempty,min=1,max=255"`
	Description    *string     `json:"description"`
	Diagnosis      *string     `json:"diagnosis"`
	Treatment      *string     `json:"treatment"`
	Notes          *string     `json:"notes"`
	Medications    Document    `json:"medications"`
	VitalSigns     Document    `json:"vital_signs"`
	LabResults     Document    `json:"lab_results"`
	ImagingResults Document    `json:"imaging_results"`
	Attachments    Document    `json:"attachments"`
	IsConfidential *bool       `json:"is_confidential"`
}

type CreatePrescriptionInput struct {
	PatientID       int64      `json:"patient_id" validate:"required,gt=0"`
	DoctorID        int64      `json:"doctor_id" validate:"required,gt=0"`
	MedicalRecordID *int64     `json:"medical_record_id" validate:"omitempty,gt=0"`
	MedicationName  string     `json:"medication_name" validate:"required"`
	Dosage          string     `json:"dosage" validate:"required"`
	Frequency       string     `json:"frequency" validate:"required"`
	Duration        string     `json:"duration" validate:"required"`
	Instructions    *string    `json:"instructions"`
	Quantity        int        `json:"quantity" validate:"gte=0"`
	RefillsAllowed  int        `json:"refills_allowed" validate:"gte=0"`
	RefillsUsed     int        `json:"refills_used" validate:"gte=0"`
	IsActive        *bool      `json:"is_active"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

type CreateAllergyInput struct {
	PatientID int64           `json:"patient_id" validate:"required,gt=0"`
	Allergen  string          `json:"allergen" validate:"required"`
	Reaction  string          `json:"reaction" validate:"required"`
	Severity  AllergySeverity `json:"severity" validate:"required,oneof=MILD MODERATE SEVERE"`
	IsActive  *bool           `json:"is_active"`
	Notes     *string         `json:"notes"`
}

type CreateImmunizationInput struct {
	PatientID      int64      `json:"patient_id" validate:"required,gt=0"`
	VaccineName    string     `json:"vaccine_name" validate:"required"`
	VaccineType    *string    `json:"vaccine_type"`
	AdministeredAt time.Time  `json:"administered_at" validate:"required"`
	AdministeredBy int64      `json:"administered_by" validate:"required,gt=0"`
	LotNumber      *string    `json:"lot_number"`
	ExpirationDate *time.Time `json:"expiration_date"`
	NextDueDate    *time.Time `json:"next_due_date"`
	Notes          *string    `json:"notes"`
}

type CreateLabTestInput struct {
	PatientID      int64         `json:"patient_id" validate:"required,gt=0"`
	DoctorID       int64         `json:"doctor_id" validate:"required,gt=0"`
	TestName       string        `json:"test_name" validate:"required"`
	TestType       *string       `json:"test_type"`
	CollectedAt    *time.Time    `json:"collected_at"`
	Results        Document      `json:"results"`
	ReferenceRange Document      `json:"reference_range"`
	Status         LabTestStatus `json:"status" validate:"omitempty,oneof=ORDERED IN_PROGRESS COMPLETED CANCELLED"`
	LabName        *string       `json:"lab_name"`
	LabAddress     *string       `json:"lab_address"`
}
