package records

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/doctori/medrecords/internal/platform/events"
)

// Event names emitted after successful writes.
const (
	EventRecordCreated        = "medical_record.created"
	EventRecordUpdated        = "medical_record.updated"
	EventRecordDeleted        = "medical_record.deleted"
	EventPrescriptionCreated  = "prescription.created"
	EventPrescriptionRefilled = "prescription.refilled"
	EventAllergyCreated       = "allergy.created"
	EventImmunizationCreated  = "immunization.created"
	EventLabTestOrdered       = "lab_test.ordered"
	EventLabTestCompleted     = "lab_test.completed"
)

// Service applies the business rules around record mutations and emits one
// event for every successful write. Store errors are returned unchanged.
type Service struct {
	records       MedicalRecordRepository
	prescriptions PrescriptionRepository
	allergies     AllergyRepository
	immunizations ImmunizationRepository
	labTests      LabTestRepository

	events events.Emitter
	logger zerolog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(stores Stores, emitter events.Emitter, logger zerolog.Logger, opts ...Option) *Service {
	if emitter == nil {
		emitter = events.Nop{}
	}
	s := &Service{
		records:       stores.Records,
		prescriptions: stores.Prescriptions,
		allergies:     stores.Allergies,
		immunizations: stores.Immunizations,
		labTests:      stores.LabTests,
		events:        emitter,
		logger:        logger.With().Str("service", "medical-records").Logger(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// emit logs the business event and hands it to the emitter. Sinks keep the
// request's values but not its cancellation, so an event for a committed write
// still goes out after the client disconnects.
func (s *Service) emit(ctx context.Context, name string, payload events.Payload) {
	s.logger.Info().
		Str("event", name).
		Fields(map[string]interface{}(payload)).
		Msg("business event")
	s.events.Emit(context.WithoutCancel(ctx), name, payload)
}

// -- Medical records --

func (s *Service) CreateMedicalRecord(ctx context.Context, in *CreateMedicalRecordInput) (*MedicalRecord, error) {
	now := s.clock()
	m := &MedicalRecord{
		PatientID:      in.PatientID,
		DoctorID:       in.DoctorID,
		AppointmentID:  in.AppointmentID,
		RecordType:     in.RecordType,
		Title:          in.Title,
		Description:    in.Description,
		Diagnosis:      in.Diagnosis,
		Treatment:      in.Treatment,
		Notes:          in.Notes,
		Medications:    in.Medications,
		VitalSigns:     in.VitalSigns,
		LabResults:     in.LabResults,
		ImagingResults: in.ImagingResults,
		Attachments:    in.Attachments,
		IsConfidential: in.IsConfidential,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.records.Create(ctx, m); err != nil {
		return nil, err
	}

	s.emit(ctx, EventRecordCreated, events.Payload{
		"record_id":   m.ID,
		"patient_id":  m.PatientID,
		"doctor_id":   m.DoctorID,
		"record_type": m.RecordType,
	})
	return m, nil
}

func (s *Service) GetMedicalRecord(ctx context.Context, id int64) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListMedicalRecordsByPatient(ctx context.Context, patientID int64) ([]*MedicalRecord, error) {
	return s.records.ListByPatient(ctx, patientID)
}

func (s *Service) ListMedicalRecordsByDoctor(ctx context.Context, doctorID int64) ([]*MedicalRecord, error) {
	return s.records.ListByDoctor(ctx, doctorID)
}

func (s *Service) UpdateMedicalRecord(ctx context.Context, id int64, in *UpdateMedicalRecordInput) (*MedicalRecord, error) {
	m, err := s.records.Update(ctx, id, in, s.clock())
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventRecordUpdated, events.Payload{
		"record_id":  m.ID,
		"patient_id": m.PatientID,
		"doctor_id":  m.DoctorID,
	})
	return m, nil
}

// DeleteMedicalRecord removes the record and returns it as it was stored.
func (s *Service) DeleteMedicalRecord(ctx context.Context, id int64) (*MedicalRecord, error) {
	m, err := s.records.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventRecordDeleted, events.Payload{
		"record_id":  m.ID,
		"patient_id": m.PatientID,
		"doctor_id":  m.DoctorID,
	})
	return m, nil
}

// -- Prescriptions --

// CreatePrescription stores refills_used as given; it is not checked
// against refills_allowed.
func (s *Service) CreatePrescription(ctx context.Context, in *CreatePrescriptionInput) (*Prescription, error) {
	now := s.clock()
	p := &Prescription{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		MedicalRecordID: in.MedicalRecordID,
		MedicationName:  in.MedicationName,
		Dosage:          in.Dosage,
		Frequency:       in.Frequency,
		Duration:        in.Duration,
		Instructions:    in.Instructions,
		Quantity:        in.Quantity,
		RefillsAllowed:  in.RefillsAllowed,
		RefillsUsed:     in.RefillsUsed,
		IsActive:        boolOr(in.IsActive, true),
		ExpiresAt:       in.ExpiresAt,
		PrescribedAt:    now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, err
	}

	s.emit(ctx, EventPrescriptionCreated, events.Payload{
		"prescription_id": p.ID,
		"patient_id":      p.PatientID,
		"doctor_id":       p.DoctorID,
		"medication_name": p.MedicationName,
	})
	return p, nil
}

func (s *Service) ListPrescriptionsByPatient(ctx context.Context, patientID int64) ([]*Prescription, error) {
	return s.prescriptions.ListByPatient(ctx, patientID)
}

// ListActivePrescriptions returns prescriptions that are active and expire
// at or after the current time.
func (s *Service) ListActivePrescriptions(ctx context.Context, patientID int64) ([]*Prescription, error) {
	return s.prescriptions.ListActiveByPatient(ctx, patientID, s.clock())
}

// RefillPrescription uses one refill. It fails with ErrNotFound for an
// unknown id and ErrConflict when no refills remain.
func (s *Service) RefillPrescription(ctx context.Context, id int64) (*Prescription, error) {
	p, err := s.prescriptions.Refill(ctx, id, s.clock())
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventPrescriptionRefilled, events.Payload{
		"prescription_id":   p.ID,
		"patient_id":        p.PatientID,
		"refills_used":      p.RefillsUsed,
		"refills_remaining": p.RefillsRemaining(),
	})
	return p, nil
}

// -- Allergies --

func (s *Service) CreateAllergy(ctx context.Context, in *CreateAllergyInput) (*Allergy, error) {
	now := s.clock()
	a := &Allergy{
		PatientID: in.PatientID,
		Allergen:  in.Allergen,
		Reaction:  in.Reaction,
		Severity:  in.Severity,
		IsActive:  boolOr(in.IsActive, true),
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.allergies.Create(ctx, a); err != nil {
		return nil, err
	}

	s.emit(ctx, EventAllergyCreated, events.Payload{
		"allergy_id": a.ID,
		"patient_id": a.PatientID,
		"allergen":   a.Allergen,
	})
	return a, nil
}

// ListAllergiesByPatient returns active allergies only.
func (s *Service) ListAllergiesByPatient(ctx context.Context, patientID int64) ([]*Allergy, error) {
	return s.allergies.ListActiveByPatient(ctx, patientID)
}

// -- Immunizations --

func (s *Service) CreateImmunization(ctx context.Context, in *CreateImmunizationInput) (*Immunization, error) {
	now := s.clock()
	im := &Immunization{
		PatientID:      in.PatientID,
		VaccineName:    in.VaccineName,
		VaccineType:    in.VaccineType,
		AdministeredAt: in.AdministeredAt,
		AdministeredBy: in.AdministeredBy,
		LotNumber:      in.LotNumber,
		ExpirationDate: in.ExpirationDate,
		NextDueDate:    in.NextDueDate,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.immunizations.Create(ctx, im); err != nil {
		return nil, err
	}

	s.emit(ctx, EventImmunizationCreated, events.Payload{
		"immunization_id": im.ID,
		"patient_id":      im.PatientID,
		"vaccine_name":    im.VaccineName,
	})
	return im, nil
}

func (s *Service) ListImmunizationsByPatient(ctx context.Context, patientID int64) ([]*Immunization, error) {
	return s.immunizations.ListByPatient(ctx, patientID)
}

// -- Lab tests --

func (s *Service) CreateLabTest(ctx context.Context, in *CreateLabTestInput) (*LabTest, error) {
	now := s.clock()
	status := in.Status
	if status == "" {
		status = LabOrdered
	}
	lt := &LabTest{
		PatientID:      in.PatientID,
		DoctorID:       in.DoctorID,
		TestName:       in.TestName,
		TestType:       in.TestType,
		OrderedAt:      now,
		CollectedAt:    in.CollectedAt,
		Results:        in.Results,
		ReferenceRange: in.ReferenceRange,
		Status:         status,
		LabName:        in.LabName,
		LabAddress:     in.LabAddress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.labTests.Create(ctx, lt); err != nil {
		return nil, err
	}

	s.emit(ctx, EventLabTestOrdered, events.Payload{
		"lab_test_id": lt.ID,
		"patient_id":  lt.PatientID,
		"doctor_id":   lt.DoctorID,
		"test_name":   lt.TestName,
	})
	return lt, nil
}

// UpdateLabTestResults stores the results and marks the test COMPLETED at
// the current time, whatever its previous status. Repeated calls move the
// completion time forward.
func (s *Service) UpdateLabTestResults(ctx context.Context, id int64, results Document) (*LabTest, error) {
	lt, err := s.labTests.CompleteWithResults(ctx, id, results, s.clock())
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventLabTestCompleted, events.Payload{
		"lab_test_id": lt.ID,
		"patient_id":  lt.PatientID,
		"doctor_id":   lt.DoctorID,
		"test_name":   lt.TestName,
	})
	return lt, nil
}

func (s *Service) ListLabTestsByPatient(ctx context.Context, patientID int64) ([]*LabTest, error) {
	return s.labTests.ListByPatient(ctx, patientID)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
