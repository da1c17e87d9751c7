package records

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SeedResult reports what Seed did.
type SeedResult struct {
	Skipped       bool
	Records       int
	Prescriptions int
	Allergies     int
	Immunizations int
	LabTests      int
}

// Seed loads the sample data set unless any table already has rows. It
// writes through the repositories directly, so no events are emitted and
// the historical timestamps in the fixtures are kept.
func Seed(ctx context.Context, st Stores, now time.Time, logger zerolog.Logger) (*SeedResult, error) {
	existing, err := existingRows(ctx, st)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		logger.Warn().Int("existing_rows", existing).Msg("database already contains data, skipping seed")
		return &SeedResult{Skipped: true}, nil
	}

	res := &SeedResult{}
	now = now.UTC()

	recordIDs := make([]int64, 0, 3)
	for _, m := range seedRecords(now) {
		if err := st.Records.Create(ctx, m); err != nil {
			return nil, fmt.Errorf("seed medical record %q: %w", m.Title, err)
		}
		recordIDs = append(recordIDs, m.ID)
		res.Records++
	}

	for _, p := range seedPrescriptions(now, recordIDs) {
		if err := st.Prescriptions.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("seed prescription %q: %w", p.MedicationName, err)
		}
		res.Prescriptions++
	}

	for _, a := range seedAllergies(now) {
		if err := st.Allergies.Create(ctx, a); err != nil {
			return nil, fmt.Errorf("seed allergy %q: %w", a.Allergen, err)
		}
		res.Allergies++
	}

	for _, im := range seedImmunizations(now) {
		if err := st.Immunizations.Create(ctx, im); err != nil {
			return nil, fmt.Errorf("seed immunization %q: %w", im.VaccineName, err)
		}
		res.Immunizations++
	}

	for _, lt := range seedLabTests(now) {
		if err := st.LabTests.Create(ctx, lt); err != nil {
			return nil, fmt.Errorf("seed lab test %q: %w", lt.TestName, err)
		}
		res.LabTests++
	}

	logger.Info().
		Int("medical_records", res.Records).
		Int("prescriptions", res.Prescriptions).
		Int("allergies", res.Allergies).
		Int("immunizations", res.Immunizations).
		Int("lab_tests", res.LabTests).
		Msg("seed completed")
	return res, nil
}

func existingRows(ctx context.Context, st Stores) (int, error) {
	counters := []func(context.Context) (int, error){
		st.Records.Count,
		st.Prescriptions.Count,
		st.Allergies.Count,
		st.Immunizations.Count,
		st.LabTests.Count,
	}
	total := 0
	for _, count := range counters {
		n, err := count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count existing rows: %w", err)
		}
		total += n
	}
	return total, nil
}

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedRecords(now time.Time) []*MedicalRecord {
	return []*MedicalRecord{
		{
			PatientID: 1, DoctorID: 1, AppointmentID: ptr(int64(1)),
			RecordType:  RecordConsultation,
			Title:       "Annual Physical Examination",
			Description: ptr("Comprehensive annual health checkup"),
			Diagnosis:   ptr("Healthy individual, no acute issues"),
			Treatment:   ptr("Continue current lifestyle, annual follow-up recommended"),
			Medications: Document(`[{"name":"Multivitamin","dosage":"1 tablet daily","duration":"Ongoing"}]`),
			VitalSigns:  Document(`{"bloodPressure":"120/80","heartRate":72,"temperature":98.6,"weight":70,"height":175}`),
			Notes:       ptr("Patient is in good health, no concerns"),
			CreatedBy:   1, CreatedAt: now, UpdatedAt: now,
		},
		{
			PatientID: 2, DoctorID: 1, AppointmentID: ptr(int64(2)),
			RecordType:  RecordDiagnosis,
			Title:       "Headache Consultation",
			Description: ptr("Patient complaining of mild headaches"),
			Diagnosis:   ptr("Tension headache"),
			Treatment:   ptr("Rest, hydration, stress management"),
			Medications: Document(`[{"name":"Ibuprofen","dosage":"400mg as needed","duration":"3 days"}]`),
			VitalSigns:  Document(`{"bloodPressure":"118/78","heartRate":68,"temperature":98.4}`),
			Notes:       ptr("Patient reports improvement with rest"),
			CreatedBy:   1, CreatedAt: now, UpdatedAt: now,
		},
		{
			PatientID: 3, DoctorID: 2, AppointmentID: ptr(int64(3)),
			RecordType:  RecordEmergency,
			Title:       "Chest Pain Evaluation",
			Description: ptr("Patient experiencing chest pain"),
			Diagnosis:   ptr("Musculoskeletal chest pain"),
			Treatment:   ptr("Pain management, rest, follow-up if symptoms persist"),
			Medications: Document(`[{"name":"Acetaminophen","dosage":"500mg every 6 hours","duration":"5 days"}]`),
			VitalSigns:  Document(`{"bloodPressure":"130/85","heartRate":85,"temperature":98.8,"oxygenSaturation":98}`),
			Notes:       ptr("ECG normal, chest X-ray clear"),
			CreatedBy:   2, CreatedAt: now, UpdatedAt: now,
		},
	}
}

// recordIDs links each prescription to the record created for it.
func seedPrescriptions(now time.Time, recordIDs []int64) []*Prescription {
	link := func(i int) *int64 {
		if i < len(recordIDs) {
			return ptr(recordIDs[i])
		}
		return nil
	}
	return []*Prescription{
		{
			PatientID: 1, DoctorID: 1, MedicalRecordID: link(0),
			MedicationName: "Multivitamin", Dosage: "1 tablet", Frequency: "Once daily", Duration: "Ongoing",
			Instructions: ptr("Take with breakfast"),
			Quantity:     90, RefillsAllowed: 5, RefillsUsed: 0, IsActive: true,
			ExpiresAt:    ptr(date(2025, time.December, 31)),
			PrescribedAt: now, CreatedAt: now, UpdatedAt: now,
		},
		{
			PatientID: 2, DoctorID: 1, MedicalRecordID: link(1),
			MedicationName: "Ibuprofen", Dosage: "400mg", Frequency: "As needed", Duration: "3 days",
			Instructions: ptr("Take with food, maximum 3 times per day"),
			Quantity:     9, RefillsAllowed: 0, RefillsUsed: 0, IsActive: true,
			ExpiresAt:    ptr(date(2025, time.June, 30)),
			PrescribedAt: now, CreatedAt: now, UpdatedAt: now,
		},
		{
			PatientID: 3, DoctorID: 2, MedicalRecordID: link(2),
			MedicationName: "Acetaminophen", Dosage: "500mg", Frequency: "Every 6 hours", Duration: "5 days",
			Instructions: ptr("Take with water, do not exceed 4g per day"),
			Quantity:     20, RefillsAllowed: 1, RefillsUsed: 0, IsActive: true,
			ExpiresAt:    ptr(date(2025, time.March, 31)),
			PrescribedAt: now, CreatedAt: now, UpdatedAt: now,
		},
	}
}

func seedAllergies(now time.Time) []*Allergy {
	return []*Allergy{
		{PatientID: 1, Allergen: "Penicillin", Reaction: "Skin rash", Severity: SeverityModerate, IsActive: true,
			Notes: ptr("Allergic reaction occurred in childhood"), CreatedAt: now, UpdatedAt: now},
		{PatientID: 2, Allergen: "Shellfish", Reaction: "Hives and difficulty breathing", Severity: SeveritySevere, IsActive: true,
			Notes: ptr("Avoid all shellfish products"), CreatedAt: now, UpdatedAt: now},
		{PatientID: 3, Allergen: "Latex", Reaction: "Contact dermatitis", Severity: SeverityMild, IsActive: true,
			Notes: ptr("Use latex-free products"), CreatedAt: now, UpdatedAt: now},
	}
}

func seedImmunizations(now time.Time) []*Immunization {
	return []*Immunization{
		{
			PatientID: 1, VaccineName: "COVID-19 Vaccine", VaccineType: ptr("mRNA"),
			AdministeredAt: date(2024, time.January, 15), AdministeredBy: 1,
			LotNumber:      ptr("COV-2024-001"),
			ExpirationDate: ptr(date(2025, time.January, 15)),
			NextDueDate:    ptr(date(2025, time.January, 15)),
			Notes:          ptr("Primary series completed"),
			CreatedAt:      now, UpdatedAt: now,
		},
		{
			PatientID: 2, VaccineName: "Influenza Vaccine", VaccineType: ptr("Inactivated"),
			AdministeredAt: date(2024, time.October, 1), AdministeredBy: 1,
			LotNumber:      ptr("FLU-2024-002"),
			ExpirationDate: ptr(date(2025, time.October, 1)),
			NextDueDate:    ptr(date(2025, time.October, 1)),
			Notes:          ptr("Annual flu vaccination"),
			CreatedAt:      now, UpdatedAt: now,
		},
		{
			PatientID: 3, VaccineName: "Tetanus Booster", VaccineType: ptr("Toxoid"),
			AdministeredAt: date(2024, time.June, 15), AdministeredBy: 2,
			LotNumber:      ptr("TET-2024-003"),
			ExpirationDate: ptr(date(2034, time.June, 15)),
			NextDueDate:    ptr(date(2029, time.June, 15)),
			Notes:          ptr("10-year booster"),
			CreatedAt:      now, UpdatedAt: now,
		},
	}
}

func seedLabTests(now time.Time) []*LabTest {
	return []*LabTest{
		{
			PatientID: 1, DoctorID: 1, TestName: "Complete Blood Count", TestType: ptr("Hematology"),
			OrderedAt:      date(2024, time.December, 15),
			CollectedAt:    ptr(date(2024, time.December, 15)),
			CompletedAt:    ptr(date(2024, time.December, 16)),
			Results:        Document(`{"hemoglobin":"14.2 g/dL","hematocrit":"42%","whiteBloodCells":"7.5 x 10^9/L","platelets":"250 x 10^9/L"}`),
			ReferenceRange: Document(`{"hemoglobin":"12.0-16.0 g/dL","hematocrit":"36-46%","whiteBloodCells":"4.5-11.0 x 10^9/L","platelets":"150-450 x 10^9/L"}`),
			Status:         LabCompleted,
			LabName:        ptr("Central Lab"), LabAddress: ptr("123 Medical Center Dr"),
			CreatedAt: now, UpdatedAt: now,
		},
		{
			PatientID: 2, DoctorID: 1, TestName: "Lipid Panel", TestType: ptr("Chemistry"),
			OrderedAt:      date(2024, time.December, 10),
			CollectedAt:    ptr(date(2024, time.December, 10)),
			CompletedAt:    ptr(date(2024, time.December, 11)),
			Results:        Document(`{"totalCholesterol":"180 mg/dL","ldlCholesterol":"110 mg/dL","hdlCholesterol":"45 mg/dL","triglycerides":"125 mg/dL"}`),
			ReferenceRange: Document(`{"totalCholesterol":"<200 mg/dL","ldlCholesterol":"<100 mg/dL","hdlCholesterol":">40 mg/dL","triglycerides":"<150 mg/dL"}`),
			Status:         LabCompleted,
			LabName:        ptr("Central Lab"), LabAddress: ptr("123 Medical Center Dr"),
			CreatedAt: now, UpdatedAt: now,
		},
		{
			PatientID: 3, DoctorID: 2, TestName: "ECG", TestType: ptr("Cardiology"),
			OrderedAt:      date(2024, time.December, 19),
			CollectedAt:    ptr(date(2024, time.December, 19)),
			CompletedAt:    ptr(date(2024, time.December, 19)),
			Results:        Document(`{"rhythm":"Normal sinus rhythm","rate":"85 bpm","prInterval":"160 ms","qrsDuration":"90 ms","qtInterval":"380 ms"}`),
			ReferenceRange: Document(`{"rhythm":"Normal sinus rhythm","rate":"60-100 bpm","prInterval":"120-200 ms","qrsDuration":"80-120 ms","qtInterval":"350-450 ms"}`),
			Status:         LabCompleted,
			LabName:        ptr("Cardiology Lab"), LabAddress: ptr("456 Heart Center Ave"),
			CreatedAt: now, UpdatedAt: now,
		},
	}
}
