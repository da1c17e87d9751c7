package records

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// GetPatientHealthSummary runs the five per-patient counts concurrently.
// Each count is an independent snapshot; the first failure cancels the rest.
func (s *Service) GetPatientHealthSummary(ctx context.Context, patientID int64) (*HealthSummary, error) {
	sum := &HealthSummary{PatientID: patientID}
	g, gctx := errgroup.WithContext(ctx)

	counts := []struct {
		name string
		dst  *int
		fn   func(context.Context, int64) (int, error)
	}{
		{"medical records", &sum.TotalRecords, s.records.CountByPatient},
		{"prescriptions", &sum.TotalPrescriptions, s.prescriptions.CountByPatient},
		{"active allergies", &sum.ActiveAllergies, s.allergies.CountActiveByPatient},
		{"immunizations", &sum.TotalImmunizations, s.immunizations.CountByPatient},
		{"lab tests", &sum.TotalLabTests, s.labTests.CountByPatient},
	}
	for _, c := range counts {
		c := c
		g.Go(func() error {
			n, err := c.fn(gctx, patientID)
			if err != nil {
				return fmt.Errorf("count %s: %w", c.name, err)
			}
			*c.dst = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}
