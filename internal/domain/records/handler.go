package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the medical-records API on g, normally
// /api/v1/medical-records. The echo instance must have a Validator.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateMedicalRecord)
	g.GET("/:id", h.GetMedicalRecord)
	g.PUT("/:id", h.UpdateMedicalRecord)
	g.DELETE("/:id", h.DeleteMedicalRecord)
	g.GET("/patient/:patientId", h.ListMedicalRecordsByPatient)
	g.GET("/doctor/:doctorId", h.ListMedicalRecordsByDoctor)
	g.GET("/patient/:patientId/summary", h.GetPatientHealthSummary)

	g.POST("/prescriptions", h.CreatePrescription)
	g.GET("/prescriptions/patient/:patientId", h.ListPrescriptionsByPatient)
	g.GET("/prescriptions/patient/:patientId/active", h.ListActivePrescriptions)
	g.PUT("/prescriptions/:id/refill", h.RefillPrescription)

	g.POST("/allergies", h.CreateAllergy)
	g.GET("/allergies/patient/:patientId", h.ListAllergiesByPatient)

	g.POST("/immunizations", h.CreateImmunization)
	g.GET("/immunizations/patient/:patientId", h.ListImmunizationsByPatient)

	g.POST("/lab-tests", h.CreateLabTest)
	g.PUT("/lab-tests/:id/results", h.UpdateLabTestResults)
	g.GET("/lab-tests/patient/:patientId", h.ListLabTestsByPatient)
}

// -- Medical records --

func (h *Handler) CreateMedicalRecord(c echo.Context) error {
	var in CreateMedicalRecordInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	m, err := h.svc.CreateMedicalRecord(c.Request().Context(), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedicalRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedicalRecord(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMedicalRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateMedicalRecordInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	m, err := h.svc.UpdateMedicalRecord(c.Request().Context(), id, &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedicalRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.DeleteMedicalRecord(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedicalRecordsByPatient(c echo.Context) error {
	pid, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListMedicalRecordsByPatient(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) ListMedicalRecordsByDoctor(c echo.Context) error {
	did, err := pathID(c, "doctorId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListMedicalRecordsByDoctor(c.Request().Context(), did)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) GetPatientHealthSummary(c echo.Context) error {
	pid, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	sum, err := h.svc.GetPatientHealthSummary(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

// -- Prescriptions --

func (h *Handler) CreatePrescription(c echo.Context) error {
	var in CreatePrescriptionInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	p, err := h.svc.CreatePrescription(c.Request().Context(), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPrescriptionsByPatient(c echo.Context) error {
	pid, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListPrescriptionsByPatient(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) ListActivePrescriptions(c echo.Context) error {
	pid, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListActivePrescriptions(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) RefillPrescription(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.RefillPrescription(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Allergies --

func (h *Handler) CreateAllergy(c echo.Context) error {
	var in CreateAllergyInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	a, err := h.svc.CreateAllergy(c.Request().Context(), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAllergiesByPatient(c echo.Context) error {
	pid, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListAllergiesByPatient(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

// -- Immunizations --

func (h *Handler) CreateImmunization(c echo.Context) error {
	var in CreateImmunizationInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	im, err := h.svc.CreateImmunization(c.Request().Context(), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, im)
}

func (h *Handler) ListImmunizationsByPatient(c echo.Context) error {
	pid, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListImmunizationsByPatient(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

// -- Lab tests --

func (h *Handler) CreateLabTest(c echo.Context) error {
	var in CreateLabTestInput
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	lt, err := h.svc.CreateLabTest(c.Request().Context(), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, lt)
}

func (h *Handler) UpdateLabTestResults(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	results, err := bindDocument(c)
	if err != nil {
		return err
	}
	lt, err := h.svc.UpdateLabTestResults(c.Request().Context(), id, results)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) ListLabTestsByPatient(c echo.Context) error {
	pid, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	items, err := h.svc.ListLabTestsByPatient(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

// -- helpers --

func bindAndValidate(c echo.Context, in interface{}) error {
	if err := c.Bind(in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(in); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// bindDocument takes the whole request body as a JSON object.
func bindDocument(c echo.Context) (Document, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "results are required")
	}
	if body[0] != '{' || !json.Valid(body) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "results must be a JSON object")
	}
	return Document(body), nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// httpError maps service errors to HTTP status codes. Unknown errors are
// returned as-is and end up as 500 in echo's error handler.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
