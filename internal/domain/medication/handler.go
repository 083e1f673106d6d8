package medication

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medivault/medivault/internal/platform/auth"
	"github.com/medivault/medivault/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctorGroup := api.Group("/doctor", auth.RequireRole("doctor"))
	doctorGroup.POST("/prescriptions", h.CreatePrescription)
	doctorGroup.GET("/prescriptions", h.ListPrescriptions)

	patientGroup := api.Group("/patient", auth.RequireRole("patient"))
	patientGroup.GET("/prescriptions", h.ListPrescriptions)
	patientGroup.GET("/reminders", h.ListReminders)
	patientGroup.POST("/reminders", h.CreateReminder)
	patientGroup.PUT("/reminders/:id", h.UpdateReminder)
	patientGroup.DELETE("/reminders/:id", h.DeleteReminder)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	case errors.Is(err, ErrNoAppointment):
		return echo.NewHTTPError(http.StatusBadRequest, "no appointment with this patient")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func caller(c echo.Context) (uuid.UUID, string, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	return id, auth.RoleFromContext(c.Request().Context()), err
}

type createPrescriptionBody struct {
	PatientID uuid.UUID       `json:"patient_id"`
	Diagnosis *string         `json:"diagnosis,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
	Medicines []MedicineInput `json:"medicines"`
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	doctorID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	var body createPrescriptionBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	p, err := h.svc.Prescribe(c.Request().Context(), doctorID, body.PatientID, body.Diagnosis, body.Notes, body.Medicines)
	if err != nil {
		if errors.Is(err, ErrNoAppointment) || errors.Is(err, ErrNotFound) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	userID, role, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	pg := pagination.FromContext(c)
	var (
		items []*PrescriptionView
		total int
	)
	if role == "doctor" {
		items, total, err = h.svc.ForDoctor(c.Request().Context(), userID, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.ForPatient(c.Request().Context(), userID, pg.Limit, pg.Offset)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateReminder(c echo.Context) error {
	patientID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	var in ReminderInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	r, err := h.svc.AddReminder(c.Request().Context(), patientID, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListReminders(c echo.Context) error {
	patientID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	items, err := h.svc.RemindersForPatient(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateReminder(c echo.Context) error {
	patientID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	reminderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var upd ReminderUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	r, err := h.svc.UpdateReminder(c.Request().Context(), patientID, reminderID, upd)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteReminder(c echo.Context) error {
	patientID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	reminderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.svc.DeleteReminder(c.Request().Context(), patientID, reminderID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
