package scheduling

import (
	"errors"
	"net/http"
	"time"

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
	patientGroup := api.Group("/patient", auth.RequireRole("patient"))
	patientGroup.POST("/appointments", h.Book)
	patientGroup.GET("/appointments", h.List)

	doctorGroup := api.Group("/doctor", auth.RequireRole("doctor"))
	doctorGroup.GET("/appointments", h.List)
	doctorGroup.GET("/eligible-patients", h.EligiblePatients)
	doctorGroup.PUT("/appointments/:id/complete", h.Complete)
	doctorGroup.PUT("/appointments/:id/cancel", h.Cancel)
}

func caller(c echo.Context) (uuid.UUID, string, error) {
	ctx := c.Request().Context()
	id, err := uuid.Parse(auth.UserIDFromContext(ctx))
	return id, auth.RoleFromContext(ctx), err
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, "appointment is not scheduled")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type bookRequest struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      *string   `json:"reason,omitempty"`
}

func (h *Handler) Book(c echo.Context) error {
	patientID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}

	a, err := h.svc.Book(c.Request().Context(), patientID, req.DoctorID, req.ScheduledAt, req.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

// List returns the caller's own appointments, whichever side of them
// they are on.
func (h *Handler) List(c echo.Context) error {
	id, role, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	pg := pagination.FromContext(c)
	var items []*AppointmentView
	var total int
	if role == "doctor" {
		items, total, err = h.svc.ForDoctor(c.Request().Context(), id, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.ForPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// EligiblePatients lists the patients a doctor may request record access
// for: everyone they have a non-cancelled appointment with.
func (h *Handler) EligiblePatients(c echo.Context) error {
	doctorID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	refs, err := h.svc.PatientsForDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, refs)
}

func (h *Handler) Complete(c echo.Context) error {
	doctorID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := h.svc.Complete(c.Request().Context(), id, doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	doctorID, _, err := caller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := h.svc.Cancel(c.Request().Context(), id, doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}
