package dashboard

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medivault/medivault/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patientGroup := api.Group("/patient", auth.RequireRole("patient"))
	patientGroup.GET("/dashboard", h.PatientDashboard)

	doctorGroup := api.Group("/doctor", auth.RequireRole("doctor"))
	doctorGroup.GET("/dashboard", h.DoctorDashboard)
	doctorGroup.GET("/patient/:id/data", h.PatientRecords)
}

func callerID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	dash, err := h.svc.ForPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dash)
}

func (h *Handler) DoctorDashboard(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	dash, err := h.svc.ForDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dash)
}

func (h *Handler) PatientRecords(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	record, err := h.svc.RecordForDoctor(c.Request().Context(), doctorID, patientID)
	if err != nil {
		if errors.Is(err, ErrNoAccess) {
			return echo.NewHTTPError(http.StatusForbidden, "no access grant for this patient")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, record)
}
