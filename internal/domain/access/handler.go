package access

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
	doctorGroup.POST("/request-access", h.SubmitRequest)
	doctorGroup.GET("/access-requests", h.ListDoctorRequests)
	doctorGroup.GET("/patients", h.ListAccessiblePatients)

	patientGroup := api.Group("/patient", auth.RequireRole("patient"))
	patientGroup.GET("/access-requests", h.ListPendingRequests)
	patientGroup.PUT("/access-requests/:id/approve", h.ApproveRequest)
	patientGroup.PUT("/access-requests/:id/reject", h.RejectRequest)
	patientGroup.GET("/current-access", h.ListGrants)
	patientGroup.DELETE("/current-access/:id", h.RevokeGrant)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, "request already resolved")
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "request already exists for this patient")
	case errors.Is(err, ErrInvalidReference):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor or patient reference")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func callerID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
}

type submitRequestBody struct {
	PatientID uuid.UUID `json:"patient_id"`
	Reason    *string   `json:"reason,omitempty"`
}

func (h *Handler) SubmitRequest(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	var body submitRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	req, err := h.svc.SubmitRequest(c.Request().Context(), doctorID, body.PatientID, body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListDoctorRequests(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.RequestsForDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListAccessiblePatients(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.GrantsForDoctor(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPendingRequests(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.PendingForPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ApproveRequest(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	grant, err := h.svc.Approve(c.Request().Context(), requestID, patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (h *Handler) RejectRequest(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.svc.Reject(c.Request().Context(), requestID, patientID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": StatusRejected})
}

func (h *Handler) ListGrants(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.GrantsForPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RevokeGrant(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.svc.Revoke(c.Request().Context(), grantID, patientID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
