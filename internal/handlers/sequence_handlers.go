package handlers

import (
	"net/http"
	"time"

	"stockflow/internal/common"
	"stockflow/internal/services"

	"github.com/labstack/echo/v4"
)

type SequenceHandlers struct {
	sequences services.SequenceService
}

func NewSequenceHandlers(sequences services.SequenceService) *SequenceHandlers {
	return &SequenceHandlers{sequences: sequences}
}

type sequenceRequest struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Start int64  `json:"start"`
}

// scopeDate defaults to today (UTC) when no date is given.
func scopeDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return common.ParseScopeDate(raw)
}

func (h *SequenceHandlers) bind(c echo.Context) (sequenceRequest, time.Time, bool, error) {
	var req sequenceRequest
	if err := c.Bind(&req); err != nil {
		return req, time.Time{}, false, common.SendClientError(c, "Invalid request format")
	}
	scope, err := scopeDate(req.Date)
	if err != nil {
		return req, time.Time{}, false, common.SendValidationError(c, "date", err.Error())
	}
	return req, scope, true, nil
}

// NextNumber handles POST /sequences/:prefix/next
func (h *SequenceHandlers) NextNumber(c echo.Context) error {
	_, scope, ok, err := h.bind(c)
	if !ok {
		return err
	}
	id, err := h.sequences.Next(c.Request().Context(), c.Param("prefix"), scope)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"identifier": id})
}

// NextBatch handles POST /sequences/:prefix/batch
func (h *SequenceHandlers) NextBatch(c echo.Context) error {
	req, scope, ok, err := h.bind(c)
	if !ok {
		return err
	}
	ids, err := h.sequences.NextBatch(c.Request().Context(), c.Param("prefix"), scope, req.Count)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"identifiers": ids})
}

// Reset handles PUT /sequences/:prefix/reset
func (h *SequenceHandlers) Reset(c echo.Context) error {
	req, scope, ok, err := h.bind(c)
	if !ok {
		return err
	}
	if err := h.sequences.Reset(c.Request().Context(), c.Param("prefix"), scope, req.Start); err != nil {
		return common.SendDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Current handles GET /sequences/:prefix?date=
func (h *SequenceHandlers) Current(c echo.Context) error {
	scope, err := scopeDate(c.QueryParam("date"))
	if err != nil {
		return common.SendValidationError(c, "date", err.Error())
	}
	value, err := h.sequences.Current(c.Request().Context(), c.Param("prefix"), scope)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"scope": services.ScopeKey(c.Param("prefix"), scope),
		"value": value,
	})
}
