package handlers

import (
	"net/http"

	"stockflow/internal/common"
	"stockflow/internal/models"
	"stockflow/internal/services"

	"github.com/labstack/echo/v4"
)

// PurchaseHandlers handles HTTP requests for purchases
type PurchaseHandlers struct {
	purchases services.PurchaseService
}

func NewPurchaseHandlers(purchases services.PurchaseService) *PurchaseHandlers {
	return &PurchaseHandlers{purchases: purchases}
}

// CreatePurchase handles POST /purchases
func (h *PurchaseHandlers) CreatePurchase(c echo.Context) error {
	var req models.CreatePurchaseInput
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	result, err := h.purchases.Create(c.Request().Context(), req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return created(c, result)
}

// GetPurchase handles GET /purchases/:id
func (h *PurchaseHandlers) GetPurchase(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	p, err := h.purchases.Get(c.Request().Context(), id)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdatePurchaseStatus handles PUT /purchases/:id/status
func (h *PurchaseHandlers) UpdatePurchaseStatus(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	status, ok, err := bindStatus(c)
	if !ok {
		return err
	}

	result, err := h.purchases.UpdateStatus(c.Request().Context(), id, models.PurchaseStatus(status))
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// RevertPurchase handles POST /purchases/:id/revert
func (h *PurchaseHandlers) RevertPurchase(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	result, err := h.purchases.Revert(c.Request().Context(), id)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// DeletePurchase handles DELETE /purchases/:id
func (h *PurchaseHandlers) DeletePurchase(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	if err := h.purchases.Delete(c.Request().Context(), id); err != nil {
		return common.SendDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
