package handlers

import (
	"net/http"
	"strconv"

	"stockflow/internal/common"
	"stockflow/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// InventoryHandlers exposes the ledger's read paths and manual adjustments.
type InventoryHandlers struct {
	ledger services.InventoryLedger
}

func NewInventoryHandlers(ledger services.InventoryLedger) *InventoryHandlers {
	return &InventoryHandlers{ledger: ledger}
}

func stockPath(c echo.Context) (uuid.UUID, uuid.UUID, bool, error) {
	variantID, ok, err := pathUUID(c, "variant_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false, err
	}
	storeID, ok, err := pathUUID(c, "store_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false, err
	}
	return variantID, storeID, true, nil
}

type quantityResponse struct {
	ProductVariantID uuid.UUID `json:"product_variant_id"`
	StoreID          uuid.UUID `json:"store_id"`
	Quantity         int       `json:"quantity"`
}

// GetQuantity handles GET /inventory/:variant_id/stores/:store_id
func (h *InventoryHandlers) GetQuantity(c echo.Context) error {
	variantID, storeID, ok, err := stockPath(c)
	if !ok {
		return err
	}
	qty, err := h.ledger.CurrentQuantity(c.Request().Context(), variantID, storeID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, quantityResponse{ProductVariantID: variantID, StoreID: storeID, Quantity: qty})
}

// GetHistory handles GET /inventory/:variant_id/stores/:store_id/history
func (h *InventoryHandlers) GetHistory(c echo.Context) error {
	variantID, storeID, ok, err := stockPath(c)
	if !ok {
		return err
	}
	history, err := h.ledger.History(c.Request().Context(), variantID, storeID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": history})
}

// Reconcile handles GET /inventory/:variant_id/stores/:store_id/reconcile
func (h *InventoryHandlers) Reconcile(c echo.Context) error {
	variantID, storeID, ok, err := stockPath(c)
	if !ok {
		return err
	}
	report, err := h.ledger.Reconcile(c.Request().Context(), variantID, storeID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// AdjustStock handles POST /inventory/:variant_id/stores/:store_id/adjust
func (h *InventoryHandlers) AdjustStock(c echo.Context) error {
	variantID, storeID, ok, err := stockPath(c)
	if !ok {
		return err
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	tx, err := h.ledger.Adjust(c.Request().Context(), variantID, storeID, req.Delta)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return created(c, tx)
}

// ListDiscrepancies handles GET /inventory/discrepancies?limit=
func (h *InventoryHandlers) ListDiscrepancies(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return common.SendValidationError(c, "limit", "limit must be a positive integer")
		}
		limit = n
	}
	reports, err := h.ledger.FindDiscrepancies(c.Request().Context(), limit)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"discrepancies": reports})
}
