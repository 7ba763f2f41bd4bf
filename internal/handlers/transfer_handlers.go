package handlers

import (
	"net/http"

	"stockflow/internal/common"
	"stockflow/internal/models"
	"stockflow/internal/services"

	"github.com/labstack/echo/v4"
)

type TransferHandlers struct {
	transfers services.TransferService
}

func NewTransferHandlers(transfers services.TransferService) *TransferHandlers {
	return &TransferHandlers{transfers: transfers}
}

// CreateTransfer handles POST /transfers
func (h *TransferHandlers) CreateTransfer(c echo.Context) error {
	var req models.CreateTransferInput
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	t, err := h.transfers.Create(c.Request().Context(), req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return created(c, t)
}

// GetTransfer handles GET /transfers/:id
func (h *TransferHandlers) GetTransfer(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	t, err := h.transfers.Get(c.Request().Context(), id)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateTransferStatus handles PUT /transfers/:id/status
func (h *TransferHandlers) UpdateTransferStatus(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	status, ok, err := bindStatus(c)
	if !ok {
		return err
	}
	t, err := h.transfers.UpdateStatus(c.Request().Context(), id, models.TransferStatus(status))
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
