package handlers

import (
	"net/http"

	"stockflow/internal/common"
	"stockflow/internal/models"
	"stockflow/internal/services"

	"github.com/labstack/echo/v4"
)

// OrderHandlers handles HTTP requests for orders
type OrderHandlers struct {
	orderService services.OrderService
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(orderService services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		orderService: orderService,
	}
}

// CreateOrder handles POST /orders
func (h *OrderHandlers) CreateOrder(c echo.Context) error {
	var req models.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	result, err := h.orderService.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return created(c, result)
}

// GetOrder handles GET /orders/:id
func (h *OrderHandlers) GetOrder(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	order, err := h.orderService.Get(c.Request().Context(), id)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PUT /orders/:id/status. Only cancelled and returned can be requested;
// fulfilled is reached through line fulfillment.
func (h *OrderHandlers) UpdateOrderStatus(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	status, ok, err := bindStatus(c)
	if !ok {
		return err
	}

	ctx := c.Request().Context()
	var order *models.Order
	switch models.OrderStatus(status) {
	case models.OrderCancelled:
		order, err = h.orderService.CancelOrder(ctx, id)
	case models.OrderReturned:
		order, err = h.orderService.ReturnOrder(ctx, id)
	default:
		return common.SendValidationError(c, "status", "status must be cancelled or returned")
	}
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// FulfillOrderItem handles POST /orders/:id/items/:item_id/fulfill
func (h *OrderHandlers) FulfillOrderItem(c echo.Context) error {
	id, ok, err := pathUUID(c, "id")
	if !ok {
		return err
	}
	itemID, ok, err := pathUUID(c, "item_id")
	if !ok {
		return err
	}

	order, err := h.orderService.MarkItemFulfilled(c.Request().Context(), id, itemID)
	if err != nil {
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
