package handlers

import (
	"net/http"

	"stockflow/internal/common"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// pathUUID parses a UUID path parameter, writing the 400 response itself on failure.
func pathUUID(c echo.Context, name string) (uuid.UUID, bool, error) {
	id, err := common.ValidateUUID(c.Param(name), name)
	if err != nil {
		return uuid.Nil, false, common.SendValidationError(c, name, err.Error())
	}
	return id, true, nil
}

type statusRequest struct {
	Status string `json:"status"`
}

func bindStatus(c echo.Context) (string, bool, error) {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return "", false, common.SendClientError(c, "Invalid request format")
	}
	if req.Status == "" {
		return "", false, common.SendValidationError(c, "status", "status is required")
	}
	return req.Status, true, nil
}

func created(c echo.Context, body interface{}) error {
	return c.JSON(http.StatusCreated, body)
}
