package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ActorIDKey contextKey = "actor_id"
)

// WithActorID stores the authenticated actor on ctx so ledger transactions can record it.
func WithActorID(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, ActorIDKey, actorID)
}

// GetActorIDFromContext extracts the actor id, if any.
func GetActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	actorID, ok := ctx.Value(ActorIDKey).(uuid.UUID)
	return actorID, ok
}

// ActorPtr returns the actor id as a pointer, nil when the request is anonymous.
func ActorPtr(ctx context.Context) *uuid.UUID {
	if id, ok := GetActorIDFromContext(ctx); ok && id != uuid.Nil {
		return &id
	}
	return nil
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]interface{}) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]interface{}{
		"field": field,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse(string(KindValidation), message, details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendDomainError renders err using its kind and context. Infrastructure errors become a generic 500.
func SendDomainError(c echo.Context, err error) error {
	var de *DomainError
	if errors.As(err, &de) {
		message := de.Message
		if message == "" {
			message = strings.ToLower(strings.ReplaceAll(string(de.Kind), "_", " "))
		}
		return c.JSON(de.Kind.HTTPStatus(), CreateErrorResponse(string(de.Kind), message, de.Context))
	}
	return SendServerError(c, "internal error")
}

// ValidateUUID parses a path or body identifier.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid UUID: %v", fieldName, err)
	}
	return id, nil
}

// ParseScopeDate parses a YYYY-MM-DD or YYYYMMDD date used as a sequence scope.
func ParseScopeDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD or YYYYMMDD", value)
}

// SafeString safely dereferences string pointer
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
