package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind enumerates the recoverable failure conditions of the stock core.
type ErrorKind string

const (
	KindInvalidQuantity          ErrorKind = "INVALID_QUANTITY"
	KindInsufficientStock        ErrorKind = "INSUFFICIENT_STOCK"
	KindInventoryRecordNotFound  ErrorKind = "INVENTORY_RECORD_NOT_FOUND"
	KindInventoryOperationFailed ErrorKind = "INVENTORY_OPERATION_FAILED"
	KindRetryExhausted           ErrorKind = "RETRY_EXHAUSTED"
	KindInvalidStatusTransition  ErrorKind = "INVALID_STATUS_TRANSITION"
	KindNotFound                 ErrorKind = "NOT_FOUND"
	KindValidation               ErrorKind = "VALIDATION_ERROR"
)

// HTTPStatus maps a kind to the status an HTTP adapter should answer with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidQuantity, KindValidation:
		return http.StatusUnprocessableEntity
	case KindInsufficientStock, KindInvalidStatusTransition:
		return http.StatusConflict
	case KindInventoryRecordNotFound, KindNotFound:
		return http.StatusNotFound
	case KindRetryExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainError is the structured error returned across the workflow boundary.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Context map[string]interface{}
	Err     error
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports kind equality so sentinels work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// With returns a copy of e carrying the extra context key.
func (e *DomainError) With(key string, value interface{}) *DomainError {
	ctx := make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &DomainError{Kind: e.Kind, Message: e.Message, Context: ctx, Err: e.Err}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidQuantity          = &DomainError{Kind: KindInvalidQuantity}
	ErrInsufficientStock        = &DomainError{Kind: KindInsufficientStock}
	ErrInventoryRecordNotFound  = &DomainError{Kind: KindInventoryRecordNotFound}
	ErrInventoryOperationFailed = &DomainError{Kind: KindInventoryOperationFailed}
	ErrRetryExhausted           = &DomainError{Kind: KindRetryExhausted}
	ErrInvalidStatusTransition  = &DomainError{Kind: KindInvalidStatusTransition}
	ErrNotFound                 = &DomainError{Kind: KindNotFound}
	ErrValidation               = &DomainError{Kind: KindValidation}
)

func NewInvalidQuantity(quantity int) *DomainError {
	return &DomainError{
		Kind:    KindInvalidQuantity,
		Message: "quantity must be greater than zero",
		Context: map[string]interface{}{"quantity": quantity},
	}
}

func NewInsufficientStock(variantID, storeID string, available, requested int) *DomainError {
	return &DomainError{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock: available %d, requested %d", available, requested),
		Context: map[string]interface{}{
			"product_variant_id": variantID,
			"store_id":           storeID,
			"available":          available,
			"requested":          requested,
		},
	}
}

func NewRecordNotFound(variantID, storeID string) *DomainError {
	return &DomainError{
		Kind:    KindInventoryRecordNotFound,
		Message: "inventory record not found",
		Context: map[string]interface{}{"product_variant_id": variantID, "store_id": storeID},
	}
}

// NewOperationFailed wraps the failure of a multi-step inventory transition.
func NewOperationFailed(operation string, err error, ctx map[string]interface{}) *DomainError {
	if ctx == nil {
		ctx = map[string]interface{}{}
	}
	ctx["operation"] = operation
	var cause *DomainError
	if errors.As(err, &cause) {
		ctx["cause"] = string(cause.Kind)
	}
	return &DomainError{
		Kind:    KindInventoryOperationFailed,
		Message: fmt.Sprintf("%s failed", operation),
		Context: ctx,
		Err:     err,
	}
}

func NewRetryExhausted(operation string, attempts uint, err error) *DomainError {
	return &DomainError{
		Kind:    KindRetryExhausted,
		Message: fmt.Sprintf("%s did not succeed after %d attempts", operation, attempts),
		Context: map[string]interface{}{"operation": operation, "attempts": attempts},
		Err:     err,
	}
}

func NewInvalidTransition(entity, from, to string) *DomainError {
	return &DomainError{
		Kind:    KindInvalidStatusTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		Context: map[string]interface{}{"entity": entity, "from": from, "to": to},
	}
}

func NewNotFound(resource, id string) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Context: map[string]interface{}{"resource": resource, "id": id},
	}
}

func NewValidation(field, message string) *DomainError {
	return &DomainError{
		Kind:    KindValidation,
		Message: message,
		Context: map[string]interface{}{"field": field},
	}
}

// KindOf returns the kind of the first DomainError in err's chain, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
