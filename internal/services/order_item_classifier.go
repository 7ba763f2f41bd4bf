package services

import (
	"stockflow/internal/common"
	"stockflow/internal/models"

	"github.com/google/uuid"
)

// ClassifyItem maps raw line attributes to a fulfillment type. Rules are evaluated in order
// and the first match wins.
func ClassifyItem(attrs models.ItemAttributes) models.FulfillmentType {
	if attrs.ProductVariantID == nil || *attrs.ProductVariantID == uuid.Nil {
		return models.FulfillmentCustom
	}
	if common.Truthy(attrs.IsStockedSale) {
		return models.FulfillmentStock
	}
	if common.Truthy(attrs.IsBackorder) {
		return models.FulfillmentBackorder
	}
	// Both flags given and both empty: made to order against a catalog entry.
	if common.Present(attrs.IsStockedSale) && common.Present(attrs.IsBackorder) {
		return models.FulfillmentCustom
	}
	return models.FulfillmentBackorder
}
