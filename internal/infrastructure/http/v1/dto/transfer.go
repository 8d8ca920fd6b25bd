package dto

import (
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/transfer"
)

// CreateTransferRequest for registering a new transfer.
type CreateTransferRequest struct {
	FromWarehouseID string                      `json:"fromWarehouseId" binding:"required,uuid"`
	ToWarehouseID   string                      `json:"toWarehouseId" binding:"required,uuid"`
	Notes           string                      `json:"notes"`
	Items           []CreateTransferItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateTransferItemRequest is one product line of a create request.
type CreateTransferItemRequest struct {
	ProductID   string         `json:"productId" binding:"required,uuid"`
	ProductName string         `json:"productName"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
}

// ToEntity converts the request to a transfer. IDs are pre-validated by binding.
func (r CreateTransferRequest) ToEntity() *transfer.StockTransfer {
	t := transfer.New(id.MustParse(r.FromWarehouseID), id.MustParse(r.ToWarehouseID))
	t.Notes = r.Notes
	for _, item := range r.Items {
		t.AddItem(id.MustParse(item.ProductID), item.ProductName, item.Quantity)
	}
	return t
}

// ReceiveTransferRequest for completing a transfer. Items absent from the
// request are received at their full shipped quantity.
type ReceiveTransferRequest struct {
	Items []ReceiveTransferItemRequest `json:"items" binding:"dive"`
}

// ReceiveTransferItemRequest overrides the received quantity of one item.
type ReceiveTransferItemRequest struct {
	ItemID   string         `json:"itemId" binding:"required,uuid"`
	Quantity types.Quantity `json:"quantity"`
}

// ToMap converts the request to the service's received-quantity map.
func (r ReceiveTransferRequest) ToMap() map[id.ID]types.Quantity {
	received := make(map[id.ID]types.Quantity, len(r.Items))
	for _, item := range r.Items {
		received[id.MustParse(item.ItemID)] = item.Quantity
	}
	return received
}

// TransferResponse contains transfer fields with items.
type TransferResponse struct {
	ID              string                 `json:"id"`
	TransferNumber  string                 `json:"transferNumber"`
	FromWarehouseID string                 `json:"fromWarehouseId"`
	ToWarehouseID   string                 `json:"toWarehouseId"`
	Status          string                 `json:"status"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedBy       string                 `json:"createdBy,omitempty"`
	ShippedAt       *time.Time             `json:"shippedAt,omitempty"`
	ReceivedAt      *time.Time             `json:"receivedAt,omitempty"`
	Items           []TransferItemResponse `json:"items"`
	Version         int                    `json:"version"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// TransferItemResponse is one product line of a transfer response.
type TransferItemResponse struct {
	ID                string         `json:"id"`
	ProductID         string         `json:"productId"`
	ProductName       string         `json:"productName,omitempty"`
	RequestedQuantity types.Quantity `json:"requestedQuantity"`
	ShippedQuantity   types.Quantity `json:"shippedQuantity"`
	ReceivedQuantity  types.Quantity `json:"receivedQuantity"`
	UnitCost          types.Money    `json:"unitCost"`
	Currency          string         `json:"currency,omitempty"`
}

// FromTransfer creates TransferResponse from a transfer.
func FromTransfer(t *transfer.StockTransfer) *TransferResponse {
	items := make([]TransferItemResponse, len(t.Items))
	for i, item := range t.Items {
		items[i] = TransferItemResponse{
			ID:                item.ID.String(),
			ProductID:         item.ProductID.String(),
			ProductName:       item.ProductName,
			RequestedQuantity: item.RequestedQuantity,
			ShippedQuantity:   item.ShippedQuantity,
			ReceivedQuantity:  item.ReceivedQuantity,
			UnitCost:          item.UnitCost,
			Currency:          item.Currency,
		}
	}

	return &TransferResponse{
		ID:              t.ID.String(),
		TransferNumber:  t.TransferNumber,
		FromWarehouseID: t.FromWarehouseID.String(),
		ToWarehouseID:   t.ToWarehouseID.String(),
		Status:          string(t.Status),
		Notes:           t.Notes,
		CreatedBy:       t.CreatedBy,
		ShippedAt:       t.ShippedAt,
		ReceivedAt:      t.ReceivedAt,
		Items:           items,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}
