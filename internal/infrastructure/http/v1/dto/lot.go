package dto

import (
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/lot"
)

// CreateLotRequest for registering a new lot.
type CreateLotRequest struct {
	LotNumber    string         `json:"lotNumber"`
	ProductID    string         `json:"productId" binding:"required,uuid"`
	ProductName  string         `json:"productName"`
	WarehouseID  string         `json:"warehouseId" binding:"required,uuid"`
	Quantity     types.Quantity `json:"quantity"`
	ReceivedDate *time.Time     `json:"receivedDate"`
	ExpiryDate   *time.Time     `json:"expiryDate"`
	CostPerUnit  *types.Money   `json:"costPerUnit"`
	Currency     string         `json:"currency"`
	Notes        string         `json:"notes"`
}

// ToEntity converts the request to a lot. IDs are pre-validated by binding.
func (r CreateLotRequest) ToEntity() *lot.Lot {
	l := lot.New(id.MustParse(r.ProductID), id.MustParse(r.WarehouseID))
	l.LotNumber = r.LotNumber
	l.ProductName = r.ProductName
	l.Quantity = r.Quantity
	if r.ReceivedDate != nil {
		l.ReceivedDate = *r.ReceivedDate
	}
	l.ExpiryDate = r.ExpiryDate
	if r.CostPerUnit != nil {
		l.CostPerUnit = *r.CostPerUnit
	}
	l.Currency = r.Currency
	l.Notes = r.Notes
	return l
}

// UpdateLotRequest for partial lot updates. Nil fields are left unchanged.
type UpdateLotRequest struct {
	ProductName      *string         `json:"productName"`
	Quantity         *types.Quantity `json:"quantity"`
	ReservedQuantity *types.Quantity `json:"reservedQuantity"`
	Status           *string         `json:"status"`
	ExpiryDate       *time.Time      `json:"expiryDate"`
	CostPerUnit      *types.Money    `json:"costPerUnit"`
	Currency         *string         `json:"currency"`
	Notes            *string         `json:"notes"`
}

// ToPatch converts the request to a service patch.
func (r UpdateLotRequest) ToPatch() lot.UpdatePatch {
	patch := lot.UpdatePatch{
		ProductName:      r.ProductName,
		Quantity:         r.Quantity,
		ReservedQuantity: r.ReservedQuantity,
		ExpiryDate:       r.ExpiryDate,
		CostPerUnit:      r.CostPerUnit,
		Currency:         r.Currency,
		Notes:            r.Notes,
	}
	if r.Status != nil {
		status := lot.Status(*r.Status)
		patch.Status = &status
	}
	return patch
}

// QuantityRequest for reserve/release operations.
type QuantityRequest struct {
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// ConsumeRequest for consume operations.
type ConsumeRequest struct {
	Quantity types.Quantity `json:"quantity" binding:"required"`
	Reason   string         `json:"reason"`
}

// LotResponse contains lot fields.
type LotResponse struct {
	ID                string         `json:"id"`
	LotNumber         string         `json:"lotNumber"`
	ProductID         string         `json:"productId"`
	ProductName       string         `json:"productName,omitempty"`
	WarehouseID       string         `json:"warehouseId"`
	Quantity          types.Quantity `json:"quantity"`
	ReservedQuantity  types.Quantity `json:"reservedQuantity"`
	AvailableQuantity types.Quantity `json:"availableQuantity"`
	Status            string         `json:"status"`
	ReceivedDate      time.Time      `json:"receivedDate"`
	ExpiryDate        *time.Time     `json:"expiryDate,omitempty"`
	CostPerUnit       types.Money    `json:"costPerUnit"`
	Currency          string         `json:"currency,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Version           int            `json:"version"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// FromLot creates LotResponse from a lot.
func FromLot(l *lot.Lot) *LotResponse {
	return &LotResponse{
		ID:                l.ID.String(),
		LotNumber:         l.LotNumber,
		ProductID:         l.ProductID.String(),
		ProductName:       l.ProductName,
		WarehouseID:       l.WarehouseID.String(),
		Quantity:          l.Quantity,
		ReservedQuantity:  l.ReservedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		Status:            string(l.Status),
		ReceivedDate:      l.ReceivedDate,
		ExpiryDate:        l.ExpiryDate,
		CostPerUnit:       l.CostPerUnit,
		Currency:          l.Currency,
		Notes:             l.Notes,
		Version:           l.Version,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}
