/*
dto.go - Request/response shapes for the billing API

PURPOSE:
  Create/update requests are decoded into dedicated structs so caller-
  supplied ids and timestamps never leak into the entities the backend
  persists, and so required-field checks run before the backend is
  touched. Entities themselves marshal straight from the billing package.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/spacelefarm/billing-engine/billing"
)

// ErrorResponse is the error envelope for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DeleteResponse acknowledges an idempotent delete.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// CreateProductRequest is the payload for POST /api/products.
type CreateProductRequest struct {
	Name  string          `json:"name" validate:"required"`
	Unit  string          `json:"unit"`
	Price decimal.Decimal `json:"price" validate:"required"`
}

func (r CreateProductRequest) toEntity() billing.Product {
	return billing.Product{Name: r.Name, Unit: r.Unit, Price: r.Price}
}

// CreateCustomerRequest is the payload for POST /api/customers.
type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (r CreateCustomerRequest) toEntity() billing.Customer {
	return billing.Customer{Name: r.Name, Phone: r.Phone, Address: r.Address}
}

// CreateUnitRequest is the payload for POST /api/units. The display rank
// is assigned by the store.
type CreateUnitRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateBillRequest is the payload for POST /api/bills. Subtotal and total
// are recomputed by the store; id and createdAt are store-assigned.
type CreateBillRequest struct {
	CustomerName    string             `json:"customerName"`
	CustomerPhone   string             `json:"customerPhone"`
	CustomerAddress string             `json:"customerAddress"`
	OrderCode       string             `json:"orderCode"`
	Items           []billing.BillItem `json:"items" validate:"required,min=1"`
	Discount        decimal.Decimal    `json:"discount"`
}

func (r CreateBillRequest) toEntity() billing.Bill {
	return billing.Bill{
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		CustomerAddress: r.CustomerAddress,
		OrderCode:       r.OrderCode,
		Items:           r.Items,
		Discount:        r.Discount,
	}
}
