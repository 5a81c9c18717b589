package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PackageTypeBasic   = "Basic"
	PackageTypePremium = "Premium"

	PaymentStatusPaid   = "Paid"
	PaymentStatusUnpaid = "Unpaid"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Package struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Type        string          `json:"type"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type InventoryItem struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Name          string          `json:"name"`
	BrandName     string          `json:"brandName,omitempty"`
	Category      string          `json:"category,omitempty"`
	Quantity      int             `json:"quantity"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus string          `json:"paymentStatus"`
	DateEntered   time.Time       `json:"dateEntered"`
	ExpiryDate    *time.Time      `json:"expiryDate,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// BillItem is a snapshot of a package taken when the bill was written.
type BillItem struct {
	PackageID    string          `json:"packageId"`
	PackageName  string          `json:"packageName"`
	PackagePrice decimal.Decimal `json:"packagePrice"`
	PackageType  string          `json:"packageType"`
}

type ProductSale struct {
	InventoryItemID string          `json:"inventoryItemId,omitempty"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
}

type Expenditure struct {
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type Bill struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	ClientName     string          `json:"clientName"`
	CustomerMobile string          `json:"customerMobile,omitempty"`
	AttendantBy    string          `json:"attendantBy"`
	Items          []BillItem      `json:"items"`
	ProductSales   []ProductSale   `json:"productSales"`
	Expenditures   []Expenditure   `json:"expenditures"`
	UPIAmount      decimal.Decimal `json:"upiAmount"`
	CardAmount     decimal.Decimal `json:"cardAmount"`
	CashAmount     decimal.Decimal `json:"cashAmount"`
	ServicesTotal  decimal.Decimal `json:"servicesTotal"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Editable       bool            `json:"editable"`
}

// StockMovements returns the inventory quantities a bill draws from stock,
// keyed by inventory item id.
func (b Bill) StockMovements() map[string]int {
	movements := make(map[string]int)
	for _, sale := range b.ProductSales {
		if sale.InventoryItemID == "" {
			continue
		}
		movements[sale.InventoryItemID] += sale.Quantity
	}
	return movements
}

// Actor is the authenticated caller attached to a request.
type Actor struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignUpResponse struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignInResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type PackageRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Type        string          `json:"type" validate:"required,oneof=Basic Premium"`
}

type InventoryRequest struct {
	Name          string          `json:"name" validate:"required"`
	BrandName     string          `json:"brandName"`
	Category      string          `json:"category"`
	Quantity      int             `json:"quantity" validate:"gt=0"`
	PricePerUnit  decimal.Decimal `json:"pricePerUnit"`
	PaymentStatus string          `json:"paymentStatus" validate:"omitempty,oneof=Paid Unpaid"`
	ExpiryDate    string          `json:"expiryDate"`
}

type ProductSaleRequest struct {
	InventoryItemID string          `json:"inventoryItemId"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity" validate:"gte=1"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
}

type ExpenditureRequest struct {
	Name        string          `json:"name" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type BillRequest struct {
	PackageIDs     []string             `json:"packageIds" validate:"required,min=1,unique,dive,required"`
	ClientName     string               `json:"clientName" validate:"required"`
	CustomerMobile string               `json:"customerMobile"`
	AttendantBy    string               `json:"attendantBy" validate:"required"`
	UPIAmount      decimal.Decimal      `json:"upiAmount"`
	CardAmount     decimal.Decimal      `json:"cardAmount"`
	CashAmount     decimal.Decimal      `json:"cashAmount"`
	ProductSales   []ProductSaleRequest `json:"productSales" validate:"dive"`
	Expenditures   []ExpenditureRequest `json:"expenditures" validate:"dive"`
}

type BillResponse struct {
	Message string `json:"message"`
	BillID  string `json:"billId"`
	Bill    *Bill  `json:"bill"`
}

type ShareLink struct {
	BillID  string `json:"billId"`
	Mobile  string `json:"mobile"`
	Message string `json:"message"`
	URL     string `json:"url"`
}
