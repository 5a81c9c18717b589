package store

import (
	"context"
	"errors"
	"time"

	"salonledger/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("already exists")
)

// Range bounds a time query. A nil bound is open.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range. From is inclusive and
// To is exclusive.
func (r Range) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}

// Repository is the persistence boundary. Every tenant-owned record is
// addressed by the owning user id as well as its own id.
type Repository interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkUserVerified(ctx context.Context, userID string) error

	ListPackages(ctx context.Context, userID string) ([]domain.Package, error)
	GetPackagesByIDs(ctx context.Context, userID string, ids []string) ([]domain.Package, error)
	CreatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error)
	UpdatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error)
	DeletePackage(ctx context.Context, userID string, id string) error
	CountPackages(ctx context.Context, userID string) (int, error)

	ListInventory(ctx context.Context, userID string, entered Range) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, userID string, id string) (*domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, userID string, id string) error

	// ListBills returns bills newest first. A limit below 1 means no limit.
	ListBills(ctx context.Context, userID string, limit int) ([]domain.Bill, error)
	// ListBillsCreated returns bills created inside the range, oldest first.
	ListBillsCreated(ctx context.Context, userID string, created Range) ([]domain.Bill, error)
	GetBill(ctx context.Context, userID string, id string) (*domain.Bill, error)
	CountBills(ctx context.Context, userID string) (int, error)
	// CreateBill persists a bill and draws its inventory-backed product sales
	// from stock in one atomic step.
	CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	// UpdateBill replaces a bill, returning the stock held by its previous
	// product sales before drawing the new ones.
	UpdateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	// DeleteBill removes a bill and returns its product sales to stock.
	DeleteBill(ctx context.Context, userID string, id string) error
}
