package service

import (
	"context"
	"strings"
	"time"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/store"
)

func (s *Service) ListPackages(ctx context.Context, userID string) ([]domain.Package, error) {
	return s.repo.ListPackages(ctx, userID)
}

func (s *Service) CreatePackage(ctx context.Context, userID string, req domain.PackageRequest) (*domain.Package, error) {
	pkg, err := s.packageFromRequest(req)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	pkg.UserID = userID
	pkg.CreatedAt = now
	pkg.UpdatedAt = now
	return s.repo.CreatePackage(ctx, pkg)
}

// UpdatePackage edits the catalog entry only. Bills keep the snapshot taken
// when they were written.
func (s *Service) UpdatePackage(ctx context.Context, userID string, id string, req domain.PackageRequest) (*domain.Package, error) {
	pkg, err := s.packageFromRequest(req)
	if err != nil {
		return nil, err
	}
	pkg.ID = id
	pkg.UserID = userID
	pkg.UpdatedAt = s.now().UTC()
	return s.repo.UpdatePackage(ctx, pkg)
}

func (s *Service) DeletePackage(ctx context.Context, userID string, id string) error {
	return s.repo.DeletePackage(ctx, userID, id)
}

func (s *Service) packageFromRequest(req domain.PackageRequest) (domain.Package, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Type = strings.TrimSpace(req.Type)
	if err := s.check(req); err != nil {
		return domain.Package{}, err
	}
	if !req.Price.IsPositive() {
		return domain.Package{}, invalid("price must be greater than 0")
	}
	return domain.Package{
		Name:        req.Name,
		Description: req.Description,
		Price:       domain.Money(req.Price),
		Type:        req.Type,
	}, nil
}

func (s *Service) ListInventory(ctx context.Context, userID string) ([]domain.InventoryItem, error) {
	return s.repo.ListInventory(ctx, userID, store.Range{})
}

func (s *Service) CreateInventoryItem(ctx context.Context, userID string, req domain.InventoryRequest) (*domain.InventoryItem, error) {
	item, err := s.inventoryFromRequest(req)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	item.UserID = userID
	item.DateEntered = now
	item.CreatedAt = now
	item.UpdatedAt = now
	return s.repo.CreateInventoryItem(ctx, item)
}

func (s *Service) UpdateInventoryItem(ctx context.Context, userID string, id string, req domain.InventoryRequest) (*domain.InventoryItem, error) {
	item, err := s.inventoryFromRequest(req)
	if err != nil {
		return nil, err
	}
	item.ID = id
	item.UserID = userID
	item.UpdatedAt = s.now().UTC()
	return s.repo.UpdateInventoryItem(ctx, item)
}

func (s *Service) DeleteInventoryItem(ctx context.Context, userID string, id string) error {
	return s.repo.DeleteInventoryItem(ctx, userID, id)
}

func (s *Service) inventoryFromRequest(req domain.InventoryRequest) (domain.InventoryItem, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.BrandName = strings.TrimSpace(req.BrandName)
	req.Category = strings.TrimSpace(req.Category)
	req.PaymentStatus = strings.TrimSpace(req.PaymentStatus)
	if err := s.check(req); err != nil {
		return domain.InventoryItem{}, err
	}
	if !req.PricePerUnit.IsPositive() {
		return domain.InventoryItem{}, invalid("pricePerUnit must be greater than 0")
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = domain.PaymentStatusUnpaid
	}

	var expiry *time.Time
	if strings.TrimSpace(req.ExpiryDate) != "" {
		parsed, _, err := s.parseDate(req.ExpiryDate)
		if err != nil {
			return domain.InventoryItem{}, invalid("expiryDate must be YYYY-MM-DD or RFC3339")
		}
		expiry = &parsed
	}

	price := domain.Money(req.PricePerUnit)
	return domain.InventoryItem{
		Name:          req.Name,
		BrandName:     req.BrandName,
		Category:      req.Category,
		Quantity:      req.Quantity,
		PricePerUnit:  price,
		Total:         domain.Money(price.Mul(decimalInt(req.Quantity))),
		PaymentStatus: req.PaymentStatus,
		ExpiryDate:    expiry,
	}, nil
}
