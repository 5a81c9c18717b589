package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/store"
	"salonledger/backend/internal/xid"
)

// DefaultSeedPassword is used for the seeded owner when no password is configured.
const DefaultSeedPassword = "salon-owner-dev"

type Store struct {
	mu            sync.RWMutex
	usersByID     map[string]domain.User
	userIDByEmail map[string]string
	packages      map[string]domain.Package
	inventory     map[string]domain.InventoryItem
	bills         map[string]domain.Bill
}

func New() *Store {
	return &Store{
		usersByID:     make(map[string]domain.User),
		userIDByEmail: make(map[string]string),
		packages:      make(map[string]domain.Package),
		inventory:     make(map[string]domain.InventoryItem),
		bills:         make(map[string]domain.Bill),
	}
}

// NewSeeded returns a store holding one verified owner account and a starter
// package catalog for local development.
func NewSeeded(email string, password string) (*Store, error) {
	s := New()
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = "owner@salon.local"
	}
	if password == "" {
		password = DefaultSeedPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	owner := domain.User{
		ID:           xid.New("usr"),
		Email:        email,
		PasswordHash: string(hash),
		Verified:     true,
		CreatedAt:    now,
	}
	s.usersByID[owner.ID] = owner
	s.userIDByEmail[owner.Email] = owner.ID

	for i, seed := range []struct {
		name  string
		price string
		kind  string
	}{
		{"Haircut", "300", domain.PackageTypeBasic},
		{"Beard Trim", "150", domain.PackageTypeBasic},
		{"Hair Spa", "1200", domain.PackageTypePremium},
		{"Facial", "900", domain.PackageTypePremium},
	} {
		stamp := now.Add(time.Duration(i) * time.Millisecond)
		pkg := domain.Package{
			ID:        xid.New("pkg"),
			UserID:    owner.ID,
			Name:      seed.name,
			Price:     decimal.RequireFromString(seed.price),
			Type:      seed.kind,
			CreatedAt: stamp,
			UpdatedAt: stamp,
		}
		s.packages[pkg.ID] = pkg
	}
	return s, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := s.userIDByEmail[user.Email]; exists {
		return nil, store.ErrConflict
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	s.usersByID[user.ID] = user
	s.userIDByEmail[user.Email] = user.ID
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) MarkUserVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.Verified = true
	s.usersByID[userID] = user
	return nil
}

func (s *Store) ListPackages(_ context.Context, userID string) ([]domain.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Package, 0, len(s.packages))
	for _, pkg := range s.packages {
		if pkg.UserID == userID {
			result = append(result, pkg)
		}
	}
	slices.SortFunc(result, func(a, b domain.Package) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) GetPackagesByIDs(_ context.Context, userID string, ids []string) ([]domain.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Package, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		pkg, ok := s.packages[id]
		if !ok || pkg.UserID != userID {
			continue
		}
		result = append(result, pkg)
	}
	return result, nil
}

func (s *Store) CreatePackage(_ context.Context, pkg domain.Package) (*domain.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pkg.ID == "" {
		pkg.ID = xid.New("pkg")
	}
	s.packages[pkg.ID] = pkg
	created := pkg
	return &created, nil
}

func (s *Store) UpdatePackage(_ context.Context, pkg domain.Package) (*domain.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.packages[pkg.ID]
	if !ok || existing.UserID != pkg.UserID {
		return nil, store.ErrNotFound
	}
	pkg.CreatedAt = existing.CreatedAt
	s.packages[pkg.ID] = pkg
	updated := pkg
	return &updated, nil
}

func (s *Store) DeletePackage(_ context.Context, userID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.packages[id]
	if !ok || existing.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.packages, id)
	return nil
}

func (s *Store) CountPackages(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, pkg := range s.packages {
		if pkg.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListInventory(_ context.Context, userID string, entered store.Range) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryItem, 0, len(s.inventory))
	for _, item := range s.inventory {
		if item.UserID != userID || !entered.Contains(item.DateEntered) {
			continue
		}
		result = append(result, cloneInventoryItem(item))
	}
	slices.SortFunc(result, func(a, b domain.InventoryItem) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) GetInventoryItem(_ context.Context, userID string, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventory[id]
	if !ok || item.UserID != userID {
		return nil, store.ErrNotFound
	}
	found := cloneInventoryItem(item)
	return &found, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	s.inventory[item.ID] = cloneInventoryItem(item)
	created := cloneInventoryItem(item)
	return &created, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.inventory[item.ID]
	if !ok || existing.UserID != item.UserID {
		return nil, store.ErrNotFound
	}
	item.CreatedAt = existing.CreatedAt
	item.DateEntered = existing.DateEntered
	s.inventory[item.ID] = cloneInventoryItem(item)
	updated := cloneInventoryItem(item)
	return &updated, nil
}

func (s *Store) DeleteInventoryItem(_ context.Context, userID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.inventory[id]
	if !ok || existing.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.inventory, id)
	return nil
}

func (s *Store) ListBills(_ context.Context, userID string, limit int) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		if bill.UserID == userID {
			result = append(result, cloneBill(bill))
		}
	}
	slices.SortFunc(result, func(a, b domain.Bill) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListBillsCreated(_ context.Context, userID string, created store.Range) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		if bill.UserID == userID && created.Contains(bill.CreatedAt) {
			result = append(result, cloneBill(bill))
		}
	}
	slices.SortFunc(result, func(a, b domain.Bill) int {
		return -newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) GetBill(_ context.Context, userID string, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.bills[id]
	if !ok || bill.UserID != userID {
		return nil, store.ErrNotFound
	}
	found := cloneBill(bill)
	return &found, nil
}

func (s *Store) CountBills(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, bill := range s.bills {
		if bill.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateBill(_ context.Context, bill domain.Bill) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.ID == "" {
		bill.ID = xid.New("bill")
	}
	if err := s.moveStock(bill.UserID, bill.StockMovements()); err != nil {
		return nil, err
	}
	s.bills[bill.ID] = cloneBill(bill)
	created := cloneBill(bill)
	return &created, nil
}

func (s *Store) UpdateBill(_ context.Context, bill domain.Bill) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bills[bill.ID]
	if !ok || existing.UserID != bill.UserID {
		return nil, store.ErrNotFound
	}

	delta := bill.StockMovements()
	for id, qty := range existing.StockMovements() {
		delta[id] -= qty
	}
	if err := s.moveStock(bill.UserID, delta); err != nil {
		return nil, err
	}

	bill.CreatedAt = existing.CreatedAt
	s.bills[bill.ID] = cloneBill(bill)
	updated := cloneBill(bill)
	return &updated, nil
}

func (s *Store) DeleteBill(_ context.Context, userID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bills[id]
	if !ok || existing.UserID != userID {
		return store.ErrNotFound
	}

	restock := make(map[string]int)
	for itemID, qty := range existing.StockMovements() {
		restock[itemID] = -qty
	}
	if err := s.moveStock(userID, restock); err != nil {
		return err
	}
	delete(s.bills, id)
	return nil
}

// moveStock draws positive quantities from and returns negative quantities to
// the owner's inventory. It validates every movement before applying any.
// Returns to items that no longer exist are dropped. Callers hold s.mu.
func (s *Store) moveStock(userID string, delta map[string]int) error {
	for id, qty := range delta {
		if qty <= 0 {
			continue
		}
		item, ok := s.inventory[id]
		if !ok || item.UserID != userID {
			return store.ErrNotFound
		}
		if item.Quantity < qty {
			return store.ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	for id, qty := range delta {
		if qty == 0 {
			continue
		}
		item, ok := s.inventory[id]
		if !ok || item.UserID != userID {
			continue
		}
		item.Quantity -= qty
		item.UpdatedAt = now
		s.inventory[id] = item
	}
	return nil
}

func newestFirst(aAt time.Time, bAt time.Time, aID string, bID string) int {
	if aAt.Equal(bAt) {
		return strings.Compare(bID, aID)
	}
	if aAt.After(bAt) {
		return -1
	}
	return 1
}

func cloneBill(src domain.Bill) domain.Bill {
	dup := src
	dup.Items = slices.Clone(src.Items)
	dup.ProductSales = slices.Clone(src.ProductSales)
	dup.Expenditures = slices.Clone(src.Expenditures)
	if dup.Items == nil {
		dup.Items = []domain.BillItem{}
	}
	if dup.ProductSales == nil {
		dup.ProductSales = []domain.ProductSale{}
	}
	if dup.Expenditures == nil {
		dup.Expenditures = []domain.Expenditure{}
	}
	return dup
}

func cloneInventoryItem(src domain.InventoryItem) domain.InventoryItem {
	dup := src
	if src.ExpiryDate != nil {
		expiry := *src.ExpiryDate
		dup.ExpiryDate = &expiry
	}
	return dup
}
