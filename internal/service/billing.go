package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/whatsapp"
)

func (s *Service) ListBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	bills, err := s.repo.ListBills(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Editable = s.editableAt(bills[i], i)
	}
	return bills, nil
}

func (s *Service) GetBill(ctx context.Context, userID string, id string) (*domain.Bill, error) {
	bill, err := s.repo.GetBill(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	editable, err := s.isEditable(ctx, *bill)
	if err != nil {
		return nil, err
	}
	bill.Editable = editable
	return bill, nil
}

func (s *Service) CreateBill(ctx context.Context, userID string, req domain.BillRequest) (*domain.Bill, error) {
	bill, err := s.buildBill(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	release, err := s.lockBills(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now().UTC()
	bill.CreatedAt = now
	bill.UpdatedAt = now
	created, err := s.repo.CreateBill(ctx, bill)
	if err != nil {
		return nil, err
	}
	created.Editable = true
	s.log.Info("bill created",
		zap.String("user_id", userID),
		zap.String("bill_id", created.ID),
		zap.String("total", created.TotalAmount.StringFixed(2)),
	)
	return created, nil
}

// UpdateBill replaces the editable parts of a bill. The caller must own the
// bill and the bill must still pass the editability gate.
func (s *Service) UpdateBill(ctx context.Context, userID string, id string, req domain.BillRequest) (*domain.Bill, error) {
	release, err := s.lockBills(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.GetBill(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEditable(ctx, *existing); err != nil {
		return nil, err
	}

	bill, err := s.buildBill(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	bill.ID = existing.ID
	bill.CreatedAt = existing.CreatedAt
	bill.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateBill(ctx, bill)
	if err != nil {
		return nil, err
	}
	updated.Editable = true
	return updated, nil
}

func (s *Service) DeleteBill(ctx context.Context, userID string, id string) error {
	release, err := s.lockBills(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	existing, err := s.repo.GetBill(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.ensureEditable(ctx, *existing); err != nil {
		return err
	}
	if err := s.repo.DeleteBill(ctx, userID, id); err != nil {
		return err
	}
	s.log.Info("bill deleted", zap.String("user_id", userID), zap.String("bill_id", id))
	return nil
}

func (s *Service) ShareBill(ctx context.Context, userID string, id string) (domain.ShareLink, error) {
	bill, err := s.repo.GetBill(ctx, userID, id)
	if err != nil {
		return domain.ShareLink{}, err
	}
	link, err := s.sharer.BillLink(*bill)
	if errors.Is(err, whatsapp.ErrNoMobile) || errors.Is(err, whatsapp.ErrInvalidMobile) {
		return domain.ShareLink{}, invalid("%v", err)
	}
	return link, err
}

// buildBill validates a request and resolves it into a bill with snapshots
// and totals computed here, never taken from the client.
func (s *Service) buildBill(ctx context.Context, userID string, req domain.BillRequest) (domain.Bill, error) {
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.AttendantBy = strings.TrimSpace(req.AttendantBy)
	for i := range req.PackageIDs {
		req.PackageIDs[i] = strings.TrimSpace(req.PackageIDs[i])
	}
	if len(req.PackageIDs) == 0 {
		return domain.Bill{}, invalid("at least one package must be selected")
	}
	if err := s.check(req); err != nil {
		return domain.Bill{}, err
	}
	for name, amount := range map[string]decimal.Decimal{
		"upiAmount":  req.UPIAmount,
		"cardAmount": req.CardAmount,
		"cashAmount": req.CashAmount,
	} {
		if amount.IsNegative() {
			return domain.Bill{}, invalid("%s must not be negative", name)
		}
	}

	packages, err := s.repo.GetPackagesByIDs(ctx, userID, req.PackageIDs)
	if err != nil {
		return domain.Bill{}, err
	}
	if len(packages) != len(req.PackageIDs) {
		return domain.Bill{}, invalid("some packages not found")
	}
	byID := make(map[string]domain.Package, len(packages))
	for _, pkg := range packages {
		byID[pkg.ID] = pkg
	}
	items := make([]domain.BillItem, 0, len(req.PackageIDs))
	for _, id := range req.PackageIDs {
		pkg := byID[id]
		items = append(items, domain.BillItem{
			PackageID:    pkg.ID,
			PackageName:  pkg.Name,
			PackagePrice: pkg.Price,
			PackageType:  pkg.Type,
		})
	}

	upi := domain.Money(req.UPIAmount)
	card := domain.Money(req.CardAmount)
	cash := domain.Money(req.CashAmount)
	servicesTotal := domain.Money(domain.SumBillItems(items))
	paid := upi.Add(card).Add(cash)
	if paid.Sub(servicesTotal).Abs().GreaterThan(domain.PaymentTolerance) {
		return domain.Bill{}, invalid("payment split %s does not match services total %s",
			paid.StringFixed(2), servicesTotal.StringFixed(2))
	}

	sales, err := s.resolveProductSales(ctx, userID, req.ProductSales)
	if err != nil {
		return domain.Bill{}, err
	}
	expenditures := make([]domain.Expenditure, 0, len(req.Expenditures))
	for _, exp := range req.Expenditures {
		if exp.Amount.IsNegative() {
			return domain.Bill{}, invalid("expenditure %q amount must not be negative", exp.Name)
		}
		expenditures = append(expenditures, domain.Expenditure{
			Name:        strings.TrimSpace(exp.Name),
			Amount:      domain.Money(exp.Amount),
			Description: strings.TrimSpace(exp.Description),
		})
	}

	mobile, err := s.sharer.Normalize(req.CustomerMobile)
	if err != nil {
		return domain.Bill{}, invalid("%v", err)
	}

	total := servicesTotal.Add(domain.SumProductSales(sales)).Add(domain.SumExpenditures(expenditures))
	return domain.Bill{
		UserID:         userID,
		ClientName:     req.ClientName,
		CustomerMobile: mobile,
		AttendantBy:    req.AttendantBy,
		Items:          items,
		ProductSales:   sales,
		Expenditures:   expenditures,
		UPIAmount:      upi,
		CardAmount:     card,
		CashAmount:     cash,
		ServicesTotal:  servicesTotal,
		TotalAmount:    domain.Money(total),
	}, nil
}

func (s *Service) resolveProductSales(ctx context.Context, userID string, reqs []domain.ProductSaleRequest) ([]domain.ProductSale, error) {
	sales := make([]domain.ProductSale, 0, len(reqs))
	for i, req := range reqs {
		if req.UnitPrice.IsNegative() {
			return nil, invalid("productSales[%d].unitPrice must not be negative", i)
		}
		name := strings.TrimSpace(req.Name)
		itemID := strings.TrimSpace(req.InventoryItemID)
		if itemID != "" {
			item, err := s.repo.GetInventoryItem(ctx, userID, itemID)
			if err != nil {
				return nil, fmt.Errorf("product sale %d: %w", i, err)
			}
			if name == "" {
				name = item.Name
			}
		}
		if name == "" {
			return nil, invalid("productSales[%d].name is required", i)
		}
		unitPrice := domain.Money(req.UnitPrice)
		sales = append(sales, domain.ProductSale{
			InventoryItemID: itemID,
			Name:            name,
			Quantity:        req.Quantity,
			UnitPrice:       unitPrice,
			TotalPrice:      domain.Money(unitPrice.Mul(decimalInt(req.Quantity))),
		})
	}
	return sales, nil
}

func (s *Service) ensureEditable(ctx context.Context, bill domain.Bill) error {
	editable, err := s.isEditable(ctx, bill)
	if err != nil {
		return err
	}
	if editable {
		return nil
	}
	if s.opts.EditPolicy == EditPolicyWindow {
		return fmt.Errorf("%w: bills can only be modified within %s of creation", ErrBillLocked, s.opts.EditWindow)
	}
	return fmt.Errorf("%w: only the last %d bills can be modified", ErrBillLocked, s.opts.EditRecentLimit)
}

func (s *Service) isEditable(ctx context.Context, bill domain.Bill) (bool, error) {
	if s.opts.EditPolicy == EditPolicyWindow {
		return s.editableAt(bill, 0), nil
	}
	recent, err := s.repo.ListBills(ctx, bill.UserID, s.opts.EditRecentLimit)
	if err != nil {
		return false, err
	}
	for _, candidate := range recent {
		if candidate.ID == bill.ID {
			return true, nil
		}
	}
	return false, nil
}

// editableAt applies the edit policy to a bill at position rank in the
// owner's newest-first bill list.
func (s *Service) editableAt(bill domain.Bill, rank int) bool {
	if s.opts.EditPolicy == EditPolicyWindow {
		return s.now().Sub(bill.CreatedAt) <= s.opts.EditWindow
	}
	return rank < s.opts.EditRecentLimit
}
