package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/store"
	"salonledger/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.PasswordHash, user.Verified, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, verified, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Verified, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) MarkUserVerified(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET verified = true WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

const packageColumns = `id, user_id, name, description, price, type, created_at, updated_at`

func (s *Store) ListPackages(ctx context.Context, userID string) ([]domain.Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return collectPackages(rows)
}

func (s *Store) GetPackagesByIDs(ctx context.Context, userID string, ids []string) ([]domain.Package, error) {
	if len(ids) == 0 {
		return []domain.Package{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE user_id = $1 AND id = ANY($2)
	`, userID, ids)
	if err != nil {
		return nil, err
	}
	return collectPackages(rows)
}

func (s *Store) CreatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error) {
	if pkg.ID == "" {
		pkg.ID = xid.New("pkg")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packages (id, user_id, name, description, price, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pkg.ID, pkg.UserID, pkg.Name, pkg.Description, pkg.Price, pkg.Type, pkg.CreatedAt, pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	created := pkg
	return &created, nil
}

func (s *Store) UpdatePackage(ctx context.Context, pkg domain.Package) (*domain.Package, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE packages
		SET name = $3, description = $4, price = $5, type = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2
		RETURNING `+packageColumns, pkg.ID, pkg.UserID, pkg.Name, pkg.Description, pkg.Price, pkg.Type, pkg.UpdatedAt)
	updated, err := scanPackage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeletePackage(ctx context.Context, userID string, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (s *Store) CountPackages(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

const inventoryColumns = `id, user_id, name, brand_name, category, quantity, price_per_unit, total, payment_status, date_entered, expiry_date, created_at, updated_at`

func (s *Store) ListInventory(ctx context.Context, userID string, entered store.Range) ([]domain.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE user_id = $1`
	args := []any{userID}
	if entered.From != nil {
		args = append(args, *entered.From)
		query += fmt.Sprintf(" AND date_entered >= $%d", len(args))
	}
	if entered.To != nil {
		args = append(args, *entered.To)
		query += fmt.Sprintf(" AND date_entered < $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, userID string, id string) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory_items
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	item, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (
			id, user_id, name, brand_name, category, quantity, price_per_unit, total,
			payment_status, date_entered, expiry_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, item.ID, item.UserID, item.Name, item.BrandName, item.Category, item.Quantity, item.PricePerUnit, item.Total,
		item.PaymentStatus, item.DateEntered, nullableTime(item.ExpiryDate), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET name = $3, brand_name = $4, category = $5, quantity = $6, price_per_unit = $7, total = $8,
			payment_status = $9, expiry_date = $10, updated_at = $11
		WHERE id = $1 AND user_id = $2
		RETURNING `+inventoryColumns, item.ID, item.UserID, item.Name, item.BrandName, item.Category, item.Quantity,
		item.PricePerUnit, item.Total, item.PaymentStatus, nullableTime(item.ExpiryDate), item.UpdatedAt)
	updated, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, userID string, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

const billColumns = `id, user_id, client_name, customer_mobile, attendant_by, items, product_sales, expenditures,
	upi_amount, card_amount, cash_amount, services_total, total_amount, created_at, updated_at`

func (s *Store) ListBills(ctx context.Context, userID string, limit int) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

func (s *Store) ListBillsCreated(ctx context.Context, userID string, created store.Range) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1`
	args := []any{userID}
	if created.From != nil {
		args = append(args, *created.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if created.To != nil {
		args = append(args, *created.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

func (s *Store) GetBill(ctx context.Context, userID string, id string) (*domain.Bill, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1 AND user_id = $2`, id, userID)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &bill, nil
}

func (s *Store) CountBills(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	if bill.ID == "" {
		bill.ID = xid.New("bill")
	}
	items, sales, expenditures, err := encodeBillLines(bill)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := moveStock(ctx, pgTx, bill.UserID, bill.StockMovements()); err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO bills (
			id, user_id, client_name, customer_mobile, attendant_by, items, product_sales, expenditures,
			upi_amount, card_amount, cash_amount, services_total, total_amount, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, bill.ID, bill.UserID, bill.ClientName, bill.CustomerMobile, bill.AttendantBy, items, sales, expenditures,
		bill.UPIAmount, bill.CardAmount, bill.CashAmount, bill.ServicesTotal, bill.TotalAmount, bill.CreatedAt, bill.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := bill
	return &created, nil
}

func (s *Store) UpdateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	items, sales, expenditures, err := encodeBillLines(bill)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	previous, createdAt, err := lockBillSales(ctx, pgTx, bill.UserID, bill.ID)
	if err != nil {
		return nil, err
	}

	delta := bill.StockMovements()
	for id, qty := range (domain.Bill{ProductSales: previous}).StockMovements() {
		delta[id] -= qty
	}
	if err := moveStock(ctx, pgTx, bill.UserID, delta); err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE bills
		SET client_name = $3, customer_mobile = $4, attendant_by = $5, items = $6, product_sales = $7,
			expenditures = $8, upi_amount = $9, card_amount = $10, cash_amount = $11,
			services_total = $12, total_amount = $13, updated_at = $14
		WHERE id = $1 AND user_id = $2
	`, bill.ID, bill.UserID, bill.ClientName, bill.CustomerMobile, bill.AttendantBy, items, sales, expenditures,
		bill.UPIAmount, bill.CardAmount, bill.CashAmount, bill.ServicesTotal, bill.TotalAmount, bill.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	bill.CreatedAt = createdAt
	updated := bill
	return &updated, nil
}

func (s *Store) DeleteBill(ctx context.Context, userID string, id string) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	previous, _, err := lockBillSales(ctx, pgTx, userID, id)
	if err != nil {
		return err
	}

	restock := make(map[string]int)
	for itemID, qty := range (domain.Bill{ProductSales: previous}).StockMovements() {
		restock[itemID] = -qty
	}
	if err := moveStock(ctx, pgTx, userID, restock); err != nil {
		return err
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM bills WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return err
	}
	return pgTx.Commit()
}

func lockBillSales(ctx context.Context, pgTx *sql.Tx, userID string, id string) ([]domain.ProductSale, time.Time, error) {
	var raw []byte
	var createdAt time.Time
	err := pgTx.QueryRowContext(ctx, `
		SELECT product_sales, created_at
		FROM bills
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, userID).Scan(&raw, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, store.ErrNotFound
		}
		return nil, time.Time{}, err
	}
	var sales []domain.ProductSale
	if err := decodeJSON(raw, &sales); err != nil {
		return nil, time.Time{}, err
	}
	return sales, createdAt, nil
}

// moveStock draws positive quantities from and returns negative quantities to
// the owner's inventory inside pgTx. Returns to items that no longer exist
// are dropped.
func moveStock(ctx context.Context, pgTx *sql.Tx, userID string, delta map[string]int) error {
	ids := make([]string, 0, len(delta))
	for id, qty := range delta {
		if qty != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, quantity
		FROM inventory_items
		WHERE user_id = $1 AND id = ANY($2)
		FOR UPDATE
	`, userID, ids)
	if err != nil {
		return err
	}
	onHand := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			_ = rows.Close()
			return err
		}
		onHand[id] = qty
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, id := range ids {
		qty := delta[id]
		available, exists := onHand[id]
		if qty > 0 && !exists {
			return store.ErrNotFound
		}
		if qty > 0 && available < qty {
			return store.ErrInsufficientStock
		}
	}

	for _, id := range ids {
		if _, exists := onHand[id]; !exists {
			continue
		}
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_items
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2 AND user_id = $3
		`, delta[id], id, userID); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (domain.Package, error) {
	var pkg domain.Package
	err := row.Scan(&pkg.ID, &pkg.UserID, &pkg.Name, &pkg.Description, &pkg.Price, &pkg.Type, &pkg.CreatedAt, &pkg.UpdatedAt)
	return pkg, err
}

func collectPackages(rows *sql.Rows) ([]domain.Package, error) {
	defer rows.Close()
	packages := make([]domain.Package, 0, 32)
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return packages, nil
}

func scanInventoryItem(row rowScanner) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	var expiry sql.NullTime
	err := row.Scan(&item.ID, &item.UserID, &item.Name, &item.BrandName, &item.Category, &item.Quantity,
		&item.PricePerUnit, &item.Total, &item.PaymentStatus, &item.DateEntered, &expiry, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		item.ExpiryDate = &e
	}
	return item, nil
}

func scanBill(row rowScanner) (domain.Bill, error) {
	var bill domain.Bill
	var items, sales, expenditures []byte
	err := row.Scan(&bill.ID, &bill.UserID, &bill.ClientName, &bill.CustomerMobile, &bill.AttendantBy,
		&items, &sales, &expenditures, &bill.UPIAmount, &bill.CardAmount, &bill.CashAmount,
		&bill.ServicesTotal, &bill.TotalAmount, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		return domain.Bill{}, err
	}
	if err := decodeJSON(items, &bill.Items); err != nil {
		return domain.Bill{}, err
	}
	if err := decodeJSON(sales, &bill.ProductSales); err != nil {
		return domain.Bill{}, err
	}
	if err := decodeJSON(expenditures, &bill.Expenditures); err != nil {
		return domain.Bill{}, err
	}
	if bill.Items == nil {
		bill.Items = []domain.BillItem{}
	}
	if bill.ProductSales == nil {
		bill.ProductSales = []domain.ProductSale{}
	}
	if bill.Expenditures == nil {
		bill.Expenditures = []domain.Expenditure{}
	}
	return bill, nil
}

func collectBills(rows *sql.Rows) ([]domain.Bill, error) {
	defer rows.Close()
	bills := make([]domain.Bill, 0, 32)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bills, nil
}

func encodeBillLines(bill domain.Bill) ([]byte, []byte, []byte, error) {
	items, err := encodeJSON(bill.Items, []domain.BillItem{})
	if err != nil {
		return nil, nil, nil, err
	}
	sales, err := encodeJSON(bill.ProductSales, []domain.ProductSale{})
	if err != nil {
		return nil, nil, nil, err
	}
	expenditures, err := encodeJSON(bill.Expenditures, []domain.Expenditure{})
	if err != nil {
		return nil, nil, nil, err
	}
	return items, sales, expenditures, nil
}

func encodeJSON[T any](lines []T, empty []T) ([]byte, error) {
	if lines == nil {
		lines = empty
	}
	return json.Marshal(lines)
}

func decodeJSON(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
