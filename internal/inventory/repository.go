package inventory

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Repository is the stock ledger over the products table. Decrement is a
// single conditional statement, so the availability check and the write
// cannot race.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, name, price, stock, image_url, created_at
		FROM products
		ORDER BY sku
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, sku, name, price, stock, image_url, created_at
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

// Decrement atomically takes quantity units of stock. When fewer units are
// available the statement matches no rows and the product is read back to
// produce a descriptive InsufficientStockError.
func (r *Repository) Decrement(ctx context.Context, productID string, quantity int) error {
	return DecrementTx(ctx, r.db, productID, quantity)
}

// Restore returns quantity units of stock, e.g. on order cancellation.
func (r *Repository) Restore(ctx context.Context, productID string, quantity int) error {
	return RestoreTx(ctx, r.db, productID, quantity)
}

// Execer lets the stock statements run either on the pool or inside an
// order transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func DecrementTx(ctx context.Context, db Execer, productID string, quantity int) error {
	result, err := db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		stockErr := &domain.InsufficientStockError{ProductID: productID, Requested: quantity}
		err := db.QueryRowContext(ctx, `
			SELECT name, stock FROM products WHERE id = $1
		`, productID).Scan(&stockErr.Name, &stockErr.Available)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return stockErr
	}

	return nil
}

func RestoreTx(ctx context.Context, db Execer, productID string, quantity int) error {
	result, err := db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
