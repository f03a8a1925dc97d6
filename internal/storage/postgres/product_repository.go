package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const opTimeout = 5 * time.Second

const productColumns = "id, name, description, price, quantity, is_deleted, created_at, updated_at"

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) FindByID(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// FindAllMatching собирает WHERE из присутствующих критериев фильтра;
// условия соединяются через AND, выборка упорядочена по id.
func (r *productRepository) FindAllMatching(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products`
	var (
		conds []string
		args  []any
	)

	if filter.Name != "" {
		args = append(args, "%"+strings.ToLower(filter.Name)+"%")
		conds = append(conds, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conds = append(conds, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conds = append(conds, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.OnlyAvailable {
		conds = append(conds, "quantity > 0")
	}
	if !filter.IncludeDeleted {
		conds = append(conds, "is_deleted = FALSE")
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *productRepository) Create(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created := make([]domain.Product, 0, len(products))
	for _, product := range products {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO products (name, description, price, quantity, is_deleted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, FALSE, $5, $6)
			RETURNING `+productColumns+`
		`, product.Name, product.Description, product.Price, product.Quantity, product.CreatedAt, product.UpdatedAt)

		var saved domain.Product
		saved, err = scanProduct(row)
		if err != nil {
			return nil, fmt.Errorf("insert product: %w", err)
		}
		created = append(created, saved)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create products: %w", err)
	}

	return created, nil
}

// Update перезаписывает атрибуты товара; остаток и флаг удаления через
// этот метод не меняются.
func (r *productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $1,
		    description = $2,
		    price = $3,
		    quantity = $4,
		    updated_at = $5
		WHERE id = $6
		RETURNING `+productColumns+`
	`, product.Name, product.Description, product.Price, product.Quantity, product.UpdatedAt, product.ID)

	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// SoftDelete помечает товар удалённым; физическое удаление строк через
// этот слой не выполняется.
func (r *productRepository) SoftDelete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET is_deleted = TRUE,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// DecrementStock списывает остаток условным UPDATE: строка меняется только
// если остатка хватает, поэтому конкурирующие списания не уводят его в минус.
func (r *productRepository) DecrementStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND quantity >= $2
		RETURNING `+productColumns+`
	`, id, qty)

	product, err := scanProduct(row)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("decrement stock: %w", err)
	}

	// Строка не изменилась: либо товара нет, либо остатка не хватило.
	current, lookupErr := r.FindByID(ctx, id)
	if lookupErr != nil {
		return domain.Product{}, lookupErr
	}
	return domain.Product{}, &domain.InsufficientStockError{
		ProductID:   current.ID,
		ProductName: current.Name,
		Requested:   qty,
		Available:   current.Quantity,
	}
}

func (r *productRepository) IncrementStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, id, qty)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("increment stock: %w", err)
	}
	return product, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.Price,
		&product.Quantity, &product.Deleted, &product.CreatedAt, &product.UpdatedAt,
	)
	return product, err
}

var _ domain.ProductRepository = (*productRepository)(nil)
