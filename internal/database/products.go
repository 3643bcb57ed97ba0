package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, description, category, base_price, image_url, is_available, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.BasePrice,
		&p.ImageUrl, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (q *Queries) ListAvailableProducts(ctx context.Context) ([]Product, error) {
	const sql = `SELECT ` + productColumns + ` FROM products
	WHERE is_available = true ORDER BY category, name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	const sql = `SELECT ` + productColumns + ` FROM products ORDER BY category, name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	const sql = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(q.db.QueryRow(ctx, sql, id))
}

type CreateProductParams struct {
	Name        string
	Description pgtype.Text
	Category    string
	BasePrice   pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	const sql = `INSERT INTO products (name, description, category, base_price, image_url, is_available)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + productColumns
	return scanProduct(q.db.QueryRow(ctx, sql,
		arg.Name, arg.Description, arg.Category, arg.BasePrice, arg.ImageUrl, arg.IsAvailable,
	))
}

type UpdateProductParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Category    string
	BasePrice   pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	const sql = `UPDATE products SET
		name = $2, description = $3, category = $4, base_price = $5,
		image_url = $6, is_available = $7, updated_at = now()
	WHERE id = $1
	RETURNING ` + productColumns
	return scanProduct(q.db.QueryRow(ctx, sql,
		arg.ID, arg.Name, arg.Description, arg.Category, arg.BasePrice, arg.ImageUrl, arg.IsAvailable,
	))
}

type CreateProductOptionParams struct {
	ProductID  uuid.UUID
	Name       string
	PriceDelta pgtype.Numeric
	SortOrder  int32
}

func (q *Queries) CreateProductOption(ctx context.Context, arg CreateProductOptionParams) (ProductOption, error) {
	const sql = `INSERT INTO product_options (product_id, name, price_delta, sort_order)
	VALUES ($1, $2, $3, $4)
	RETURNING id, product_id, name, price_delta, sort_order, created_at`
	var o ProductOption
	err := q.db.QueryRow(ctx, sql, arg.ProductID, arg.Name, arg.PriceDelta, arg.SortOrder).
		Scan(&o.ID, &o.ProductID, &o.Name, &o.PriceDelta, &o.SortOrder, &o.CreatedAt)
	return o, err
}

func (q *Queries) ListOptionsByProduct(ctx context.Context, productID uuid.UUID) ([]ProductOption, error) {
	const sql = `SELECT id, product_id, name, price_delta, sort_order, created_at
	FROM product_options WHERE product_id = $1 ORDER BY sort_order, name`
	rows, err := q.db.Query(ctx, sql, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []ProductOption
	for rows.Next() {
		var o ProductOption
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Name, &o.PriceDelta, &o.SortOrder, &o.CreatedAt); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// GetOptionForProduct fetches an option scoped to its product so an order
// cannot attach an option belonging to a different product.
func (q *Queries) GetOptionForProduct(ctx context.Context, productID, optionID uuid.UUID) (ProductOption, error) {
	const sql = `SELECT id, product_id, name, price_delta, sort_order, created_at
	FROM product_options WHERE id = $1 AND product_id = $2`
	var o ProductOption
	err := q.db.QueryRow(ctx, sql, optionID, productID).
		Scan(&o.ID, &o.ProductID, &o.Name, &o.PriceDelta, &o.SortOrder, &o.CreatedAt)
	return o, err
}
