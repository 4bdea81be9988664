package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"price-tracker/models"
)

// PostgresStore persists the product catalog and price history.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id         SERIAL PRIMARY KEY,
			title      TEXT        NOT NULL,
			url        TEXT        UNIQUE NOT NULL,
			image_url  TEXT        NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS prices (
			id          SERIAL PRIMARY KEY,
			product_id  INTEGER     NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			site        VARCHAR(50) NOT NULL,
			amount      NUMERIC(10,2) NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_products_title      ON products(title);
		CREATE INDEX IF NOT EXISTS idx_prices_product_id   ON prices(product_id);
		CREATE INDEX IF NOT EXISTS idx_prices_observed_at  ON prices(observed_at);
	`)
	return err
}

// Begin starts one atomic ingestion batch.
func (ps *PostgresStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &pgBatch{tx: tx}, nil
}

// ProductByID loads one product, or ErrNotFound.
func (ps *PostgresStore) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := ps.db.QueryRowContext(ctx, `
		SELECT id, title, url, image_url, created_at, updated_at
		FROM products WHERE id = $1
	`, id)
	return scanProduct(row)
}

// Products returns the full catalog ordered by id.
func (ps *PostgresStore) Products(ctx context.Context) ([]*models.Product, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, title, url, image_url, created_at, updated_at
		FROM products ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Title, &p.URL, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// RecordObservation appends one observation and bumps the product's
// updated_at, in its own transaction.
func (ps *PostgresStore) RecordObservation(ctx context.Context, o *models.PriceObservation) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	b := &pgBatch{tx: tx}
	if err := b.AddObservation(o); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit observation: %w", err)
	}
	return nil
}

// ProductsWithLatestPrice joins each product with its newest observation.
func (ps *PostgresStore) ProductsWithLatestPrice(ctx context.Context) ([]*LatestPrice, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.url, p.image_url, p.created_at, p.updated_at,
		       COUNT(pr.id),
		       (SELECT amount FROM prices
		        WHERE product_id = p.id
		        ORDER BY observed_at DESC, id DESC LIMIT 1)
		FROM products p
		LEFT JOIN prices pr ON pr.product_id = p.id
		GROUP BY p.id
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest prices: %w", err)
	}
	defer rows.Close()

	var entries []*LatestPrice
	for rows.Next() {
		e := &LatestPrice{Product: &models.Product{}}
		p := e.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.URL, &p.ImageURL,
			&p.CreatedAt, &p.UpdatedAt, &e.Observations, &e.Latest); err != nil {
			return nil, fmt.Errorf("postgres: scan latest price: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// pgBatch implements Batch on top of one sql.Tx. Uncommitted writes are
// visible to later statements in the same transaction, which gives the
// within-batch lookup guarantee.
type pgBatch struct {
	tx *sql.Tx
}

func (b *pgBatch) ProductByURL(url string) (*models.Product, error) {
	row := b.tx.QueryRow(`
		SELECT id, title, url, image_url, created_at, updated_at
		FROM products WHERE url = $1
	`, url)
	return scanProduct(row)
}

// CreateProduct inserts the product. Two concurrent batches racing on the
// same URL cannot both insert: the unique constraint makes the loser
// degrade to an update of title/image_url.
func (b *pgBatch) CreateProduct(p *models.Product) error {
	err := b.tx.QueryRow(`
		INSERT INTO products (title, url, image_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE
			SET title = EXCLUDED.title,
			    image_url = EXCLUDED.image_url,
			    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, p.Title, p.URL, p.ImageURL).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create product %q: %w", p.URL, err)
	}
	return nil
}

func (b *pgBatch) AddObservation(o *models.PriceObservation) error {
	err := b.tx.QueryRow(`
		INSERT INTO prices (product_id, site, amount)
		VALUES ($1, $2, $3)
		RETURNING id, observed_at
	`, o.ProductID, o.Site, o.Amount).Scan(&o.ID, &o.ObservedAt)
	if err != nil {
		return fmt.Errorf("postgres: add observation for product %d: %w", o.ProductID, err)
	}

	if _, err := b.tx.Exec(`UPDATE products SET updated_at = NOW() WHERE id = $1`, o.ProductID); err != nil {
		return fmt.Errorf("postgres: touch product %d: %w", o.ProductID, err)
	}
	return nil
}

func (b *pgBatch) Commit() error {
	return b.tx.Commit()
}

func (b *pgBatch) Rollback() error {
	return b.tx.Rollback()
}

func scanProduct(row *sql.Row) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Title, &p.URL, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan product: %w", err)
	}
	return p, nil
}
