package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL. CreateOrder runs as one
// transaction: every product row is locked with FOR UPDATE before any stock
// comparison, and the decrement itself is guarded by a stock >= n condition,
// so conflicting placements serialize on the row locks.
type PostgresStore struct {
	db *sql.DB
}

// ConnectPostgres establishes a pooled connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RunMigrations applies the SQL migrations in dir.
func (s *PostgresStore) RunMigrations(dir string) error {
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, customerName string, items []ItemRequest) (*order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin placement tx: %w", err)
	}
	defer tx.Rollback()

	// Lock rows in a stable order so concurrent multi-item placements
	// cannot deadlock on each other.
	sorted := make([]ItemRequest, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	resolved := make(map[string]*product.Product, len(sorted))
	for _, item := range sorted {
		var p product.Product
		err := tx.QueryRowContext(ctx,
			`SELECT id, name, price, sale_price, stock FROM products WHERE id = $1 FOR UPDATE`,
			item.ProductID,
		).Scan(&p.ID, &p.Name, &p.Price, &p.SalePrice, &p.Stock)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", product.ErrNotFound, item.ProductID)
		}
		if err != nil {
			return nil, mapPqError(err)
		}

		if p.Stock < item.Quantity {
			return nil, &StockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
		resolved[item.ProductID] = &p
	}

	for _, item := range sorted {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`,
			item.Quantity, item.ProductID,
		)
		if err != nil {
			return nil, mapPqError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// The row is locked, so this only happens if the guard and
			// the earlier read disagree. Treat it as contention.
			return nil, ErrConflict
		}
	}

	now := time.Now()
	orderItems := make([]order.Item, 0, len(items))
	for _, item := range items {
		p := resolved[item.ProductID]
		orderItems = append(orderItems, order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Price:     p.EffectivePrice(),
		})
	}

	o := &order.Order{
		ID:           uuid.New().String(),
		CustomerName: customerName,
		Status:       order.StatusNewRequest,
		Items:        orderItems,
		Total:        order.ItemsTotal(orderItems),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal order items: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_name, status, total, items, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.CustomerName, o.Status, o.Total, itemsJSON, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, mapPqError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapPqError(err)
	}
	return o, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_name, status, total, items, created_at, updated_at
		 FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_name, status, total, items, created_at, updated_at
		 FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order rows: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback()

	var current order.Status
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, mapPqError(err)
	}

	if err := current.Transition(status); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return nil, mapPqError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapPqError(err)
	}

	return s.GetOrder(ctx, id)
}

func (s *PostgresStore) PutProduct(ctx context.Context, p *product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, sale_price, stock, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, description = EXCLUDED.description,
		     price = EXCLUDED.price, sale_price = EXCLUDED.sale_price,
		     stock = EXCLUDED.stock, updated_at = NOW()`,
		p.ID, p.Name, p.Description, p.Price, p.SalePrice, p.Stock,
	)
	if err != nil {
		return mapPqError(err)
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, sale_price, stock, created_at, updated_at
		 FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.SalePrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", product.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]*product.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, price, sale_price, stock, created_at, updated_at
		 FROM products ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.SalePrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product rows: %w", err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var itemsJSON []byte
	err := row.Scan(&o.ID, &o.CustomerName, &o.Status, &o.Total, &itemsJSON, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &o, nil
}

// mapPqError folds PostgreSQL serialization and deadlock failures into
// ErrConflict so callers retry the whole placement.
func mapPqError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return ErrConflict
		}
	}
	return err
}
