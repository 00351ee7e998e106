package dbkeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

type DBKeeper struct {
	pool *pgxpool.Pool
	log  Log
}

// NewDBKeeper connects to the database and applies pending migrations.
// It returns nil when the DSN is empty or the database is unusable.
func NewDBKeeper(ctx context.Context, dsn func() string, migrationsPath string, log Log) *DBKeeper {
	addr := dsn()
	if addr == "" {
		log.Info("database dsn is empty, orders are kept in memory")
		return nil
	}

	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		log.Error("Unable to parse database DSN: ", zap.Error(err))
		return nil
	}

	if err := migrateUp(config.ConnConfig, migrationsPath, log); err != nil {
		log.Error("Error while performing migration: ", zap.Error(err))
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Error("Unable to connect to database: ", zap.Error(err))
		return nil
	}

	log.Info("Connected!")

	return &DBKeeper{
		pool: pool,
		log:  log,
	}
}

func (kp *DBKeeper) InsertOrder(ctx context.Context, order models.Order) (err error) {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}

	address, err := json.Marshal(order.Address)
	if err != nil {
		return fmt.Errorf("failed to encode address: %w", err)
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	tx, err := kp.pool.Begin(ctx)
	if err != nil {
		kp.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
				kp.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
			}
		}
	}()

	stmt := `
		INSERT INTO orders (id, session_id, cart_id, address, payment_method, items,
			subtotal, shipping, tax, total, currency, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11, $12, $13)
	`
	t := order.Totals
	if _, err = tx.Exec(ctx, stmt,
		order.ID, order.SessionID, order.CartID, address, string(order.PaymentMethod), items,
		t.Subtotal.StringFixed(2), t.Shipping.StringFixed(2), t.Tax.StringFixed(2), t.Total.StringFixed(2),
		t.Currency, order.Reference, order.CreatedAt,
	); err != nil {
		err = fmt.Errorf("failed to insert order: %w", err)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = fmt.Errorf("failed to commit transaction: %w", err)
		return err
	}

	kp.log.Info("Order inserted into the database", zap.String("order", order.ID))
	return nil
}

func (kp *DBKeeper) LoadOrders(ctx context.Context) ([]models.Order, error) {
	if kp.pool == nil {
		return nil, fmt.Errorf("database connection pool is nil")
	}

	query := `
		SELECT id, session_id, cart_id, address, payment_method, items,
			subtotal::text, shipping::text, tax::text, total::text, currency, reference, created_at
		FROM orders
		ORDER BY created_at
	`

	rows, err := kp.pool.Query(ctx, query)
	if err != nil {
		kp.log.Error("Failed to execute query", zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			o                              models.Order
			method                         string
			address, items                 []byte
			subtotal, shipping, tax, total string
		)
		err := rows.Scan(
			&o.ID, &o.SessionID, &o.CartID, &address, &method, &items,
			&subtotal, &shipping, &tax, &total, &o.Totals.Currency, &o.Reference, &o.CreatedAt,
		)
		if err != nil {
			kp.log.Error("Failed to scan row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		o.PaymentMethod = models.PaymentMethod(method)
		if err := json.Unmarshal(address, &o.Address); err != nil {
			return nil, fmt.Errorf("failed to decode address of order %s: %w", o.ID, err)
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of order %s: %w", o.ID, err)
		}
		if o.Totals, err = parseTotals(o.Totals.Currency, subtotal, shipping, tax, total); err != nil {
			return nil, fmt.Errorf("failed to decode totals of order %s: %w", o.ID, err)
		}
		orders = append(orders, o)
	}

	if rows.Err() != nil {
		kp.log.Error("Error occurred during rows iteration", zap.Error(rows.Err()))
		return nil, fmt.Errorf("error during rows iteration: %w", rows.Err())
	}

	kp.log.Info("Successfully retrieved all orders", zap.Int("count", len(orders)))
	return orders, nil
}

func parseTotals(currency string, amounts ...string) (models.Totals, error) {
	parsed := make([]decimal.Decimal, len(amounts))
	for i, a := range amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return models.Totals{}, err
		}
		parsed[i] = d
	}
	return models.Totals{
		Subtotal: parsed[0],
		Shipping: parsed[1],
		Tax:      parsed[2],
		Total:    parsed[3],
		Currency: currency,
	}, nil
}

func (kp *DBKeeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kp.pool.Ping(ctx); err != nil {
		kp.log.Error("Database ping failed", zap.Error(err))
		return false
	}

	return true
}

func (kp *DBKeeper) Close() bool {
	if kp.pool != nil {
		kp.pool.Close()
		kp.log.Info("Database connection pool closed")
		return true
	}
	kp.log.Info("Attempted to close a nil database connection pool")
	return false
}
