package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Connection represents a database connection
type Connection struct {
	db      *sql.DB
	dialect Dialect
	logger  zerolog.Logger
}

type ConnectionParams struct {
	Dialect      Dialect
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	Logger       zerolog.Logger
}

// NewConnection opens and pings a database connection
func NewConnection(ctx context.Context, params ConnectionParams) (*Connection, error) {
	db, err := sql.Open(params.Dialect.DriverName(), params.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if params.MaxOpenConns > 0 {
		db.SetMaxOpenConns(params.MaxOpenConns)
	}
	if params.MaxIdleConns > 0 {
		db.SetMaxIdleConns(params.MaxIdleConns)
	}

	return &Connection{
		db:      db,
		dialect: params.Dialect,
		logger:  params.Logger.With().Str("component", "db").Str("dialect", string(params.Dialect)).Logger(),
	}, nil
}

// GetDB returns the underlying sql.DB instance
func (client *Connection) GetDB() *sql.DB {
	return client.db
}

// Dialect returns the SQL dialect of the connection
func (client *Connection) Dialect() Dialect {
	return client.dialect
}

// Close closes the database connection
func (client *Connection) Close() error {
	return client.db.Close()
}

// Migrate creates the tables if they do not exist yet
func (client *Connection) Migrate(ctx context.Context) error {
	for _, stmt := range client.dialect.Schema() {
		if _, err := client.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	client.logger.Info().Msg("Database schema ready")
	return nil
}

// BeginTransaction starts a new database transaction
func (client *Connection) BeginTransaction(ctx context.Context) (*sql.Tx, error) {
	tx, err := client.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// ExecuteTransaction executes a function within a transaction
func (client *Connection) ExecuteTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := client.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
