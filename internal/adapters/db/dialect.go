package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour and driver of a connection
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ParseDialect validates a configured store driver name
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(name)); d {
	case DialectPostgres, DialectMySQL:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect: %q", name)
	}
}

// DriverName returns the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	return string(d)
}

// Rebind rewrites a query written with $N placeholders for the dialect.
// MySQL only understands positional ? markers, so the args are reordered to
// follow the order the placeholders appear in.
func (d Dialect) Rebind(query string, args []interface{}) (string, []interface{}, error) {
	if d != DialectMySQL {
		return query, args, nil
	}

	var (
		out     strings.Builder
		ordered = make([]interface{}, 0, len(args))
	)
	out.Grow(len(query))

	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			out.WriteByte(query[i])
			continue
		}

		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			out.WriteByte(query[i])
			continue
		}

		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			return "", nil, fmt.Errorf("placeholder %s has no matching argument", query[i:j])
		}
		out.WriteByte('?')
		ordered = append(ordered, args[n-1])
		i = j - 1
	}

	return out.String(), ordered, nil
}

// Schema returns the statements that create the tables for the dialect
func (d Dialect) Schema() []string {
	if d == DialectMySQL {
		return mysqlSchema
	}
	return postgresSchema
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id UUID PRIMARY KEY,
		title VARCHAR(100) NOT NULL,
		description TEXT NOT NULL,
		image_ref TEXT NOT NULL,
		owner_id UUID NOT NULL,
		starting_price NUMERIC NOT NULL,
		current_price NUMERIC NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		status VARCHAR(16) NOT NULL,
		winner_id UUID NULL,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auctions_status_end_time ON auctions (status, end_time)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id UUID PRIMARY KEY,
		auction_id UUID NOT NULL REFERENCES auctions (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		bidder_id UUID NOT NULL,
		amount NUMERIC NOT NULL,
		placed_at TIMESTAMPTZ NOT NULL,
		UNIQUE (auction_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bids_bidder_id ON bids (bidder_id)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id CHAR(36) PRIMARY KEY,
		title VARCHAR(100) NOT NULL,
		description TEXT NOT NULL,
		image_ref MEDIUMTEXT NOT NULL,
		owner_id CHAR(36) NOT NULL,
		starting_price DECIMAL(30,10) NOT NULL,
		current_price DECIMAL(30,10) NOT NULL,
		end_time DATETIME(6) NOT NULL,
		status VARCHAR(16) NOT NULL,
		winner_id CHAR(36) NULL,
		version BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_auctions_status_end_time (status, end_time)
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id CHAR(36) PRIMARY KEY,
		auction_id CHAR(36) NOT NULL,
		seq INT NOT NULL,
		bidder_id CHAR(36) NOT NULL,
		amount DECIMAL(30,10) NOT NULL,
		placed_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_bids_auction_seq (auction_id, seq),
		INDEX idx_bids_bidder_id (bidder_id),
		CONSTRAINT fk_bids_auction FOREIGN KEY (auction_id) REFERENCES auctions (id) ON DELETE CASCADE
	)`,
}
