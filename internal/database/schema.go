package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the seat ledger tables.  Statements are idempotent so
// Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS showing_seats (
		showing_id  BIGINT UNSIGNED NOT NULL,
		label       VARCHAR(16)     NOT NULL,
		row_label   VARCHAR(8)      NOT NULL,
		col         INT UNSIGNED    NOT NULL,
		class       ENUM('standard','premium','companion') NOT NULL DEFAULT 'standard',
		price_cents INT UNSIGNED    NOT NULL,
		status      ENUM('available','held','booked','blocked') NOT NULL DEFAULT 'available',
		holder_id   VARCHAR(64)     NULL,
		held_at     DATETIME(6)     NULL,
		version     INT UNSIGNED    NOT NULL DEFAULT 0,
		PRIMARY KEY (showing_id, label),
		KEY idx_showing_seats_held (status, held_at),
		KEY idx_showing_seats_holder (holder_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		code           VARCHAR(32)     NOT NULL,
		showing_id     BIGINT UNSIGNED NOT NULL,
		party_id       VARCHAR(64)     NOT NULL,
		customer_name  VARCHAR(255)    NOT NULL,
		customer_email VARCHAR(255)    NOT NULL,
		customer_phone VARCHAR(32)     NOT NULL DEFAULT '',
		total_cents    INT UNSIGNED    NOT NULL,
		status         ENUM('pending','confirmed','cancelled','completed') NOT NULL DEFAULT 'pending',
		payment_method ENUM('cash','card','online') NOT NULL,
		payment_status ENUM('pending','paid','refunded') NOT NULL DEFAULT 'pending',
		created_at     DATETIME(6)     NOT NULL,
		updated_at     DATETIME(6)     NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_bookings_code (code),
		KEY idx_bookings_party (party_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id BIGINT UNSIGNED NOT NULL,
		showing_id BIGINT UNSIGNED NOT NULL,
		label      VARCHAR(16)     NOT NULL,
		position   INT UNSIGNED    NOT NULL,
		PRIMARY KEY (booking_id, label),
		CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
