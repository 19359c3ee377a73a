package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(100) NOT NULL,
		phone      VARCHAR(20)  NOT NULL,
		age        INT          NOT NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_phone (phone)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS passes (
		id        BIGINT UNSIGNED PRIMARY KEY,
		name      VARCHAR(100) NOT NULL,
		pass_type ENUM('time','time_period','day') NOT NULL,
		duration  INT    NOT NULL,
		price     BIGINT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_passes (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id         BIGINT UNSIGNED NOT NULL,
		pass_id         BIGINT UNSIGNED NOT NULL,
		name            VARCHAR(100) NOT NULL,
		pass_type       ENUM('time','time_period','day') NOT NULL,
		total_duration  INT        NOT NULL,
		remaining_time  INT        NULL,
		expire_at       DATETIME   NULL,
		is_active       TINYINT(1) NOT NULL DEFAULT 0,
		current_seat_id VARCHAR(16) NULL,
		last_accrued_at DATETIME(6) NULL,
		purchased_at    DATETIME(6) NOT NULL,
		KEY idx_user_passes_user (user_id, is_active),
		CONSTRAINT fk_user_passes_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT fk_user_passes_pass FOREIGN KEY (pass_id) REFERENCES passes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS seats (
		id           VARCHAR(16) PRIMARY KEY,
		user_pass_id BIGINT UNSIGNED NULL,
		occupied_at  DATETIME(6) NULL,
		UNIQUE KEY uq_seats_user_pass (user_pass_id),
		CONSTRAINT fk_seats_user_pass FOREIGN KEY (user_pass_id) REFERENCES user_passes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS purchase_logs (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id      BIGINT UNSIGNED NOT NULL,
		pass_id      BIGINT UNSIGNED NOT NULL,
		user_pass_id BIGINT UNSIGNED NOT NULL,
		price        BIGINT      NOT NULL,
		purchased_at DATETIME(6) NOT NULL,
		KEY idx_purchase_logs_user (user_id),
		CONSTRAINT fk_purchase_logs_user_pass FOREIGN KEY (user_pass_id) REFERENCES user_passes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables and seeds the catalog and seat map.
// Existing rows are left alone, so it is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, catalog []model.PassDefinition, seatIDs []string) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, d := range catalog {
		if _, err := db.ExecContext(ctx,
			"INSERT IGNORE INTO passes (id, name, pass_type, duration, price) VALUES (?,?,?,?,?)",
			d.ID, d.Name, d.PassType, d.Duration, d.Price); err != nil {
			return fmt.Errorf("seed pass %d: %w", d.ID, err)
		}
	}
	for _, id := range seatIDs {
		if _, err := db.ExecContext(ctx, "INSERT IGNORE INTO seats (id) VALUES (?)", id); err != nil {
			return fmt.Errorf("seed seat %s: %w", id, err)
		}
	}
	log.Printf("database: schema ready (%d passes, %d seats seeded)", len(catalog), len(seatIDs))
	return nil
}
