package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/foodshare-pickups/internal/model"
)

// postgresStatements run after AutoMigrate. They only add constraints and indexes
// that gorm tags cannot express, so the schema stays portable for the SQLite test database.
var postgresStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_food_lots_quantities') THEN
			ALTER TABLE food_lots ADD CONSTRAINT chk_food_lots_quantities CHECK (
				total_quantity > 0
				AND available_quantity >= 0
				AND reserved_quantity >= 0
				AND consumed_quantity >= 0
				AND available_quantity <= total_quantity
				AND available_quantity + reserved_quantity + consumed_quantity = total_quantity
			);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_pickups_status') THEN
			ALTER TABLE pickups ADD CONSTRAINT chk_pickups_status CHECK (
				status IN ('PENDING', 'CONFIRMED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED', 'REJECTED')
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_pickups_quantities') THEN
			ALTER TABLE pickups ADD CONSTRAINT chk_pickups_quantities CHECK (
				requested_quantity > 0
				AND (delivered_quantity IS NULL OR (delivered_quantity > 0 AND delivered_quantity <= requested_quantity))
			);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_pickups_food_lot') THEN
			ALTER TABLE pickups ADD CONSTRAINT fk_pickups_food_lot
				FOREIGN KEY (food_lot_id) REFERENCES food_lots(id);
		END IF;
	END
	$$;`,
	`CREATE INDEX IF NOT EXISTS idx_pickups_open_by_lot ON pickups (food_lot_id)
		WHERE status IN ('PENDING', 'CONFIRMED', 'IN_PROGRESS');`,
	`CREATE INDEX IF NOT EXISTS idx_food_lots_available ON food_lots (expires_at)
		WHERE available_quantity > 0;`,
}

// Migrate brings the schema up to date for the connected dialect.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Establishment{}, &model.FoodLot{}, &model.Pickup{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for i, stmt := range postgresStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
