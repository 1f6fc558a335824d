package sqldb

import (
	"context"
	"fmt"

	"github.com/arthurmvo/Coffee-Shop/config"
	"github.com/arthurmvo/Coffee-Shop/models"
	"go.uber.org/zap"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS drinks (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(80) NOT NULL UNIQUE,
		recipe TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS drinks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(80) NOT NULL UNIQUE,
		recipe TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

// SeedDrink is the drink inserted by ResetSchema
func SeedDrink() *models.Drink {
	return models.NewDrink("water", models.Recipe{
		{Name: "water", Color: "blue", Parts: 1},
	})
}

// InitSchema creates the drinks table if it does not exist
func (db *DB) InitSchema(ctx context.Context) error {
	schema := postgresSchema
	if db.driver == config.DriverSQLite {
		schema = sqliteSchema
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// ResetSchema drops all drinks, recreates the table and seeds one drink.
// Everything it stored before is lost.
func (db *DB) ResetSchema(ctx context.Context) (*models.Drink, error) {
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS drinks`); err != nil {
		return nil, fmt.Errorf("failed to drop drinks table: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		return nil, err
	}

	seed := SeedDrink()
	if err := NewDrinkRepository(db, db.logger).Create(ctx, seed); err != nil {
		return nil, fmt.Errorf("failed to seed drinks: %w", err)
	}

	db.logger.Warn("database reset", zap.Int64("seed_id", seed.ID))
	return seed, nil
}
