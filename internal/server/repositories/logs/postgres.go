package logs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/registryauth/internal/dbx"
	"github.com/dmitrijs2005/registryauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, records []models.LogRecord) error {
	query := `
		INSERT INTO logs (logged_at, level, message)
		VALUES ($1, $2, $3)
	`
	for _, rec := range records {
		if _, err := r.db.ExecContext(ctx, query, rec.Time, rec.Level, rec.Message); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
