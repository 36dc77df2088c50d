// Package logs provides the repository behind the store-backed log sink.
package logs

import (
	"context"

	"github.com/dmitrijs2005/registryauth/internal/server/models"
)

// Repository persists log rows. It exists purely for observability; nothing
// in the credential flow reads these rows back.
type Repository interface {
	// Create inserts a batch of log records.
	Create(ctx context.Context, records []models.LogRecord) error
}
