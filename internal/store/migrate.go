package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/JonMunkholm/examimport/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logging.FromContext(ctx).Info("schema applied")
	return nil
}
