package kpi

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(StoreAPI) error) error {
	return querier.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&Store{DB: tx})
	})
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
