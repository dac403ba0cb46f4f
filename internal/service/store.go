package service

import (
	"context"

	"github.com/liquifund/liquidity/internal/repository"
)

// QueryStore is the data access contract shared by every service.
type QueryStore interface {
	Queries() *repository.Queries
	RunInTx(ctx context.Context, fn func(q *repository.Queries) error) error
}
