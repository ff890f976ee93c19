package repository

import (
	"context"

	"github.com/roberthaven/outreach/internal/model"
)

// PackageRepository is the record store for send packages. Creation is
// append-only and rows are never deleted; the worker only moves rows through
// pending -> sent|dry_run|failed.
type PackageRepository interface {
	Create(ctx context.Context, pkg *model.Package) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status model.PackageStatus, sendResult string) error
	GetByID(ctx context.Context, id int64) (*model.Package, error)
	List(ctx context.Context) ([]*model.Package, error)
	CountByStatus(ctx context.Context, status model.PackageStatus) (int, error)
}
