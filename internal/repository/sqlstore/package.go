package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/internal/repository"
	apperrors "github.com/roberthaven/outreach/pkg/errors"
)

type packageRepository struct {
	db *sqlx.DB
}

func NewPackageRepository(store *Store) repository.PackageRepository {
	return &packageRepository{db: store.DB()}
}

func (r *packageRepository) Create(ctx context.Context, pkg *model.Package) (int64, error) {
	if pkg == nil {
		return 0, fmt.Errorf("package cannot be nil")
	}

	now := time.Now().UTC()
	pkg.Status = model.PackageStatusPending
	pkg.CreatedAt = now
	pkg.UpdatedAt = now
	pkg.SendResult = ""

	query := r.db.Rebind(`
		INSERT INTO packages (
			org, contact_name, emails, phones, pdf,
			subject, body_text, body_html, listing_url,
			status, created_at, updated_at, send_result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	args := []interface{}{
		pkg.Org, pkg.ContactName, pkg.Emails, pkg.Phones, pkg.PDF,
		pkg.Subject, pkg.BodyText, pkg.BodyHTML, pkg.ListingURL,
		pkg.Status, pkg.CreatedAt, pkg.UpdatedAt, pkg.SendResult,
	}

	// lib/pq has no LastInsertId support, so postgres goes through RETURNING.
	if r.db.DriverName() == "postgres" {
		var id int64
		if err := r.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to create package: %w", err)
		}
		pkg.ID = id
		return id, nil
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create package: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new package id: %w", err)
	}
	pkg.ID = id
	return id, nil
}

func (r *packageRepository) UpdateStatus(ctx context.Context, id int64, status model.PackageStatus, sendResult string) error {
	query := r.db.Rebind(`
		UPDATE packages
		SET status = ?, send_result = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query, status, sendResult, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update package %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound(fmt.Sprintf("package %d", id), nil)
	}
	return nil
}

func (r *packageRepository) GetByID(ctx context.Context, id int64) (*model.Package, error) {
	query := r.db.Rebind(`SELECT * FROM packages WHERE id = ?`)
	var pkg model.Package
	if err := r.db.GetContext(ctx, &pkg, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("package %d", id), err)
		}
		return nil, fmt.Errorf("failed to get package %d: %w", id, err)
	}
	return &pkg, nil
}

func (r *packageRepository) List(ctx context.Context) ([]*model.Package, error) {
	var pkgs []*model.Package
	if err := r.db.SelectContext(ctx, &pkgs, `SELECT * FROM packages ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return pkgs, nil
}

func (r *packageRepository) CountByStatus(ctx context.Context, status model.PackageStatus) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM packages WHERE status = ?`)
	var n int
	if err := r.db.GetContext(ctx, &n, query, status); err != nil {
		return 0, fmt.Errorf("failed to count packages: %w", err)
	}
	return n, nil
}
