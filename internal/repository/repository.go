// internal/repository/repository.go
package repository

import (
	"errors"
	"fmt"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Unique constraint names declared on the models.
const (
	constraintOrganizationName = "organizations_name_key"
	constraintCollectionName   = "organizations_collection_name_key"
	constraintAdminEmail       = "admins_email_key"
)

// AutoMigrate creates or updates the directory tables and their indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Admin{}, &model.Organization{}, &model.AuditEvent{}); err != nil {
		return fmt.Errorf("migrating directory schema: %w", err)
	}
	return nil
}

// mapPostgresError turns unique violations on the directory indexes into the
// matching conflict errors. Anything else is returned unchanged.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	if pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case constraintOrganizationName, constraintCollectionName:
		return fmt.Errorf("%w: %s", domain.ErrOrganizationExists, pgErr.Detail)
	case constraintAdminEmail:
		return fmt.Errorf("%w: %s", domain.ErrEmailAlreadyExists, pgErr.Detail)
	default:
		return fmt.Errorf("unique constraint violation: %s: %w", pgErr.ConstraintName, err)
	}
}
