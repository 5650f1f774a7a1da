// internal/repository/admin.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminRepositoryIface interface {
	Create(ctx context.Context, admin *model.Admin) error
	FindByEmail(ctx context.Context, email string) (*model.Admin, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Admin, error)
	SetOrganization(ctx context.Context, id, orgID uuid.UUID) error
	UpdateCredentials(ctx context.Context, id uuid.UUID, email, hashedPassword string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// NormalizeEmail is the stored and compared form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *AdminRepository) Create(ctx context.Context, admin *model.Admin) error {
	admin.Email = NormalizeEmail(admin.Email)
	if err := r.db.WithContext(ctx).Create(admin).Error; err != nil {
		return fmt.Errorf("creating admin: %w", mapPostgresError(err))
	}
	return nil
}

func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	result := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&admin)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, fmt.Errorf("finding admin: %w", result.Error)
	}
	return &admin, nil
}

func (r *AdminRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	var admin model.Admin
	result := r.db.WithContext(ctx).First(&admin, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, fmt.Errorf("finding admin: %w", result.Error)
	}
	return &admin, nil
}

// SetOrganization back-patches the organization reference after the
// organization row exists.
func (r *AdminRepository) SetOrganization(ctx context.Context, id, orgID uuid.UUID) error {
	return r.update(ctx, id, map[string]interface{}{
		"organization_id": orgID,
	})
}

func (r *AdminRepository) UpdateCredentials(ctx context.Context, id uuid.UUID, email, hashedPassword string) error {
	return r.update(ctx, id, map[string]interface{}{
		"email":           NormalizeEmail(email),
		"hashed_password": hashedPassword,
		"updated_at":      time.Now().UTC(),
	})
}

func (r *AdminRepository) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.Admin{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("updating admin: %w", mapPostgresError(result.Error))
	}
	if result.RowsAffected == 0 {
		return domain.ErrAdminNotFound
	}
	return nil
}

func (r *AdminRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Admin{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("deleting admin: %w", result.Error)
	}
	return nil
}

// ListUnlinked returns admins created before the cutoff that do not belong to
// an existing organization.
func (r *AdminRepository) ListUnlinked(ctx context.Context, createdBefore time.Time) ([]*model.Admin, error) {
	var admins []*model.Admin
	err := r.db.WithContext(ctx).
		Where("created_at < ?", createdBefore).
		Where("organization_id IS NULL OR organization_id NOT IN (SELECT id FROM organizations)").
		Order("created_at").
		Find(&admins).Error
	if err != nil {
		return nil, fmt.Errorf("listing unlinked admins: %w", err)
	}
	return admins, nil
}
