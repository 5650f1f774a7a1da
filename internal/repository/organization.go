// internal/repository/organization.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrganizationRepositoryIface interface {
	Create(ctx context.Context, org *model.Organization) error
	FindByName(ctx context.Context, name string) (*model.Organization, error)
	FindByCollectionName(ctx context.Context, collectionName string) (*model.Organization, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	UpdateAdminEmail(ctx context.Context, id uuid.UUID, email string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("creating organization: %w", mapPostgresError(err))
	}
	return nil
}

// FindByName matches organization names case-insensitively.
func (r *OrganizationRepository) FindByName(ctx context.Context, name string) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).Where("LOWER(organization_name) = LOWER(?)", name).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("finding organization: %w", err)
	}
	return &org, nil
}

func (r *OrganizationRepository) FindByCollectionName(ctx context.Context, collectionName string) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).Where("collection_name = ?", collectionName).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("finding organization: %w", err)
	}
	return &org, nil
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("finding organization: %w", err)
	}
	return &org, nil
}

// UpdateAdminEmail refreshes the denormalized copy of the admin's email.
func (r *OrganizationRepository) UpdateAdminEmail(ctx context.Context, id uuid.UUID, email string) error {
	result := r.db.WithContext(ctx).Model(&model.Organization{}).Where("id = ?", id).Updates(map[string]interface{}{
		"admin_email": email,
		"updated_at":  time.Now().UTC(),
	})
	if result.Error != nil {
		return fmt.Errorf("updating organization: %w", mapPostgresError(result.Error))
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&model.Organization{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting organization: %w", err)
	}
	return nil
}

// List returns every organization ordered by name.
func (r *OrganizationRepository) List(ctx context.Context) ([]*model.Organization, error) {
	var orgs []*model.Organization
	if err := r.db.WithContext(ctx).Order("organization_name").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	return orgs, nil
}
