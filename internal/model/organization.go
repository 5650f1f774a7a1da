// internal/model/organization.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Organization is one tenant. CollectionName names its partition and never
// changes after creation.
type Organization struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrganizationName string    `gorm:"type:text;not null;uniqueIndex:organizations_name_key" json:"organization_name"`
	CollectionName   string    `gorm:"type:text;not null;uniqueIndex:organizations_collection_name_key" json:"collection_name"`
	AdminEmail       string    `gorm:"type:text;not null" json:"admin_email"`
	AdminID          uuid.UUID `gorm:"type:uuid;not null;index" json:"admin_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	IsActive         bool      `gorm:"not null;default:true" json:"is_active"`
}

func (Organization) TableName() string {
	return "organizations"
}
