// internal/model/admin.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Admin is the single login principal of an organization. OrganizationID is
// nil between the admin insert and the back-patch during creation.
type Admin struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Email            string     `gorm:"type:text;not null;uniqueIndex:admins_email_key" json:"email"`
	HashedPassword   string     `gorm:"type:text;not null" json:"-"`
	OrganizationName string     `gorm:"type:text;not null" json:"organization_name"`
	OrganizationID   *uuid.UUID `gorm:"type:uuid" json:"organization_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	IsActive         bool       `gorm:"not null;default:true" json:"is_active"`
}

func (Admin) TableName() string {
	return "admins"
}
