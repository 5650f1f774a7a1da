package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent records one lifecycle or login action.
type AuditEvent struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Action           string    `json:"action" gorm:"type:text;not null;index"`
	Result           bool      `json:"result"`
	OrganizationName string    `json:"organization_name" gorm:"type:text;index"`
	AdminID          string    `json:"admin_id" gorm:"type:text"`
	Detail           string    `json:"detail" gorm:"type:text"`
	RequestID        string    `json:"request_id" gorm:"type:text"`
	ClientIP         string    `json:"client_ip" gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for AuditEvent
func (AuditEvent) TableName() string {
	return "audit_events"
}

// Constants for AuditEvent actions
const (
	ActionOrganizationCreate = "organization_create"
	ActionOrganizationUpdate = "organization_update"
	ActionOrganizationDelete = "organization_delete"
	ActionAdminLogin         = "admin_login"
	ActionAdminLoginFailed   = "admin_login_failed"
)
